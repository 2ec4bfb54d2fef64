package api

import (
	"encoding/json"
	"net/http"

	apperrors "botic-pipeline/internal/common/errors"
)

type errorBody struct {
	Code           string   `json:"code"`
	Message        string   `json:"message"`
	Details        string   `json:"details,omitempty"`
	Retryable      bool     `json:"retryable"`
	AllowedTargets []string `json:"allowedTargets,omitempty"`
}

const (
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
)

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeTransition, apperrors.ErrCodeConfiguration:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeLockConflict, apperrors.ErrCodeConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders any error as the standard body. Infrastructure details
// are not echoed to clients.
func writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.AsStandard(err)
	status := statusFor(stdErr.Code)

	body := errorBody{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		AllowedTargets: apperrors.AllowedTargets(err),
	}
	if status == http.StatusInternalServerError {
		body.Details = ""
	}
	writeJSON(w, status, body)
}

func writeStatus(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
