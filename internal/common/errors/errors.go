// Package errors provides the error taxonomy shared by the pipeline engine,
// its adapters, and the BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents a stable, machine-distinguishable error kind.
type ErrorCode string

// Pipeline error kinds
const (
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
	ErrCodeTransition          ErrorCode = "TRANSITION_ERROR"
	ErrCodeLockConflict        ErrorCode = "LOCK_CONFLICT"
	ErrCodeConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeConfiguration       ErrorCode = "CONFIGURATION_ERROR"
)

// Infrastructure error kinds
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// MetadataAllowedTargets is the metadata key carrying the statuses a
// rejected transition could have moved to.
const MetadataAllowedTargets = "allowedTargets"

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any StandardError carrying the same code, so the exported
// sentinels below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	var other *StandardError
	if !stderrors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Sentinels for errors.Is checks.
var (
	ErrValidation          = &StandardError{Code: ErrCodeValidation}
	ErrTransition          = &StandardError{Code: ErrCodeTransition}
	ErrLockConflict        = &StandardError{Code: ErrCodeLockConflict}
	ErrConcurrencyConflict = &StandardError{Code: ErrCodeConcurrencyConflict}
	ErrNotFound            = &StandardError{Code: ErrCodeNotFound}
	ErrConfiguration       = &StandardError{Code: ErrCodeConfiguration}
	ErrQueryExecution      = &StandardError{Code: ErrCodeQueryExecutionFailed}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable validation error.
func NewValidationError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransitionError creates a non-retryable illegal-move error carrying the
// statuses that would have been accepted.
func NewTransitionError(from, to string, allowed []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransition,
		Message:   fmt.Sprintf("Invalid transition from %s to %s", from, to),
		Details:   "Status can only move forward or be rejected. Allowed: " + strings.Join(allowed, ", "),
		Retryable: false,
		Metadata: map[string]interface{}{
			MetadataAllowedTargets: allowed,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewLockConflictError reports that another writer currently holds the record.
func NewLockConflictError(applicationID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeLockConflict,
		Message:   "Application is locked by another writer",
		Details:   fmt.Sprintf("applicationId: %d", applicationID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConcurrencyConflictError reports a stale read detected at write time.
func NewConcurrencyConflictError(applicationID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeConcurrencyConflict,
		Message:   "Application was updated by another user. Please refresh and try again.",
		Details:   fmt.Sprintf("applicationId: %d", applicationID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource string, id interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %v", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationError reports missing or invalid run parameters.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Inspection
// ==========================

// AsStandard normalizes any error into a StandardError.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// KindOf returns the error code of err, or INTERNAL_ERROR for foreign errors.
func KindOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

// AllowedTargets extracts the allowed-target list from a transition error.
func AllowedTargets(err error) []string {
	var stdErr *StandardError
	if !stderrors.As(err, &stdErr) || stdErr.Metadata == nil {
		return nil
	}
	allowed, _ := stdErr.Metadata[MetadataAllowedTargets].([]string)
	return allowed
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidation:               "PIPELINE_VALIDATION_ERROR",
	ErrCodeTransition:               "PIPELINE_TRANSITION_REJECTED",
	ErrCodeLockConflict:             "PIPELINE_LOCK_CONFLICT",
	ErrCodeConcurrencyConflict:      "PIPELINE_CONCURRENCY_CONFLICT",
	ErrCodeNotFound:                 "PIPELINE_NOT_FOUND",
	ErrCodeConfiguration:            "PIPELINE_CONFIGURATION_ERROR",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeConcurrencyConflict,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed:
		return 3

	case ErrCodeLockConflict:
		return 2 // the holder usually finishes within one poll interval

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if allowed, ok := stdErr.Metadata[MetadataAllowedTargets]; ok {
		vars[MetadataAllowedTargets] = allowed
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONFLICT"):
		return "CONCURRENCY"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	default:
		return "OTHER"
	}
}
