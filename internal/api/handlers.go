package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/pipeline/bot"
	"botic-pipeline/internal/pipeline/service"
)

const maxBodySize = 1 << 20

type handlers struct {
	pipeline         Pipeline
	logger           logger.Logger
	defaultBatchSize int
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("Invalid request body", err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("Invalid "+name, raw)
	}
	return id, nil
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.Ready(r.Context()); err != nil {
		h.logger.WithError(err).Warn("readiness check failed", nil)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

type updateStatusRequest struct {
	NewStatus string `json:"newStatus"`
	Comment   string `json:"comment"`
}

type updateStatusResponse struct {
	OK            bool   `json:"ok"`
	Message       string `json:"message"`
	ApplicationID int64  `json:"applicationId"`
	OldStatus     string `json:"oldStatus"`
	NewStatus     string `json:"newStatus"`
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateStatusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	actor := actorFrom(r.Context())
	res, err := h.pipeline.SubmitTransition(r.Context(), service.TransitionCommand{
		ApplicationID: id,
		NewStatus:     req.NewStatus,
		Actor:         actor.Email,
		ActorRole:     actor.Role,
		Comment:       req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateStatusResponse{
		OK:            true,
		Message:       fmt.Sprintf("Status updated from %s to %s", res.OldStatus, res.NewStatus),
		ApplicationID: res.ApplicationID,
		OldStatus:     string(res.OldStatus),
		NewStatus:     string(res.NewStatus),
	})
}

func (h *handlers) listActivityLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	logs, err := h.pipeline.ListActivityLog(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func viewerFrom(r *http.Request) service.Viewer {
	actor := actorFrom(r.Context())
	return service.Viewer{Email: actor.Email, Role: actor.Role}
}

// pageFrom reads the skip and take query parameters.
func pageFrom(r *http.Request) (service.PageRequest, error) {
	var page service.PageRequest
	for name, dest := range map[string]*int{"skip": &page.Skip, "take": &page.Take} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, apperrors.NewValidationError("Invalid "+name, raw)
		}
		*dest = n
	}
	return page, nil
}

func (h *handlers) getApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	app, err := h.pipeline.GetApplication(r.Context(), id, viewerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *handlers) myApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.pipeline.ListMyApplications(r.Context(), actorFrom(r.Context()).Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *handlers) listApplications(w http.ResponseWriter, r *http.Request) {
	page, err := pageFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var technical *bool
	if raw := r.URL.Query().Get("technical"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, apperrors.NewValidationError("Invalid technical", raw))
			return
		}
		technical = &v
	}

	res, err := h.pipeline.ListApplications(r.Context(), technical, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.pipeline.ListUsers(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.pipeline.Dashboard(r.Context(), viewerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

type createApplicationRequest struct {
	ApplicantID int64  `json:"applicantId"`
	RoleName    string `json:"roleName"`
}

func (h *handlers) createApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ApplicantID <= 0 || req.RoleName == "" {
		writeError(w, apperrors.NewValidationError("applicantId and roleName are required", ""))
		return
	}

	app, err := h.pipeline.CreateApplication(r.Context(), req.ApplicantID, req.RoleName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *handlers) unlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.pipeline.ReleaseLock(r.Context(), id, actorFrom(r.Context()).Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "applicationId": id})
}

type createRoleRequest struct {
	Name        string `json:"name"`
	IsTechnical bool   `json:"isTechnical"`
}

func (h *handlers) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	role, err := h.pipeline.CreateRole(r.Context(), req.Name, req.IsTechnical)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *handlers) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.pipeline.ListRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.pipeline.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type runBotRequest struct {
	DryRun    bool `json:"dryRun"`
	BatchSize *int `json:"batchSize"`
}

func (h *handlers) runBot(w http.ResponseWriter, r *http.Request) {
	var req runBotRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	batch := h.defaultBatchSize
	if req.BatchSize != nil {
		batch = *req.BatchSize
	}

	res, err := h.pipeline.RunBot(r.Context(), bot.RunRequest{
		DryRun:      req.DryRun,
		BatchSize:   batch,
		TriggeredBy: actorFrom(r.Context()).Email,
	})
	if err != nil && res == nil {
		writeError(w, err)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("bot job record not finalized", map[string]interface{}{
			"jobId": res.JobID,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := h.pipeline.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperrors.NewValidationError("Invalid limit", raw))
			return
		}
		limit = n
	}
	jobs, err := h.pipeline.ListRecentJobs(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *handlers) botStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipeline.BotStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
