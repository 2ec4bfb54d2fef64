// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/pipeline/bot"
	"botic-pipeline/internal/pipeline/service"
	"botic-pipeline/internal/pipeline/transition"
)

// Pipeline is the service surface the handlers drive.
type Pipeline interface {
	SubmitTransition(ctx context.Context, cmd service.TransitionCommand) (*transition.Result, error)
	RunBot(ctx context.Context, req bot.RunRequest) (*bot.RunResult, error)
	GetJob(ctx context.Context, id int64) (*models.BotJob, error)
	ListRecentJobs(ctx context.Context, limit int) ([]models.BotJob, error)
	BotStats(ctx context.Context) (*models.BotStats, error)
	ListActivityLog(ctx context.Context, applicationID int64) ([]models.ActivityLog, error)
	GetApplication(ctx context.Context, id int64, viewer service.Viewer) (*models.Application, error)
	ListMyApplications(ctx context.Context, email string) ([]models.Application, error)
	ListApplications(ctx context.Context, technical *bool, page service.PageRequest) (*models.Page[models.Application], error)
	ListUsers(ctx context.Context, page service.PageRequest) (*models.Page[models.User], error)
	Dashboard(ctx context.Context, viewer service.Viewer) (*models.Dashboard, error)
	CreateApplication(ctx context.Context, applicantID int64, roleName string) (*models.Application, error)
	CreateRole(ctx context.Context, name string, isTechnical bool) (*models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	CreateUser(ctx context.Context, name, email string) (*models.User, error)
	ReleaseLock(ctx context.Context, applicationID int64, actor string) error
	Ready(ctx context.Context) error
}

type Deps struct {
	Pipeline         Pipeline
	Logger           logger.Logger
	DefaultBatchSize int
	// MetricsHandler overrides the default promhttp handler.
	MetricsHandler http.Handler
}

func NewRouter(deps Deps) http.Handler {
	if deps.DefaultBatchSize <= 0 {
		deps.DefaultBatchSize = 50
	}
	if deps.MetricsHandler == nil {
		deps.MetricsHandler = promhttp.Handler()
	}
	h := &handlers{
		pipeline:         deps.Pipeline,
		logger:           deps.Logger.WithFields(map[string]interface{}{"component": "api"}),
		defaultBatchSize: deps.DefaultBatchSize,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Handle("/metrics", deps.MetricsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireIdentity)

		r.Get("/dashboard", h.dashboard)

		r.Route("/applications", func(r chi.Router) {
			r.Post("/", h.createApplication)
			r.With(RequireRole(models.ActorRoleAdmin)).Get("/", h.listApplications)
			r.Get("/my-applications", h.myApplications)
			r.Get("/{id}", h.getApplication)
			r.Get("/{id}/activity-logs", h.listActivityLog)
			r.With(RequireRole(models.ActorRoleAdmin, models.ActorRoleBot)).
				Put("/{id}/status", h.updateStatus)
			r.With(RequireRole(models.ActorRoleAdmin)).
				Post("/{id}/unlock", h.unlock)
		})

		r.Get("/roles", h.listRoles)
		r.With(RequireRole(models.ActorRoleAdmin)).Post("/roles", h.createRole)
		r.With(RequireRole(models.ActorRoleAdmin)).Post("/users", h.createUser)
		r.With(RequireRole(models.ActorRoleAdmin)).Get("/users", h.listUsers)

		r.Route("/bot", func(r chi.Router) {
			r.With(RequireRole(models.ActorRoleAdmin, models.ActorRoleBot)).Post("/run", h.runBot)
			r.Get("/jobs", h.listJobs)
			r.Get("/jobs/{id}", h.getJob)
			r.Get("/stats", h.botStats)
		})
	})

	return r
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Debug("http request", map[string]interface{}{
				"method":    r.Method,
				"path":      r.URL.Path,
				"status":    ww.Status(),
				"duration":  time.Since(start).String(),
				"requestId": middleware.GetReqID(r.Context()),
			})
		})
	}
}
