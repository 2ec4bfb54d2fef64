// Package transition applies one validated status change together with its
// audit row.
package transition

import (
	"context"
	"time"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/common/metrics"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/pipeline/policy"
	"botic-pipeline/internal/store"
)

type Store interface {
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	ApplyTransition(ctx context.Context, w store.StatusWrite) (*models.ActivityLog, error)
}

type Request struct {
	ApplicationID int64
	NewStatus     models.Status
	Actor         string
	ActorRole     string
	Comment       string
	IsAutomated   bool
}

type Result struct {
	ApplicationID int64
	OldStatus     models.Status
	NewStatus     models.Status
	Log           *models.ActivityLog
}

type Executor struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Executor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func New(s Store, log logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		store:  s,
		logger: log.WithFields(map[string]interface{}{"component": "transition"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply validates req against the application's current status and writes
// the change and one activity log row atomically. Callers are expected to
// hold the application's lock.
func (e *Executor) Apply(ctx context.Context, req Request) (*Result, error) {
	res, err := e.apply(ctx, req)
	result := "ok"
	if err != nil {
		result = string(apperrors.KindOf(err))
	}
	metrics.Transitions.WithLabelValues(req.ActorRole, result).Inc()
	return res, err
}

func (e *Executor) apply(ctx context.Context, req Request) (*Result, error) {
	app, err := e.store.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}

	if err := policy.CheckTransition(app.CurrentStatus, req.NewStatus); err != nil {
		return nil, err
	}

	var comment *string
	if req.Comment != "" {
		c := req.Comment
		comment = &c
	}

	entry, err := e.store.ApplyTransition(ctx, store.StatusWrite{
		ApplicationID:   app.ID,
		ExpectedVersion: app.Version,
		OldStatus:       app.CurrentStatus,
		NewStatus:       req.NewStatus,
		Automated:       req.IsAutomated,
		At:              e.now(),
		Actor:           req.Actor,
		ActorRole:       req.ActorRole,
		Comment:         comment,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("application status changed", map[string]interface{}{
		"applicationId": app.ID,
		"oldStatus":     app.CurrentStatus.String(),
		"newStatus":     req.NewStatus.String(),
		"actor":         req.Actor,
		"actorRole":     req.ActorRole,
		"automated":     req.IsAutomated,
	})

	return &Result{
		ApplicationID: app.ID,
		OldStatus:     app.CurrentStatus,
		NewStatus:     req.NewStatus,
		Log:           entry,
	}, nil
}
