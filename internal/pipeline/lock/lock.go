// Package lock implements the per-application advisory lock that keeps an
// interactive writer and the bot from racing on the same record.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/common/metrics"
)

// Store is the slice of the persistence layer the coordinator needs.
type Store interface {
	AcquireLock(ctx context.Context, id int64, token string) error
	ReleaseLock(ctx context.Context, id int64) error
}

const defaultReleaseTimeout = 5 * time.Second

type Coordinator struct {
	store          Store
	logger         logger.Logger
	source         string
	releaseTimeout time.Duration
	newToken       func() string
}

func New(store Store, log logger.Logger) *Coordinator {
	return &Coordinator{
		store:          store,
		logger:         log.WithFields(map[string]interface{}{"component": "lock"}),
		source:         "interactive",
		releaseTimeout: defaultReleaseTimeout,
		newToken:       func() string { return uuid.NewString() },
	}
}

// WithSource returns a copy that labels conflict metrics with source.
func (c *Coordinator) WithSource(source string) *Coordinator {
	cp := *c
	cp.source = source
	return &cp
}

// Acquire takes the lock or fails at once with LOCK_CONFLICT or NOT_FOUND.
func (c *Coordinator) Acquire(ctx context.Context, applicationID int64) (string, error) {
	token := c.newToken()
	if err := c.store.AcquireLock(ctx, applicationID, token); err != nil {
		if errors.Is(err, apperrors.ErrLockConflict) {
			metrics.LockConflicts.WithLabelValues(c.source).Inc()
		}
		return "", err
	}
	return token, nil
}

// Release clears the lock whoever holds it. Releasing a free lock is a no-op.
func (c *Coordinator) Release(ctx context.Context, applicationID int64) error {
	return c.store.ReleaseLock(ctx, applicationID)
}

// WithLock runs fn while holding the lock and releases it on every exit,
// including a panic in fn, which keeps propagating after the release.
func (c *Coordinator) WithLock(ctx context.Context, applicationID int64, fn func(ctx context.Context) error) error {
	token, err := c.Acquire(ctx, applicationID)
	if err != nil {
		return err
	}
	defer c.releaseDetached(ctx, applicationID, token)

	return fn(ctx)
}

// releaseDetached ignores the caller's cancellation so a cancelled request
// still frees the record.
func (c *Coordinator) releaseDetached(ctx context.Context, applicationID int64, token string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.releaseTimeout)
	defer cancel()

	if err := c.store.ReleaseLock(rctx, applicationID); err != nil {
		metrics.LockReleaseFailures.Inc()
		c.logger.WithError(err).Error("failed to release application lock", map[string]interface{}{
			"applicationId": applicationID,
			"token":         token,
		})
	}
}
