// Package bot advances eligible technical-role applications one stage per
// run, recording each run as a BotJob.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/common/metrics"
	"botic-pipeline/internal/common/observability"
	"botic-pipeline/internal/models"
	"botic-pipeline/internal/pipeline/lock"
	"botic-pipeline/internal/pipeline/policy"
	"botic-pipeline/internal/pipeline/transition"
	"botic-pipeline/internal/store"
)

type Store interface {
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	FindCandidates(ctx context.Context, f store.CandidateFilter) ([]models.Application, error)
	CreateBotJob(ctx context.Context, job *models.BotJob) error
	FinalizeBotJob(ctx context.Context, id int64, outcome models.BotJobOutcome) error
}

// Settings supplies the cooldown at run time; a missing or invalid value
// fails the run rather than the process.
type Settings interface {
	Cooldown() (time.Duration, error)
}

type Config struct {
	Identity     string
	MaxBatchSize int
	Concurrency  int
}

type RunRequest struct {
	DryRun      bool
	BatchSize   int
	TriggeredBy string
}

// Summary folds per-candidate outcomes. Processed = Succeeded + Failed;
// Skipped counts lock conflicts and NoOp is included in Succeeded.
type Summary struct {
	Selected  int `json:"selected"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	NoOp      int `json:"noOp"`
}

type RunResult struct {
	JobID   int64               `json:"jobId"`
	Status  models.BotJobStatus `json:"status"`
	Message string              `json:"message"`
	DryRun  bool                `json:"dryRun"`
	Summary Summary             `json:"summary"`
}

type Runner struct {
	store    Store
	locks    *lock.Coordinator
	executor *transition.Executor
	settings Settings
	cfg      Config
	logger   logger.Logger
	obs      *observability.Observability
	now      func() time.Time
}

type Option func(*Runner)

func WithObservability(obs *observability.Observability) Option {
	return func(r *Runner) { r.obs = obs }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(
	s Store,
	locks *lock.Coordinator,
	executor *transition.Executor,
	settings Settings,
	cfg Config,
	log logger.Logger,
	opts ...Option,
) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Identity == "" {
		cfg.Identity = "bot@botic.local"
	}
	r := &Runner{
		store:    s,
		locks:    locks.WithSource("bot"),
		executor: executor,
		settings: settings,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "bot"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one batch. Once the job row exists the run is detached from
// ctx's cancellation and always reaches a terminal status. The returned error
// is non-nil only when the job record itself could not be written.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	ctx, span := r.obs.StartSpan(ctx, "bot.run",
		attribute.Bool("dry_run", req.DryRun),
		attribute.Int("batch_size", req.BatchSize),
		attribute.String("triggered_by", req.TriggeredBy),
	)
	defer span.End()

	metrics.BotRunsActive.Inc()
	defer metrics.BotRunsActive.Dec()

	job := &models.BotJob{
		TriggeredBy: req.TriggeredBy,
		TriggeredAt: r.now(),
		Status:      models.BotJobRunning,
		DryRun:      req.DryRun,
		BatchSize:   req.BatchSize,
	}
	if err := r.store.CreateBotJob(ctx, job); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create bot job: %w", err)
	}
	span.SetAttributes(attribute.Int64("job_id", job.ID))

	log := r.logger.WithFields(map[string]interface{}{
		"jobId":       job.ID,
		"triggeredBy": req.TriggeredBy,
		"dryRun":      req.DryRun,
	})
	log.Info("bot run started", map[string]interface{}{"batchSize": req.BatchSize})

	summary, runErr := r.process(ctx, req, log)

	result := &RunResult{JobID: job.ID, DryRun: req.DryRun, Summary: summary}
	outcome := models.BotJobOutcome{
		Processed:  summary.Processed,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		FinishedAt: r.now(),
	}
	if runErr != nil {
		reason := describe(runErr)
		outcome.Status = models.BotJobFailed
		outcome.Details = reason
		result.Status = models.BotJobFailed
		result.Message = "Bot run failed: " + reason
		span.SetStatus(codes.Error, reason)
		log.Error("bot run failed", map[string]interface{}{
			"errorCode": string(apperrors.KindOf(runErr)),
			"error":     reason,
		})
	} else {
		outcome.Status = models.BotJobCompleted
		outcome.Details = fmt.Sprintf("Processed %d applications. Succeeded: %d, Failed: %d, Skipped (locked): %d",
			summary.Processed, summary.Succeeded, summary.Failed, summary.Skipped)
		if req.DryRun {
			outcome.Details = "[dry run] " + outcome.Details
		}
		result.Status = models.BotJobCompleted
		result.Message = fmt.Sprintf("Bot completed. Processed: %d, Succeeded: %d, Failed: %d, Skipped: %d",
			summary.Processed, summary.Succeeded, summary.Failed, summary.Skipped)
		log.Info("bot run completed", map[string]interface{}{
			"selected":  summary.Selected,
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
			"skipped":   summary.Skipped,
			"noop":      summary.NoOp,
		})
	}

	if err := r.store.FinalizeBotJob(ctx, job.ID, outcome); err != nil {
		log.WithError(err).Error("failed to finalize bot job", map[string]interface{}{"jobId": job.ID})
		return result, fmt.Errorf("finalize bot job %d: %w", job.ID, err)
	}

	elapsed := time.Since(started)
	metrics.BotRuns.WithLabelValues(string(result.Status)).Inc()
	metrics.BotRunDuration.Observe(elapsed.Seconds())
	r.obs.RecordRun(ctx, string(result.Status), req.DryRun, elapsed)

	return result, nil
}

func describe(err error) string {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		if stdErr.Details != "" {
			return stdErr.Message + ": " + stdErr.Details
		}
		return stdErr.Message
	}
	return err.Error()
}

func (r *Runner) process(ctx context.Context, req RunRequest, log logger.Logger) (Summary, error) {
	cooldown, err := r.settings.Cooldown()
	if err != nil {
		return Summary{}, apperrors.NewConfigurationError(err.Error())
	}
	if req.BatchSize <= 0 {
		return Summary{}, apperrors.NewConfigurationError(
			fmt.Sprintf("batch size must be positive, got %d", req.BatchSize))
	}

	batch := req.BatchSize
	if r.cfg.MaxBatchSize > 0 && batch > r.cfg.MaxBatchSize {
		log.Warn("batch size clamped", map[string]interface{}{
			"requested": batch,
			"max":       r.cfg.MaxBatchSize,
		})
		batch = r.cfg.MaxBatchSize
	}

	now := r.now()
	candidates, err := r.store.FindCandidates(ctx, store.CandidateFilter{
		Cutoff:   now.Add(-cooldown),
		Excluded: []models.Status{models.StatusHired, models.StatusOffer},
		Limit:    batch,
	})
	if err != nil {
		return Summary{}, err
	}

	var succeeded, failed, skipped, noop atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for _, c := range candidates {
		id := c.ID
		g.Go(func() error {
			outcome := r.processOne(ctx, id, req.DryRun, cooldown, log)
			switch outcome {
			case metrics.OutcomeSucceeded, metrics.OutcomeDryRun:
				succeeded.Add(1)
			case metrics.OutcomeNoOp:
				succeeded.Add(1)
				noop.Add(1)
			case metrics.OutcomeSkipped:
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			metrics.BotCandidates.WithLabelValues(outcome).Inc()
			r.obs.RecordCandidate(ctx, outcome)
			return nil
		})
	}
	_ = g.Wait()

	s := Summary{
		Selected:  len(candidates),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
		NoOp:      int(noop.Load()),
	}
	s.Processed = s.Succeeded + s.Failed
	return s, nil
}

// processOne handles a single candidate under its lock and reports the
// outcome. It never returns an error or lets a panic escape.
func (r *Runner) processOne(ctx context.Context, id int64, dryRun bool, cooldown time.Duration, log logger.Logger) (outcome string) {
	ctx, span := r.obs.StartSpan(ctx, "bot.candidate", attribute.Int64("application_id", id))
	defer func() {
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()
	}()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while processing candidate", map[string]interface{}{
				"applicationId": id,
				"panic":         fmt.Sprint(rec),
			})
			outcome = metrics.OutcomeFailed
		}
	}()

	outcome = metrics.OutcomeFailed
	err := r.locks.WithLock(ctx, id, func(ctx context.Context) error {
		app, err := r.store.GetApplication(ctx, id)
		if err != nil {
			return err
		}

		next, ok := policy.NextAutomatedStatus(app.CurrentStatus)
		if !ok || !policy.IsAutomationEligible(app.CurrentStatus) || !app.CooledDown(r.now(), cooldown) {
			outcome = metrics.OutcomeNoOp
			return nil
		}

		if dryRun {
			outcome = metrics.OutcomeDryRun
			return nil
		}

		_, err = r.executor.Apply(ctx, transition.Request{
			ApplicationID: id,
			NewStatus:     next,
			Actor:         r.cfg.Identity,
			ActorRole:     models.ActorRoleBot,
			Comment:       fmt.Sprintf("Automated transition from %s to %s", app.CurrentStatus, next),
			IsAutomated:   true,
		})
		if err != nil {
			return err
		}
		outcome = metrics.OutcomeSucceeded
		return nil
	})

	switch {
	case errors.Is(err, apperrors.ErrLockConflict):
		log.Debug("candidate locked, skipping", map[string]interface{}{"applicationId": id})
		return metrics.OutcomeSkipped
	case err != nil:
		log.WithError(err).Warn("candidate failed", map[string]interface{}{
			"applicationId": id,
			"errorCode":     string(apperrors.KindOf(err)),
		})
		return metrics.OutcomeFailed
	}
	return outcome
}
