// Package scheduler triggers bot runs on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/pipeline/bot"
)

type BotRunner interface {
	RunBot(ctx context.Context, req bot.RunRequest) (*bot.RunResult, error)
}

type Config struct {
	Interval    time.Duration
	BatchSize   int
	TriggeredBy string
}

// Scheduler starts one run per tick. A tick that fires while this
// scheduler's previous run is still active is skipped.
type Scheduler struct {
	runner BotRunner
	cfg    Config
	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	busy   atomic.Bool

	ticks   atomic.Int64
	skipped atomic.Int64
}

func New(runner BotRunner, cfg Config, log logger.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "scheduler"}),
	}
}

// Start launches the tick loop. It is a no-op when the interval is zero.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		s.logger.Info("bot scheduler disabled", nil)
		return
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()

	s.logger.Info("bot scheduler started", map[string]interface{}{
		"interval":  s.cfg.Interval.String(),
		"batchSize": s.cfg.BatchSize,
	})
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("bot scheduler stopped", map[string]interface{}{
		"ticks":   s.ticks.Load(),
		"skipped": s.skipped.Load(),
	})
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	s.ticks.Add(1)
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug("previous scheduled run still active, skipping tick", nil)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		res, err := s.runner.RunBot(s.ctx, bot.RunRequest{
			BatchSize:   s.cfg.BatchSize,
			TriggeredBy: s.cfg.TriggeredBy,
		})
		if err != nil {
			s.logger.WithError(err).Error("scheduled bot run failed", nil)
			return
		}
		s.logger.Info("scheduled bot run finished", map[string]interface{}{
			"jobId":   res.JobID,
			"status":  string(res.Status),
			"message": res.Message,
		})
	}()
}

// Skipped reports how many ticks were dropped because a run was active.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}
