// Package app assembles the pipeline from configuration. Both the
// pipeline-manager daemon and botctl start from here.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"botic-pipeline/internal/common/config"
	"botic-pipeline/internal/common/database"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/common/observability"
	"botic-pipeline/internal/pipeline/bot"
	"botic-pipeline/internal/pipeline/lock"
	"botic-pipeline/internal/pipeline/service"
	"botic-pipeline/internal/pipeline/transition"
	"botic-pipeline/internal/store"
	"botic-pipeline/internal/store/memory"
	"botic-pipeline/internal/store/postgres"
)

// App holds the wired pipeline and the resources to release on shutdown.
type App struct {
	Config  *config.Config
	Store   store.Store
	Service *service.Service
	Runner  *bot.Runner

	postgres *postgres.Store
	redis    *database.RedisClient
	obs      *observability.Observability
	log      *zap.Logger
}

// Options tune how much of the stack Build brings up.
type Options struct {
	// ConnectRetries bounds the startup connection attempts for postgres.
	// Zero means a single attempt.
	ConnectRetries int
	// Migrate applies pending schema migrations after connecting.
	Migrate bool
	// Observability is optional; a nil value disables otel recording.
	Observability *observability.Observability
}

// RetryWithBackoff attempts to execute a function with exponential backoff.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// Build connects the configured store, the optional redis job cache and
// wires the lock coordinator, executor, bot runner and service on top.
func Build(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, opts Options) (*App, error) {
	log := logger.NewZapAdapter(zapLog)
	a := &App{Config: cfg, obs: opts.Observability, log: zapLog}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		a.Store = memory.New()
		zapLog.Info("Using in-memory store")
	case config.DriverPostgres, "":
		var pg *database.PostgresClient
		err := RetryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			return nil
		}, opts.ConnectRetries, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		a.postgres = postgres.New(pg, log)
		a.Store = a.postgres
		zapLog.Info("PostgreSQL connected successfully")

		if opts.Migrate {
			if _, err := a.Migrate(ctx); err != nil {
				a.Close()
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	var cache *service.JobCache
	if rc := database.NewRedis(cfg.Database.Redis); rc != nil {
		if err := rc.Ping(ctx); err != nil {
			zapLog.Warn("Redis unavailable, bot job cache disabled", zap.Error(err))
			rc.Close()
		} else {
			a.redis = rc
			cache = service.NewJobCache(rc.Client, time.Duration(cfg.Bot.JobCacheTTL)*time.Second, log)
			zapLog.Info("Redis connected successfully")
		}
	}

	locks := lock.New(a.Store, log)
	executor := transition.New(a.Store, log)

	var runnerOpts []bot.Option
	if a.obs != nil {
		runnerOpts = append(runnerOpts, bot.WithObservability(a.obs))
	}
	a.Runner = bot.NewRunner(a.Store, locks, executor, cfg.Bot, bot.Config{
		Identity:     cfg.Bot.Identity,
		MaxBatchSize: cfg.Bot.MaxBatchSize,
		Concurrency:  cfg.Bot.Concurrency,
	}, log, runnerOpts...)

	var serviceOpts []service.Option
	if cache != nil {
		serviceOpts = append(serviceOpts, service.WithJobCache(cache))
	}
	a.Service = service.New(a.Store, locks, executor, a.Runner, service.Config{
		RestrictTechnicalManual: cfg.Pipeline.RestrictTechnicalManual,
	}, log, serviceOpts...)

	return a, nil
}

// Migrate applies pending migrations. The in-memory store has no schema.
func (a *App) Migrate(ctx context.Context) ([]int, error) {
	if a.postgres == nil {
		return nil, nil
	}
	applied, err := a.postgres.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	if len(applied) > 0 {
		a.log.Info("Applied migrations", zap.Ints("versions", applied))
	}
	return applied, nil
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Warn("store close failed", zap.Error(err))
		}
	}
}
