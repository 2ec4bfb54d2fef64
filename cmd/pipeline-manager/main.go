// cmd/pipeline-manager/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"botic-pipeline/internal/api"
	"botic-pipeline/internal/app"
	"botic-pipeline/internal/common/camunda"
	"botic-pipeline/internal/common/config"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/common/observability"
	"botic-pipeline/internal/pipeline/scheduler"

	runbot "botic-pipeline/internal/workers/pipeline/run-bot"
	updatestatus "botic-pipeline/internal/workers/pipeline/update-status"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	var outputs []string
	if cfg.Logging.Output != "" {
		outputs = append(outputs, cfg.Logging.Output)
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, outputs...)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting pipeline manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs, err := observability.New("pipeline-manager", nil)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	pipeline, err := app.Build(ctx, cfg, zapLog, app.Options{
		ConnectRetries: 15,
		Migrate:        true,
		Observability:  obs,
	})
	if err != nil {
		zapLog.Fatal("pipeline initialization failed", zap.Error(err))
	}
	defer pipeline.Close()

	// --- Scheduler ---
	sched := scheduler.New(pipeline.Service, scheduler.Config{
		Interval:    time.Duration(cfg.Bot.ScheduleInterval) * time.Second,
		BatchSize:   cfg.Bot.DefaultBatchSize,
		TriggeredBy: cfg.Bot.SchedulerIdentity,
	}, log)
	sched.Start(ctx)

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	var workers *camunda.Workers
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		}, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		workers = camunda.NewWorkers(zeebe.GetClient(), log)
		workers.Start(runbot.TaskType, config.GetWorkerConfig(cfg, runbot.TaskType),
			runbot.NewHandler(runbot.NewConfig(cfg), pipeline.Service, log))
		workers.Start(updatestatus.TaskType, config.GetWorkerConfig(cfg, updatestatus.TaskType),
			updatestatus.NewHandler(updatestatus.NewConfig(cfg), pipeline.Service, log))
	} else {
		zapLog.Info("Camunda disabled, workflow workers not started")
	}

	// --- HTTP API ---
	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.NewRouter(api.Deps{
			Pipeline:         pipeline.Service,
			Logger:           log,
			DefaultBatchSize: cfg.Bot.DefaultBatchSize,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	sched.Stop()
	if workers != nil {
		workers.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Pipeline manager stopped")
}
