// internal/workers/pipeline/run-bot/handler.go
package runbot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/common/metrics"
	"botic-pipeline/internal/pipeline/bot"
)

const TaskType = "pipeline-run-bot"

type BotRunner interface {
	RunBot(ctx context.Context, req bot.RunRequest) (*bot.RunResult, error)
}

type Handler struct {
	config       *Config
	runner       BotRunner
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, runner BotRunner, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		runner:       runner,
		logger:       scoped,
		errorHandler: errors.NewErrorHandler(scoped),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.handle(ctx, job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.KindOf(err))).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) handle(ctx context.Context, job entities.Job) (*Output, error) {
	input, err := parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func parseInput(job entities.Job) (*Input, error) {
	vars, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewValidationError("Invalid job variables", err.Error())
	}
	if err := inputSchema.Check(vars); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewValidationError("Invalid job variables", err.Error())
	}
	return &input, nil
}

// Execute runs one batch. A run that ends Failed still completes the job;
// the process branches on jobStatus.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	batch := h.config.DefaultBatchSize
	if input.BatchSize != nil {
		batch = *input.BatchSize
	}
	triggeredBy := input.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = h.config.DefaultTriggeredBy
	}

	res, err := h.runner.RunBot(ctx, bot.RunRequest{
		DryRun:      input.DryRun,
		BatchSize:   batch,
		TriggeredBy: triggeredBy,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		JobID:     res.JobID,
		JobStatus: string(res.Status),
		Message:   res.Message,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"botJobId":  output.JobID,
		"jobStatus": output.JobStatus,
	})
}
