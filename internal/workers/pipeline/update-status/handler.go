// internal/workers/pipeline/update-status/handler.go
package updatestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/common/metrics"
	"botic-pipeline/internal/pipeline/service"
	"botic-pipeline/internal/pipeline/transition"
)

const TaskType = "pipeline-update-status"

type Submitter interface {
	SubmitTransition(ctx context.Context, cmd service.TransitionCommand) (*transition.Result, error)
}

type Handler struct {
	config       *Config
	pipeline     Submitter
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, pipeline Submitter, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		pipeline:     pipeline,
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

// Execute submits the transition. Lock and version conflicts come back as
// retryable errors so Zeebe retries the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.pipeline.SubmitTransition(ctx, service.TransitionCommand{
		ApplicationID: input.ApplicationID,
		NewStatus:     input.NewStatus,
		Actor:         input.Actor,
		ActorRole:     input.ActorRole,
		Comment:       input.Comment,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID: res.ApplicationID,
		OldStatus:     string(res.OldStatus),
		NewStatus:     string(res.NewStatus),
		Message:       fmt.Sprintf("Status updated from %s to %s", res.OldStatus, res.NewStatus),
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
		"jobKey":        job.GetKey(),
		"applicationId": output.ApplicationID,
		"newStatus":     output.NewStatus,
	})
}
