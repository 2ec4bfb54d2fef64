// internal/workers/pipeline/run-bot/models.go
package runbot

type Input struct {
	DryRun      bool   `json:"dryRun"`
	BatchSize   *int   `json:"batchSize,omitempty"`
	TriggeredBy string `json:"triggeredBy"`
}

type Output struct {
	JobID     int64  `json:"jobId"`
	JobStatus string `json:"jobStatus"`
	Message   string `json:"message"`
}
