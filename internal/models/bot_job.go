package models

import (
	"fmt"
	"time"
)

type BotJobStatus string

const (
	BotJobRunning   BotJobStatus = "Running"
	BotJobCompleted BotJobStatus = "Completed"
	BotJobFailed    BotJobStatus = "Failed"
)

// IsValidBotJobStatus reports whether s is a known job status.
func IsValidBotJobStatus(s BotJobStatus) bool {
	switch s {
	case BotJobRunning, BotJobCompleted, BotJobFailed:
		return true
	}
	return false
}

// BotJob records one bot run. Totals and FinishedAt stay nil while Running.
type BotJob struct {
	ID             int64        `json:"id"`
	TriggeredBy    string       `json:"triggeredBy"`
	TriggeredAt    time.Time    `json:"triggeredAt"`
	Status         BotJobStatus `json:"status"`
	DryRun         bool         `json:"dryRun"`
	BatchSize      int          `json:"batchSize"`
	TotalProcessed *int         `json:"totalProcessed"`
	TotalSucceeded *int         `json:"totalSucceeded"`
	TotalFailed    *int         `json:"totalFailed"`
	TotalSkipped   *int         `json:"totalSkipped"`
	Details        string       `json:"details,omitempty"`
	FinishedAt     *time.Time   `json:"finishedAt,omitempty"`
}

// Finished reports whether the job reached a terminal status.
func (j *BotJob) Finished() bool {
	return j.Status == BotJobCompleted || j.Status == BotJobFailed
}

// BotJobOutcome is the single finalize write applied to a Running job.
type BotJobOutcome struct {
	Status     BotJobStatus
	Processed  int
	Succeeded  int
	Failed     int
	Skipped    int
	Details    string
	FinishedAt time.Time
}

// Validate checks the terminal status and the processed = succeeded + failed rule.
func (o BotJobOutcome) Validate() error {
	if o.Status != BotJobCompleted && o.Status != BotJobFailed {
		return fmt.Errorf("bot job outcome must be terminal, got %q", o.Status)
	}
	if o.Status == BotJobCompleted && o.Processed != o.Succeeded+o.Failed {
		return fmt.Errorf("processed (%d) must equal succeeded (%d) + failed (%d)",
			o.Processed, o.Succeeded, o.Failed)
	}
	return nil
}

// Apply copies the outcome onto the job.
func (o BotJobOutcome) Apply(j *BotJob) {
	processed, succeeded, failed, skipped := o.Processed, o.Succeeded, o.Failed, o.Skipped
	finished := o.FinishedAt
	j.Status = o.Status
	j.TotalProcessed = &processed
	j.TotalSucceeded = &succeeded
	j.TotalFailed = &failed
	j.TotalSkipped = &skipped
	j.Details = o.Details
	j.FinishedAt = &finished
}

// BotStats aggregates bot activity for dashboards.
type BotStats struct {
	TotalBotTransitions int64            `json:"totalBotTransitions"`
	RecentJobs          []BotJob         `json:"recentJobs"`
	TransitionsByStatus map[Status]int64 `json:"transitionsByStatus"`
}
