package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Candidate outcomes recorded by the bot.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeNoOp      = "noop"
	OutcomeDryRun    = "dry_run"
)

var (
	BotRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_bot_runs_total",
			Help: "Bot runs by final job status",
		},
		[]string{"status"},
	)

	BotCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_bot_candidates_total",
			Help: "Candidates handled by the bot, by outcome",
		},
		[]string{"outcome"},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_transitions_total",
			Help: "Status transitions attempted, by actor role and result code",
		},
		[]string{"actor_role", "result"},
	)

	LockConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_lock_conflicts_total",
			Help: "Lock acquisitions that found the record already held",
		},
		[]string{"source"},
	)

	LockReleaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_lock_release_failures_total",
			Help: "Lock releases that returned an error",
		},
	)

	BotRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_bot_run_duration_seconds",
			Help:    "Wall time of a bot run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	BotRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_bot_runs_active",
			Help: "Bot runs currently in flight in this process",
		},
	)
)

// Zeebe worker metrics
var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
