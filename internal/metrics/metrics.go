package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConflictsDetected counts conflicts found by the validator
	ConflictsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasync_conflicts_detected_total",
			Help: "Total number of consistency conflicts detected",
		},
		[]string{"entity_type", "conflict_type", "severity"},
	)

	// ConflictsResolved counts reconciliation outcomes per strategy
	ConflictsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasync_conflicts_resolved_total",
			Help: "Total number of conflict resolutions attempted",
		},
		[]string{"strategy", "outcome"},
	)

	// ValidationDuration tracks how long one full validation pass takes
	ValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediasync_validation_duration_seconds",
			Help:    "Duration of full consistency validation passes",
			Buckets: prometheus.DefBuckets,
		},
	)

	// JobRuns counts consistency job executions by terminal status
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasync_job_runs_total",
			Help: "Total number of consistency job executions",
		},
		[]string{"job", "status"},
	)

	// JobDuration tracks end-to-end job execution time
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediasync_job_duration_seconds",
			Help:    "Consistency job execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// TransactionsTotal counts transaction completions by result
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasync_transactions_total",
			Help: "Total number of completed transaction contexts",
		},
		[]string{"result"},
	)

	// TransactionDepth tracks the current nesting depth of the context stack
	TransactionDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediasync_transaction_depth",
			Help: "Current transaction context stack depth",
		},
	)

	// SchedulerLoopErrors counts scheduler loop iterations that failed
	SchedulerLoopErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediasync_scheduler_loop_errors_total",
			Help: "Total number of scheduler loop failures",
		},
	)
)
