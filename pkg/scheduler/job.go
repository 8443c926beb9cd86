// Package scheduler binds validator, engine and reporter into named
// consistency jobs and runs them on a background loop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/otakulab/media-sync/internal/metrics"
	"github.com/otakulab/media-sync/pkg/consistency"
	"github.com/otakulab/media-sync/pkg/reporter"
)

// Status is the terminal state of one job execution
type Status string

const (
	StatusDisabled Status = "disabled"
	StatusSuccess  Status = "success"
	StatusPartial  Status = "partial"
	StatusError    Status = "error"
)

// ExecutionResult is the structured outcome of one Execute call. Execute
// always returns a result, never an error.
type ExecutionResult struct {
	JobID             string               `json:"job_id"`
	ReportID          string               `json:"report_id,omitempty"`
	Status            Status               `json:"status"`
	StartedAt         time.Time            `json:"started_at"`
	Duration          time.Duration        `json:"duration"`
	ConflictsFound    int                  `json:"conflicts_found"`
	ConflictsResolved int                  `json:"conflicts_resolved"`
	ConflictsFailed   int                  `json:"conflicts_failed"`
	Strategy          consistency.Strategy `json:"strategy"`
	Error             string               `json:"error,omitempty"`
	ConflictDetails   []string             `json:"conflict_details,omitempty"`
	ResolutionDetails []string             `json:"resolution_details,omitempty"`
	ResolutionErrors  []string             `json:"resolution_errors,omitempty"`
}

// JobStatus is an externally visible snapshot of job state
type JobStatus struct {
	ID         string               `json:"job_id"`
	Strategy   consistency.Strategy `json:"strategy"`
	Interval   time.Duration        `json:"interval"`
	Enabled    bool                 `json:"enabled"`
	LastRun    time.Time            `json:"last_run"`
	RunCount   int64                `json:"run_count"`
	ErrorCount int64                `json:"error_count"`
	LastResult *ExecutionResult     `json:"last_result,omitempty"`
}

// Job is one named validate-reconcile-report unit. Its mutable state is
// guarded internally, but concurrent executions of the same job are not
// mutually excluded; the embedding application prevents them.
type Job struct {
	id       string
	strategy consistency.Strategy
	interval time.Duration

	validator *consistency.Validator
	engine    *consistency.Engine
	reporter  reporter.Reporter
	logger    *zap.Logger

	mu         sync.Mutex
	enabled    bool
	lastRun    time.Time
	lastResult *ExecutionResult
	runCount   int64
	errorCount int64

	now func() time.Time
}

// NewJob creates a consistency job
func NewJob(
	id string,
	strategy consistency.Strategy,
	interval time.Duration,
	enabled bool,
	validator *consistency.Validator,
	engine *consistency.Engine,
	rep reporter.Reporter,
	logger *zap.Logger,
) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rep == nil {
		rep = reporter.NewNop()
	}
	return &Job{
		id:        id,
		strategy:  strategy,
		interval:  interval,
		enabled:   enabled,
		validator: validator,
		engine:    engine,
		reporter:  rep,
		logger:    logger.With(zap.String("job_id", id)),
		now:       time.Now,
	}
}

// ID returns the job identifier
func (j *Job) ID() string {
	return j.id
}

// Interval returns the configured run interval
func (j *Job) Interval() time.Duration {
	return j.interval
}

// Enabled reports whether the job participates in scheduling
func (j *Job) Enabled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enabled
}

// SetEnabled flips the enabled flag
func (j *Job) SetEnabled(enabled bool) {
	j.mu.Lock()
	j.enabled = enabled
	j.mu.Unlock()
}

// Status returns a snapshot of the job's state
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobStatus{
		ID:         j.id,
		Strategy:   j.strategy,
		Interval:   j.interval,
		Enabled:    j.enabled,
		LastRun:    j.lastRun,
		RunCount:   j.runCount,
		ErrorCount: j.errorCount,
		LastResult: j.lastResult,
	}
}

// due reports whether the job should run given its interval
func (j *Job) due(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.enabled {
		return false
	}
	return j.lastRun.IsZero() || now.Sub(j.lastRun) >= j.interval
}

// Execute runs one validate-reconcile-report cycle. Disabled jobs return a
// disabled result without touching any state. Every other outcome updates
// last run bookkeeping; the error counter moves only on the error path.
// Execute never panics and never returns an error: failures surface as a
// structured result with status "error".
func (j *Job) Execute(ctx context.Context) *ExecutionResult {
	if !j.Enabled() {
		return &ExecutionResult{JobID: j.id, Status: StatusDisabled, Strategy: j.strategy}
	}

	start := j.now()
	result := &ExecutionResult{
		JobID:     j.id,
		Status:    StatusError,
		StartedAt: start,
		Strategy:  j.strategy,
	}

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("job panicked: %v", r)
			result.Status = StatusError
			j.logger.Error("job execution panicked", zap.Any("panic", r))
		}
		result.Duration = j.now().Sub(start)
		j.finish(result)
	}()

	handle, err := j.reporter.CreateReport(ctx, j.id, "consistency_check", start)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create audit report: %v", err)
		return result
	}
	result.ReportID = handle

	conflicts := j.validator.ValidateAll(ctx)
	result.ConflictsFound = len(conflicts)
	for _, c := range conflicts {
		result.ConflictDetails = append(result.ConflictDetails,
			fmt.Sprintf("%s %s/%d [%s]: %s", c.Type, c.EntityType, c.EntityID, c.Severity, c.Details))
	}

	if err := j.reporter.UpdateWithConflicts(ctx, handle, conflicts); err != nil {
		return j.fail(ctx, result, handle, "failed to report conflicts", err)
	}

	var recon *consistency.ReconciliationResult
	if len(conflicts) > 0 {
		recon = j.engine.ReconcileConflicts(ctx, conflicts, j.strategy)
	} else {
		recon = &consistency.ReconciliationResult{
			Success:   true,
			Strategy:  j.strategy,
			Details:   []string{},
			Errors:    []string{},
			Timestamp: j.now().UTC(),
		}
	}

	result.ConflictsResolved = recon.Resolved
	result.ConflictsFailed = recon.Failed
	result.ResolutionDetails = recon.Details
	result.ResolutionErrors = recon.Errors

	status := StatusSuccess
	reportStatus := "success"
	if !recon.Success {
		status = StatusPartial
		reportStatus = "partial"
	}
	if err := j.reporter.UpdateWithResolution(ctx, handle, recon, j.strategy, reportStatus); err != nil {
		return j.fail(ctx, result, handle, "failed to report resolution", err)
	}

	result.Status = status
	return result
}

// fail reports the error to the audit sink and returns the result on the
// error path. Reporter failures here are logged, never propagated.
func (j *Job) fail(ctx context.Context, result *ExecutionResult, handle, message string, cause error) *ExecutionResult {
	result.Status = StatusError
	result.Error = fmt.Sprintf("%s: %v", message, cause)
	if err := j.reporter.UpdateWithError(ctx, handle, message, fmt.Sprintf("%T: %v", cause, cause), "error"); err != nil {
		j.logger.Warn("failed to record error in audit report", zap.Error(err))
	}
	return result
}

// finish applies the always-run bookkeeping for one execution
func (j *Job) finish(result *ExecutionResult) {
	j.mu.Lock()
	j.lastRun = j.now()
	j.lastResult = result
	j.runCount++
	if result.Status == StatusError {
		j.errorCount++
	}
	j.mu.Unlock()

	metrics.JobRuns.WithLabelValues(j.id, string(result.Status)).Inc()
	metrics.JobDuration.WithLabelValues(j.id).Observe(result.Duration.Seconds())
	j.logger.Info("job execution finished",
		zap.String("status", string(result.Status)),
		zap.Int("conflicts_found", result.ConflictsFound),
		zap.Int("conflicts_resolved", result.ConflictsResolved),
		zap.Int("conflicts_failed", result.ConflictsFailed),
		zap.Duration("duration", result.Duration))
}
