// Package reporter defines the write-only audit sink fed by consistency
// jobs. Reports are never read back by the engine.
package reporter

import (
	"context"
	"time"

	"github.com/otakulab/media-sync/pkg/consistency"
)

// Reporter receives the audit trail of one consistency job execution. The
// handle returned by CreateReport identifies the report in later updates.
type Reporter interface {
	CreateReport(ctx context.Context, jobID, reportType string, start time.Time) (string, error)
	UpdateWithConflicts(ctx context.Context, handle string, conflicts []consistency.DataConflict) error
	UpdateWithResolution(ctx context.Context, handle string, result *consistency.ReconciliationResult, strategy consistency.Strategy, status string) error
	UpdateWithError(ctx context.Context, handle string, message, details, status string) error
}

// Nop discards every report. Useful for tests and embedding callers that do
// not persist audit data.
type Nop struct{}

// NewNop creates a discard-everything reporter
func NewNop() *Nop {
	return &Nop{}
}

func (*Nop) CreateReport(context.Context, string, string, time.Time) (string, error) {
	return "nop", nil
}

func (*Nop) UpdateWithConflicts(context.Context, string, []consistency.DataConflict) error {
	return nil
}

func (*Nop) UpdateWithResolution(context.Context, string, *consistency.ReconciliationResult, consistency.Strategy, string) error {
	return nil
}

func (*Nop) UpdateWithError(context.Context, string, string, string, string) error {
	return nil
}
