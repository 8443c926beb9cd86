package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otakulab/media-sync/pkg/consistency"
	"github.com/otakulab/media-sync/pkg/mediadb"
	"github.com/otakulab/media-sync/pkg/mediadb/dao"
)

// Store persists audit reports into the consistency_reports table.
// Open report rows are tracked in memory so updates never read the table.
type Store struct {
	store  *mediadb.Store
	logger *zap.Logger

	mu   sync.Mutex
	open map[string]*dao.ConsistencyReportDao
}

// NewStore creates a store-backed audit reporter
func NewStore(store *mediadb.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		store:  store,
		logger: logger,
		open:   make(map[string]*dao.ConsistencyReportDao),
	}
}

// CreateReport inserts a fresh report row and returns its handle
func (r *Store) CreateReport(ctx context.Context, jobID, reportType string, start time.Time) (string, error) {
	report := &dao.ConsistencyReportDao{
		ReportID:  uuid.NewString(),
		JobID:     jobID,
		Type:      reportType,
		Status:    "running",
		StartedAt: start.UTC(),
	}
	if err := r.store.CreateReport(ctx, report); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.open[report.ReportID] = report
	r.mu.Unlock()
	return report.ReportID, nil
}

// UpdateWithConflicts records the validator's findings, including an empty set
func (r *Store) UpdateWithConflicts(ctx context.Context, handle string, conflicts []consistency.DataConflict) error {
	report, err := r.lookup(handle)
	if err != nil {
		return err
	}

	type conflictSummary struct {
		Type       string `json:"conflict_type"`
		EntityType string `json:"entity_type"`
		EntityID   int64  `json:"entity_id"`
		Severity   string `json:"severity"`
		Details    string `json:"details"`
	}
	summaries := make([]conflictSummary, len(conflicts))
	for i, c := range conflicts {
		summaries[i] = conflictSummary{
			Type:       string(c.Type),
			EntityType: c.EntityType,
			EntityID:   c.EntityID,
			Severity:   string(c.Severity),
			Details:    c.Details,
		}
	}
	encoded, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("failed to encode conflict summaries: %w", err)
	}

	report.ConflictsFound = len(conflicts)
	report.Details = string(encoded)
	return r.store.UpdateReport(ctx, report)
}

// UpdateWithResolution records the reconciliation outcome and closes the report
func (r *Store) UpdateWithResolution(ctx context.Context, handle string, result *consistency.ReconciliationResult, strategy consistency.Strategy, status string) error {
	report, err := r.lookup(handle)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	report.Status = status
	report.Strategy = string(strategy)
	report.CompletedAt = &now
	if result != nil {
		report.ConflictsResolved = result.Resolved
		report.ConflictsFailed = result.Failed
	}
	err = r.store.UpdateReport(ctx, report)
	r.close(handle)
	return err
}

// UpdateWithError records a job failure and closes the report
func (r *Store) UpdateWithError(ctx context.Context, handle string, message, details, status string) error {
	report, err := r.lookup(handle)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	report.Status = status
	report.Error = message
	if details != "" {
		report.Error = message + ": " + details
	}
	report.CompletedAt = &now
	err = r.store.UpdateReport(ctx, report)
	r.close(handle)
	return err
}

func (r *Store) lookup(handle string) (*dao.ConsistencyReportDao, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.open[handle]
	if !ok {
		return nil, fmt.Errorf("unknown report handle %q", handle)
	}
	return report, nil
}

func (r *Store) close(handle string) {
	r.mu.Lock()
	delete(r.open, handle)
	r.mu.Unlock()
}
