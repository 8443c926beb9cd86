package mediadb

import (
	"context"
	"fmt"
	"time"

	"github.com/otakulab/media-sync/pkg/mediadb/dao"
)

// Report persistence runs on the base connection, outside the consistency
// engine's transaction chain: a failed reconciliation must still leave its
// audit trail behind.

// CreateReport inserts a fresh audit report row
func (s *Store) CreateReport(ctx context.Context, report *dao.ConsistencyReportDao) error {
	report.UpdatedAt = time.Now().UTC()
	if _, err := s.db.NewInsert().Model(report).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create consistency report: %w", err)
	}
	return nil
}

// UpdateReport persists the current state of an audit report row
func (s *Store) UpdateReport(ctx context.Context, report *dao.ConsistencyReportDao) error {
	report.UpdatedAt = time.Now().UTC()
	_, err := s.db.NewUpdate().
		Model(report).
		Column("status", "completed_at", "conflicts_found", "conflicts_resolved",
			"conflicts_failed", "strategy", "error", "details", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update consistency report %s: %w", report.ReportID, err)
	}
	return nil
}

// ListReports returns the most recent audit reports, newest first
func (s *Store) ListReports(ctx context.Context, limit int) ([]dao.ConsistencyReportDao, error) {
	var rows []dao.ConsistencyReportDao
	err := s.db.NewSelect().Model(&rows).Order("started_at DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list consistency reports: %w", err)
	}
	return rows, nil
}
