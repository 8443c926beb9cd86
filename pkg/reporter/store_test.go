package reporter

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/otakulab/media-sync/pkg/consistency"
	"github.com/otakulab/media-sync/pkg/dbutil"
	"github.com/otakulab/media-sync/pkg/mediadb"
)

func TestStore_ReportLifecycle(t *testing.T) {
	ctx := context.Background()
	db := mediadb.NewStore(dbutil.SetupTestDB(t))
	rep := NewStore(db, zap.NewNop())

	handle, err := rep.CreateReport(ctx, "nightly", "consistency_check", time.Now())
	if err != nil {
		t.Fatalf("CreateReport() failed: %v", err)
	}
	if handle == "" {
		t.Fatal("expected non-empty handle")
	}

	conflicts := []consistency.DataConflict{
		{
			Type:       consistency.MissingInCache,
			EntityType: consistency.EntityAnimeMetadata,
			EntityID:   1,
			Severity:   consistency.SeverityMedium,
			Details:    "entity 1 present in database but absent from cache",
		},
	}
	if err := rep.UpdateWithConflicts(ctx, handle, conflicts); err != nil {
		t.Fatalf("UpdateWithConflicts() failed: %v", err)
	}

	result := &consistency.ReconciliationResult{Success: true, Resolved: 1}
	if err := rep.UpdateWithResolution(ctx, handle, result, consistency.DatabaseWins, "success"); err != nil {
		t.Fatalf("UpdateWithResolution() failed: %v", err)
	}

	rows, err := db.ListReports(ctx, 10)
	if err != nil {
		t.Fatalf("ListReports() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 report, got %d", len(rows))
	}
	row := rows[0]
	if row.JobID != "nightly" || row.Status != "success" {
		t.Errorf("unexpected report: %+v", row)
	}
	if row.ConflictsFound != 1 || row.ConflictsResolved != 1 {
		t.Errorf("unexpected counts: %+v", row)
	}
	if row.Strategy != "database_wins" {
		t.Errorf("expected strategy recorded, got %q", row.Strategy)
	}
	if row.CompletedAt == nil {
		t.Error("expected completed_at set")
	}
	if !strings.Contains(row.Details, "missing_in_cache") {
		t.Errorf("expected conflict summary in details, got %q", row.Details)
	}

	// The handle is closed after resolution.
	if err := rep.UpdateWithResolution(ctx, handle, result, consistency.DatabaseWins, "success"); err == nil {
		t.Error("expected closed handle to be rejected")
	}
}

func TestStore_ErrorPathClosesReport(t *testing.T) {
	ctx := context.Background()
	db := mediadb.NewStore(dbutil.SetupTestDB(t))
	rep := NewStore(db, zap.NewNop())

	handle, err := rep.CreateReport(ctx, "nightly", "consistency_check", time.Now())
	if err != nil {
		t.Fatalf("CreateReport() failed: %v", err)
	}

	if err := rep.UpdateWithError(ctx, handle, "failed to report conflicts", "write failed", "error"); err != nil {
		t.Fatalf("UpdateWithError() failed: %v", err)
	}

	rows, err := db.ListReports(ctx, 10)
	if err != nil {
		t.Fatalf("ListReports() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 report, got %d", len(rows))
	}
	if rows[0].Status != "error" {
		t.Errorf("expected error status, got %q", rows[0].Status)
	}
	if !strings.Contains(rows[0].Error, "write failed") {
		t.Errorf("expected error details recorded, got %q", rows[0].Error)
	}

	if err := rep.UpdateWithError(ctx, handle, "again", "", "error"); err == nil {
		t.Error("expected closed handle to be rejected")
	}
}

func TestStore_UnknownHandle(t *testing.T) {
	db := mediadb.NewStore(dbutil.SetupTestDB(t))
	rep := NewStore(db, zap.NewNop())

	if err := rep.UpdateWithConflicts(context.Background(), "ghost", nil); err == nil {
		t.Fatal("expected unknown handle to be rejected")
	}
}
