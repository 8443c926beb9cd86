package migrations

import (
	"context"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/otakulab/media-sync/pkg/config"
	"github.com/otakulab/media-sync/pkg/dbutil"
	"github.com/otakulab/media-sync/pkg/migrations/mediadb"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := dbutil.ConnectDB(&config.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestMediaDBMigrations_Apply(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, mediadb.Migrations)

	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	expectedTables := []string{
		"anime_metadata",
		"parsed_files",
		"consistency_reports",
		"bun_migrations",
	}
	for _, table := range expectedTables {
		dbutil.AssertTableExists(t, db, table)
	}

	dbutil.AssertIndexExists(t, db, "idx_anime_metadata_updated_at")
	dbutil.AssertIndexExists(t, db, "idx_parsed_files_path")
	dbutil.AssertIndexExists(t, db, "idx_parsed_files_anime_id")
	dbutil.AssertIndexExists(t, db, "idx_consistency_reports_job_id")
	dbutil.AssertIndexExists(t, db, "idx_consistency_reports_started_at")
}

func TestMediaDBMigrations_Idempotency(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, mediadb.Migrations)

	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	_, err = migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("First Migrate() failed: %v", err)
	}

	// Second run should be a no-op, not a failure.
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Second Migrate() failed: %v", err)
	}
	if !group.IsZero() {
		t.Error("Expected no new migrations on second run")
	}

	dbutil.AssertTableExists(t, db, "anime_metadata")
	dbutil.AssertTableExists(t, db, "consistency_reports")
}

func TestMediaDBMigrations_Rollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, mediadb.Migrations)

	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	_, err = migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	dbutil.AssertTableExists(t, db, "anime_metadata")
	dbutil.AssertTableExists(t, db, "parsed_files")

	// All migrations run in one group, so rollback drops everything.
	group, err := migrator.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected rollback to process a migration")
	}

	dbutil.AssertTableNotExists(t, db, "consistency_reports")
	dbutil.AssertTableNotExists(t, db, "parsed_files")
	dbutil.AssertTableNotExists(t, db, "anime_metadata")
}
