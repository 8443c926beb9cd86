package dbutil

import (
	"context"
	"testing"

	"github.com/uptrace/bun"

	"github.com/otakulab/media-sync/pkg/config"
	"github.com/otakulab/media-sync/pkg/mediadb/dao"
	dbmigrations "github.com/otakulab/media-sync/pkg/dbutil/migrations"
)

// SetupTestDB opens a fresh in-memory SQLite database with the full schema
// applied and registers cleanup on the test
func SetupTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	cfg := &config.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
	}

	db, err := ConnectDB(cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = dbmigrations.CreateSchema(ctx, db,
		&dao.AnimeDao{},
		&dao.ParsedFileDao{},
		&dao.ConsistencyReportDao{},
	)
	if err != nil {
		_ = db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// AssertTableExists checks if a table exists in the database
func AssertTableExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	ctx := context.Background()

	var count int
	err := db.NewSelect().
		ColumnExpr("COUNT(*)").
		TableExpr("sqlite_master").
		Where("type = 'table' AND name = ?", tableName).
		Scan(ctx, &count)
	if err != nil {
		t.Fatalf("failed to check if table %s exists: %v", tableName, err)
	}
	if count == 0 {
		t.Errorf("table %s does not exist", tableName)
	}
}

// AssertTableNotExists checks that a table is absent from the database
func AssertTableNotExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	ctx := context.Background()

	var count int
	err := db.NewSelect().
		ColumnExpr("COUNT(*)").
		TableExpr("sqlite_master").
		Where("type = 'table' AND name = ?", tableName).
		Scan(ctx, &count)
	if err != nil {
		t.Fatalf("failed to check if table %s exists: %v", tableName, err)
	}
	if count != 0 {
		t.Errorf("table %s still exists", tableName)
	}
}

// AssertIndexExists checks if an index exists in the database
func AssertIndexExists(t *testing.T, db *bun.DB, indexName string) {
	t.Helper()
	ctx := context.Background()

	var count int
	err := db.NewSelect().
		ColumnExpr("COUNT(*)").
		TableExpr("sqlite_master").
		Where("type = 'index' AND name = ?", indexName).
		Scan(ctx, &count)
	if err != nil {
		t.Fatalf("failed to check if index %s exists: %v", indexName, err)
	}
	if count == 0 {
		t.Errorf("index %s does not exist", indexName)
	}
}

// AssertRowCount checks if a table has the expected number of rows
func AssertRowCount(t *testing.T, db *bun.DB, tableName string, expected int) {
	t.Helper()
	ctx := context.Background()

	var count int
	err := db.NewSelect().
		TableExpr("?", bun.Ident(tableName)).
		ColumnExpr("COUNT(*)").
		Scan(ctx, &count)
	if err != nil {
		t.Fatalf("failed to count rows in table %s: %v", tableName, err)
	}
	if count != expected {
		t.Errorf("table %s: expected %d rows, got %d", tableName, expected, count)
	}
}
