package dbutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/otakulab/media-sync/pkg/config"
)

// ConnectDB opens the embedded SQLite database described by cfg
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	ctx := context.Background()

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under the consistency scheduler.
	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 1
	}
	sqldb.SetMaxOpenConns(maxConns)
	sqldb.SetMaxIdleConns(maxConns)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Path, err)
	}

	return db, nil
}

func dsn(cfg *config.DatabaseConfig) string {
	params := url.Values{}
	if cfg.BusyTimeoutMS > 0 {
		params.Set("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeoutMS))
	}
	if cfg.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	if len(params) == 0 {
		return "file:" + cfg.Path
	}
	return "file:" + cfg.Path + "?" + params.Encode()
}
