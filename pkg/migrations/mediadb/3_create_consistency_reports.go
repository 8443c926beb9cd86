package mediadb

import (
	"context"
	"log"

	mghelper "github.com/otakulab/media-sync/pkg/dbutil/migrations"
	"github.com/otakulab/media-sync/pkg/mediadb/dao"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating consistency_reports table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.ConsistencyReportDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.ConsistencyReportDao{}, "job_id", "started_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping consistency_reports table...")
		return mghelper.DropTables(ctx, db, &dao.ConsistencyReportDao{})
	})
}
