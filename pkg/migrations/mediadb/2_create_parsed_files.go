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
		log.Println("creating parsed_files table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.ParsedFileDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelUniqueIndexes(ctx, db, &dao.ParsedFileDao{}, "path"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.ParsedFileDao{}, "anime_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping parsed_files table...")
		return mghelper.DropTables(ctx, db, &dao.ParsedFileDao{})
	})
}
