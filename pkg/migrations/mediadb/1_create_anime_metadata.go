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
		log.Println("creating anime_metadata table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.AnimeDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.AnimeDao{}, "updated_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping anime_metadata table...")
		return mghelper.DropTables(ctx, db, &dao.AnimeDao{})
	})
}
