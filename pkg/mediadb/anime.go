package mediadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/otakulab/media-sync/pkg/mediadb/dao"
)

// ListAnime returns all anime metadata rows ordered by id
func (s *Session) ListAnime(ctx context.Context) ([]dao.AnimeDao, error) {
	var rows []dao.AnimeDao
	err := s.idb().NewSelect().Model(&rows).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list anime metadata: %w", err)
	}
	return rows, nil
}

// GetAnimeByID retrieves one anime row by its external catalog id
func (s *Session) GetAnimeByID(ctx context.Context, id int64) (*dao.AnimeDao, error) {
	row := new(dao.AnimeDao)
	err := s.idb().NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get anime %d: %w", id, err)
	}
	return row, nil
}

// InsertAnime creates a new anime row. Version and timestamps receive their
// initial values here, not from the caller.
func (s *Session) InsertAnime(ctx context.Context, row *dao.AnimeDao) error {
	now := time.Now().UTC()
	if row.Version <= 0 {
		row.Version = 1
	}
	row.CreatedAt = now
	row.UpdatedAt = now
	if _, err := s.idb().NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert anime %d: %w", row.ID, err)
	}
	return nil
}

// UpdateAnime persists the row, bumping version by exactly 1 and refreshing
// updated_at. Every committed update moves the version forward; callers never
// set it themselves.
func (s *Session) UpdateAnime(ctx context.Context, row *dao.AnimeDao) error {
	row.Version++
	row.UpdatedAt = time.Now().UTC()
	res, err := s.idb().NewUpdate().
		Model(row).
		Column("title", "title_english", "episodes", "status", "rating", "version", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		row.Version--
		return fmt.Errorf("failed to update anime %d: %w", row.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		row.Version--
		return ErrNotFound
	}
	return nil
}

// DeleteAnime removes one anime row by id
func (s *Session) DeleteAnime(ctx context.Context, id int64) error {
	if _, err := s.idb().NewDelete().Model((*dao.AnimeDao)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete anime %d: %w", id, err)
	}
	return nil
}
