package mediadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/otakulab/media-sync/pkg/mediadb/dao"
)

// ListParsedFiles returns all parsed file rows ordered by id
func (s *Session) ListParsedFiles(ctx context.Context) ([]dao.ParsedFileDao, error) {
	var rows []dao.ParsedFileDao
	err := s.idb().NewSelect().Model(&rows).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list parsed files: %w", err)
	}
	return rows, nil
}

// GetParsedFileByID retrieves one parsed file row by its internal id
func (s *Session) GetParsedFileByID(ctx context.Context, id int64) (*dao.ParsedFileDao, error) {
	row := new(dao.ParsedFileDao)
	err := s.idb().NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get parsed file %d: %w", id, err)
	}
	return row, nil
}

// InsertParsedFile creates a new parsed file row. When the row carries an
// explicit id (cache-sourced reconstruction) it is preserved.
func (s *Session) InsertParsedFile(ctx context.Context, row *dao.ParsedFileDao) error {
	now := time.Now().UTC()
	if row.Version <= 0 {
		row.Version = 1
	}
	row.CreatedAt = now
	row.UpdatedAt = now
	if _, err := s.idb().NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert parsed file: %w", err)
	}
	return nil
}

// UpdateParsedFile persists the row, bumping version by exactly 1 and
// refreshing updated_at.
func (s *Session) UpdateParsedFile(ctx context.Context, row *dao.ParsedFileDao) error {
	row.Version++
	row.UpdatedAt = time.Now().UTC()
	res, err := s.idb().NewUpdate().
		Model(row).
		Column("path", "file_name", "size", "crc32", "anime_id", "episode_number", "release_group", "version", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		row.Version--
		return fmt.Errorf("failed to update parsed file %d: %w", row.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		row.Version--
		return ErrNotFound
	}
	return nil
}

// DeleteParsedFile removes one parsed file row by id
func (s *Session) DeleteParsedFile(ctx context.Context, id int64) error {
	if _, err := s.idb().NewDelete().Model((*dao.ParsedFileDao)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete parsed file %d: %w", id, err)
	}
	return nil
}
