package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// ParsedFileDao is a data access object that maps directly to the 'parsed_files' table.
type ParsedFileDao struct {
	bun.BaseModel `bun:"table:parsed_files"`
	ID            int64     `json:"id" bun:"id,pk,autoincrement"`
	Path          string    `json:"path" bun:"path,notnull"`
	FileName      string    `json:"file_name" bun:"file_name,notnull"`
	Size          int64     `json:"size" bun:"size"`
	CRC32         string    `json:"crc32" bun:"crc32"`
	AnimeID       int64     `json:"anime_id" bun:"anime_id"`
	EpisodeNumber int       `json:"episode_number" bun:"episode_number"`
	ReleaseGroup  string    `json:"release_group" bun:"release_group"`
	Version       int64     `json:"version" bun:"version,notnull,default:1"`
	CreatedAt     time.Time `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `json:"updated_at" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Snapshot renders the row as a cache entry.
func (f *ParsedFileDao) Snapshot() map[string]any {
	return map[string]any{
		"id":             f.ID,
		"path":           f.Path,
		"file_name":      f.FileName,
		"size":           f.Size,
		"crc32":          f.CRC32,
		"anime_id":       f.AnimeID,
		"episode_number": int64(f.EpisodeNumber),
		"release_group":  f.ReleaseGroup,
		"version":        f.Version,
		"created_at":     f.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":     f.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ParsedFileFromSnapshot reconstructs a row from a cache entry with safe
// defaults. The primary key must be supplied by the caller.
func ParsedFileFromSnapshot(id int64, entry map[string]any) *ParsedFileDao {
	f := &ParsedFileDao{ID: id, Version: 1}
	if v, ok := AsString(entry["path"]); ok {
		f.Path = v
	}
	if v, ok := AsString(entry["file_name"]); ok {
		f.FileName = v
	}
	if v, ok := AsInt64(entry["size"]); ok {
		f.Size = v
	}
	if v, ok := AsString(entry["crc32"]); ok {
		f.CRC32 = v
	}
	if v, ok := AsInt64(entry["anime_id"]); ok {
		f.AnimeID = v
	}
	if v, ok := AsInt64(entry["episode_number"]); ok {
		f.EpisodeNumber = int(v)
	}
	if v, ok := AsString(entry["release_group"]); ok {
		f.ReleaseGroup = v
	}
	if v, ok := AsInt64(entry["version"]); ok {
		f.Version = v
	}
	if v, ok := AsTime(entry["updated_at"]); ok {
		f.UpdatedAt = v
	}
	return f
}

// ApplySnapshot overwrites all cache-supplied fields on an existing row,
// leaving the primary key and created_at untouched.
func (f *ParsedFileDao) ApplySnapshot(entry map[string]any) {
	src := ParsedFileFromSnapshot(f.ID, entry)
	f.Path = src.Path
	f.FileName = src.FileName
	f.Size = src.Size
	f.CRC32 = src.CRC32
	f.AnimeID = src.AnimeID
	f.EpisodeNumber = src.EpisodeNumber
	f.ReleaseGroup = src.ReleaseGroup
}
