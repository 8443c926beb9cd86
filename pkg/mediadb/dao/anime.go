package dao

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// AnimeDao is a data access object that maps directly to the 'anime_metadata' table.
// ID is the external catalog id, not an autoincrement key.
type AnimeDao struct {
	bun.BaseModel `bun:"table:anime_metadata"`
	ID            int64           `json:"id" bun:"id,pk"`
	Title         string          `json:"title" bun:"title,notnull"`
	TitleEnglish  string          `json:"title_english" bun:"title_english"`
	Episodes      int             `json:"episodes" bun:"episodes"`
	Status        string          `json:"status" bun:"status"`
	Rating        decimal.Decimal `json:"rating" bun:"rating,nullzero"`
	Version       int64           `json:"version" bun:"version,notnull,default:1"`
	CreatedAt     time.Time       `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time       `json:"updated_at" bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Snapshot renders the row as a cache entry. Field names double as the
// drift-detection vocabulary, so they must stay stable.
func (a *AnimeDao) Snapshot() map[string]any {
	return map[string]any{
		"id":            a.ID,
		"title":         a.Title,
		"title_english": a.TitleEnglish,
		"episodes":      int64(a.Episodes),
		"status":        a.Status,
		"rating":        a.Rating.String(),
		"version":       a.Version,
		"created_at":    a.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":    a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// AnimeFromSnapshot reconstructs a row from a cache entry, applying safe
// defaults for absent or malformed fields. The primary key must be supplied
// by the caller; created_at is never taken from the cache.
func AnimeFromSnapshot(id int64, entry map[string]any) *AnimeDao {
	a := &AnimeDao{ID: id, Version: 1}
	if v, ok := AsString(entry["title"]); ok {
		a.Title = v
	}
	if v, ok := AsString(entry["title_english"]); ok {
		a.TitleEnglish = v
	}
	if v, ok := AsInt64(entry["episodes"]); ok {
		a.Episodes = int(v)
	}
	if v, ok := AsString(entry["status"]); ok {
		a.Status = v
	}
	if v, ok := AsString(entry["rating"]); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			a.Rating = d
		}
	}
	if v, ok := AsInt64(entry["version"]); ok {
		a.Version = v
	}
	if v, ok := AsTime(entry["updated_at"]); ok {
		a.UpdatedAt = v
	}
	return a
}

// ApplySnapshot overwrites all cache-supplied fields on an existing row,
// leaving the primary key and created_at untouched.
func (a *AnimeDao) ApplySnapshot(entry map[string]any) {
	src := AnimeFromSnapshot(a.ID, entry)
	a.Title = src.Title
	a.TitleEnglish = src.TitleEnglish
	a.Episodes = src.Episodes
	a.Status = src.Status
	a.Rating = src.Rating
}
