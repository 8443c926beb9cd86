// Package cache defines the metadata cache boundary consumed by the
// consistency engine. The engine only depends on get/put/delete plus
// prefix enumeration; eviction policy belongs to the implementation.
package cache

import (
	"context"
	"fmt"
)

// Entry is one cached entity snapshot. Snapshots are flat field maps produced
// by the persistence DAOs; the redis backend round-trips them through JSON.
type Entry = map[string]any

// Cache is the boundary the consistency engine reads and writes through.
type Cache interface {
	// Get returns the entry at key and whether it was present.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Put stores the entry at key, overwriting any existing value.
	Put(ctx context.Context, key string, entry Entry) error
	// Delete removes the entry at key, reporting whether one existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Keys enumerates keys with the given prefix. Implementations that cannot
	// enumerate return ErrEnumerationUnsupported; callers degrade gracefully.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ErrEnumerationUnsupported marks a cache backend without key enumeration.
// Only the missing-in-database detection direction depends on it.
var ErrEnumerationUnsupported = fmt.Errorf("cache backend does not support key enumeration")

// Key builds the canonical cache key for an entity. The format is part of the
// external contract: "anime_metadata:{id}", "parsed_file:{id}".
func Key(entityType string, id int64) string {
	return fmt.Sprintf("%s:%d", entityType, id)
}
