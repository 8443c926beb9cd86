package consistency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/otakulab/media-sync/pkg/cache"
	"github.com/otakulab/media-sync/pkg/dbutil"
	"github.com/otakulab/media-sync/pkg/mediadb"
	"github.com/otakulab/media-sync/pkg/mediadb/dao"
)

// mockCache lets tests inject failures at the cache boundary
type mockCache struct {
	GetFunc    func(ctx context.Context, key string) (cache.Entry, bool, error)
	PutFunc    func(ctx context.Context, key string, entry cache.Entry) error
	DeleteFunc func(ctx context.Context, key string) (bool, error)
	KeysFunc   func(ctx context.Context, prefix string) ([]string, error)
}

func (m *mockCache) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, false, nil
}

func (m *mockCache) Put(ctx context.Context, key string, entry cache.Entry) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, entry)
	}
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return false, nil
}

func (m *mockCache) Keys(ctx context.Context, prefix string) ([]string, error) {
	if m.KeysFunc != nil {
		return m.KeysFunc(ctx, prefix)
	}
	return nil, cache.ErrEnumerationUnsupported
}

func newTestStore(t *testing.T) *mediadb.Store {
	t.Helper()
	return mediadb.NewStore(dbutil.SetupTestDB(t))
}

func insertAnime(t *testing.T, store *mediadb.Store, id int64, title string) *dao.AnimeDao {
	t.Helper()
	row := &dao.AnimeDao{
		ID:       id,
		Title:    title,
		Episodes: 12,
		Status:   "finished",
		Rating:   decimal.RequireFromString("7.5"),
	}
	if err := store.NewSession().InsertAnime(context.Background(), row); err != nil {
		t.Fatalf("InsertAnime() failed: %v", err)
	}
	return row
}

func cacheSnapshot(t *testing.T, c cache.Cache, entityType string, id int64, snap map[string]any) {
	t.Helper()
	if err := c.Put(context.Background(), cache.Key(entityType, id), snap); err != nil {
		t.Fatalf("cache Put() failed: %v", err)
	}
}

func conflictsOfType(conflicts []DataConflict, ct ConflictType) []DataConflict {
	var out []DataConflict
	for _, c := range conflicts {
		if c.Type == ct {
			out = append(out, c)
		}
	}
	return out
}

func TestValidator_SyncedStateHasNoConflicts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mem := cache.NewMemory(0)

	row := insertAnime(t, store, 1, "Cowboy Bebop")
	cacheSnapshot(t, mem, EntityAnimeMetadata, 1, row.Snapshot())

	conflicts := NewValidator(store, mem, zap.NewNop()).ValidateAll(ctx)
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %v", conflicts)
	}
}

func TestValidator_MissingInCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mem := cache.NewMemory(0)

	insertAnime(t, store, 1, "Cowboy Bebop")

	conflicts := NewValidator(store, mem, zap.NewNop()).ValidateAnime(ctx)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d: %v", len(conflicts), conflicts)
	}
	c := conflicts[0]
	if c.Type != MissingInCache {
		t.Errorf("expected MissingInCache, got %s", c.Type)
	}
	if c.Severity != SeverityMedium {
		t.Errorf("expected medium severity, got %s", c.Severity)
	}
	if c.EntityType != EntityAnimeMetadata || c.EntityID != 1 {
		t.Errorf("unexpected conflict target: %s/%d", c.EntityType, c.EntityID)
	}
	if c.DBData == nil {
		t.Error("expected the persisted snapshot on the conflict")
	}
}

func TestValidator_VersionMismatchSeverity(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name      string
		cacheLags int64
		want      Severity
	}{
		{"delta of one is medium", 1, SeverityMedium},
		{"delta above one is high", 2, SeverityHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			mem := cache.NewMemory(0)

			row := insertAnime(t, store, 1, "Cowboy Bebop")
			sess := store.NewSession()
			if err := sess.UpdateAnime(ctx, row); err != nil {
				t.Fatalf("UpdateAnime() failed: %v", err)
			}
			if err := sess.UpdateAnime(ctx, row); err != nil {
				t.Fatalf("UpdateAnime() failed: %v", err)
			}

			fresh, err := sess.GetAnimeByID(ctx, 1)
			if err != nil {
				t.Fatalf("GetAnimeByID() failed: %v", err)
			}
			snap := fresh.Snapshot()
			snap["version"] = fresh.Version - tc.cacheLags
			cacheSnapshot(t, mem, EntityAnimeMetadata, 1, snap)

			conflicts := NewValidator(store, mem, zap.NewNop()).ValidateAnime(ctx)
			vm := conflictsOfType(conflicts, VersionMismatch)
			if len(vm) != 1 {
				t.Fatalf("expected 1 version mismatch, got %v", conflicts)
			}
			if vm[0].Severity != tc.want {
				t.Errorf("expected severity %s, got %s", tc.want, vm[0].Severity)
			}
		})
	}
}

func TestValidator_DataMismatchPerField(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mem := cache.NewMemory(0)

	row := insertAnime(t, store, 1, "Cowboy Bebop")
	snap := row.Snapshot()
	snap["title"] = "Cowboy Beebop"
	snap["episodes"] = int64(24)
	cacheSnapshot(t, mem, EntityAnimeMetadata, 1, snap)

	conflicts := NewValidator(store, mem, zap.NewNop()).ValidateAnime(ctx)
	dm := conflictsOfType(conflicts, DataMismatch)
	if len(dm) != 2 {
		t.Fatalf("expected one conflict per differing field, got %v", conflicts)
	}
	for _, c := range dm {
		if c.Severity != SeverityMedium {
			t.Errorf("expected medium severity, got %s", c.Severity)
		}
	}
}

func TestValidator_TimestampMismatchIsLow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mem := cache.NewMemory(0)

	row := insertAnime(t, store, 1, "Cowboy Bebop")
	snap := row.Snapshot()
	snap["updated_at"] = row.UpdatedAt.Add(-time.Hour).UTC().Format(time.RFC3339Nano)
	cacheSnapshot(t, mem, EntityAnimeMetadata, 1, snap)

	conflicts := NewValidator(store, mem, zap.NewNop()).ValidateAnime(ctx)
	tm := conflictsOfType(conflicts, TimestampMismatch)
	if len(tm) != 1 {
		t.Fatalf("expected 1 timestamp mismatch, got %v", conflicts)
	}
	if tm[0].Severity != SeverityLow {
		t.Errorf("expected low severity, got %s", tm[0].Severity)
	}
}

func TestValidator_UnparsableCacheTimestampIsNotAConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mem := cache.NewMemory(0)

	row := insertAnime(t, store, 1, "Cowboy Bebop")
	snap := row.Snapshot()
	snap["updated_at"] = "not-a-timestamp"
	cacheSnapshot(t, mem, EntityAnimeMetadata, 1, snap)

	conflicts := NewValidator(store, mem, zap.NewNop()).ValidateAnime(ctx)
	if len(conflictsOfType(conflicts, TimestampMismatch)) != 0 {
		t.Errorf("expected unparsable timestamp to be treated as absent, got %v", conflicts)
	}
}

func TestValidator_OrphanedCacheEntry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mem := cache.NewMemory(0)

	cacheSnapshot(t, mem, EntityAnimeMetadata, 42, map[string]any{
		"id": int64(42), "title": "Phantom", "version": int64(1),
	})
	// Malformed keys are skipped, not reported.
	_ = mem.Put(ctx, "anime_metadata:not-a-number", map[string]any{})

	conflicts := NewValidator(store, mem, zap.NewNop()).ValidateAnime(ctx)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %v", conflicts)
	}
	c := conflicts[0]
	if c.Type != MissingInDatabase || c.Severity != SeverityHigh {
		t.Errorf("expected high-severity MissingInDatabase, got %s/%s", c.Type, c.Severity)
	}
	if c.EntityID != 42 {
		t.Errorf("expected entity 42, got %d", c.EntityID)
	}
}

func TestValidator_EnumerationUnsupportedDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	row := insertAnime(t, store, 1, "Cowboy Bebop")
	snap := row.Snapshot()
	mc := &mockCache{
		GetFunc: func(_ context.Context, key string) (cache.Entry, bool, error) {
			if key == cache.Key(EntityAnimeMetadata, 1) {
				return snap, true, nil
			}
			return nil, false, nil
		},
	}

	conflicts := NewValidator(store, mc, zap.NewNop()).ValidateAll(ctx)
	if len(conflicts) != 0 {
		t.Fatalf("expected enumeration failure to be silent, got %v", conflicts)
	}
}

func TestValidator_CacheFailureBecomesCriticalConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	insertAnime(t, store, 1, "Cowboy Bebop")
	mc := &mockCache{
		GetFunc: func(context.Context, string) (cache.Entry, bool, error) {
			return nil, false, errors.New("connection refused")
		},
	}

	conflicts := NewValidator(store, mc, zap.NewNop()).ValidateAnime(ctx)
	if len(conflicts) != 1 {
		t.Fatalf("expected exactly one synthetic conflict, got %v", conflicts)
	}
	c := conflicts[0]
	if c.Type != ValidationFailure || c.Severity != SeverityCritical {
		t.Errorf("expected critical validation failure, got %s/%s", c.Type, c.Severity)
	}
	if c.EntityType != EntityValidationError {
		t.Errorf("expected synthetic entity type, got %s", c.EntityType)
	}
}

func TestValidator_StoreFailureNeverRaises(t *testing.T) {
	ctx := context.Background()
	db := dbutil.SetupTestDB(t)
	store := mediadb.NewStore(db)
	_ = db.Close()

	conflicts := NewValidator(store, cache.NewMemory(0), zap.NewNop()).ValidateAll(ctx)
	if len(conflicts) != 2 {
		t.Fatalf("expected one synthetic conflict per pass, got %v", conflicts)
	}
	for _, c := range conflicts {
		if c.Type != ValidationFailure || c.Severity != SeverityCritical {
			t.Errorf("expected critical validation failure, got %s/%s", c.Type, c.Severity)
		}
	}
}
