package consistency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/otakulab/media-sync/internal/metrics"
	"github.com/otakulab/media-sync/pkg/cache"
	"github.com/otakulab/media-sync/pkg/mediadb"
	"github.com/otakulab/media-sync/pkg/mediadb/dao"
	"github.com/otakulab/media-sync/pkg/txmanager"
)

// lastModifiedFallbackField is consulted when a snapshot carries no
// updated_at under LastModifiedWins.
const lastModifiedFallbackField = "last_modified"

// Engine applies a resolution strategy to detected conflicts. Store writes
// run through the transaction manager; cache writes are direct.
type Engine struct {
	store  *mediadb.Store
	cache  cache.Cache
	tm     *txmanager.Manager
	logger *zap.Logger
}

// NewEngine creates a reconciliation engine
func NewEngine(store *mediadb.Store, c cache.Cache, tm *txmanager.Manager, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, cache: c, tm: tm, logger: logger}
}

// ReconcileConflicts resolves each conflict under the given strategy.
// Every conflict is isolated: a failure (or panic) in one resolution is
// counted and recorded, and the batch continues. The returned result is
// never nil and Success holds exactly when Failed == 0.
func (e *Engine) ReconcileConflicts(ctx context.Context, conflicts []DataConflict, strategy Strategy) *ReconciliationResult {
	result := &ReconciliationResult{
		Strategy:  strategy,
		Details:   []string{},
		Errors:    []string{},
		Timestamp: time.Now().UTC(),
	}

	for i := range conflicts {
		conflict := &conflicts[i]
		detail, err := e.resolveOne(ctx, conflict, strategy)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s %s/%d: %v", conflict.Type, conflict.EntityType, conflict.EntityID, err))
			metrics.ConflictsResolved.WithLabelValues(string(strategy), "failed").Inc()
			e.logger.Warn("conflict resolution failed",
				zap.String("conflict_type", string(conflict.Type)),
				zap.String("entity_type", conflict.EntityType),
				zap.Int64("entity_id", conflict.EntityID),
				zap.Error(err))
			continue
		}
		result.Resolved++
		result.Details = append(result.Details, detail)
		metrics.ConflictsResolved.WithLabelValues(string(strategy), "resolved").Inc()
	}

	result.Success = result.Failed == 0
	e.logger.Info("reconciliation batch completed",
		zap.String("strategy", string(strategy)),
		zap.Int("resolved", result.Resolved),
		zap.Int("failed", result.Failed))
	return result
}

// RecommendStrategy suggests a strategy from the shape of the conflict set:
// whichever side is missing data dominates, mismatches favor timestamps, and
// the store is the default source of truth.
func (e *Engine) RecommendStrategy(conflicts []DataConflict) Strategy {
	var missingCache, missingDB, mismatches int
	for _, c := range conflicts {
		switch c.Type {
		case MissingInCache:
			missingCache++
		case MissingInDatabase:
			missingDB++
		case VersionMismatch, DataMismatch, TimestampMismatch:
			mismatches++
		}
	}

	switch {
	case missingCache > missingDB && missingCache > mismatches:
		return DatabaseWins
	case missingDB > missingCache && missingDB > mismatches:
		return CacheWins
	case mismatches > missingCache && mismatches > missingDB:
		return LastModifiedWins
	default:
		return DatabaseWins
	}
}

// resolveOne dispatches a single conflict. Panics inside a resolution are
// converted to errors so one bad conflict never aborts the batch.
func (e *Engine) resolveOne(ctx context.Context, conflict *DataConflict, strategy Strategy) (detail string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolution panicked: %v", r)
		}
	}()

	if strategy == ManualReview {
		return fmt.Sprintf("%s/%d flagged for manual review", conflict.EntityType, conflict.EntityID), nil
	}
	if conflict.EntityType == EntityValidationError {
		return "", errors.New("validation failures cannot be auto-reconciled")
	}

	switch strategy {
	case DatabaseWins:
		return e.resolveDatabaseWins(ctx, conflict)
	case CacheWins:
		return e.resolveCacheWins(ctx, conflict)
	case LastModifiedWins:
		return e.resolveLastModifiedWins(ctx, conflict)
	default:
		return "", fmt.Errorf("unknown strategy %q", strategy)
	}
}

func (e *Engine) resolveDatabaseWins(ctx context.Context, conflict *DataConflict) (string, error) {
	switch conflict.Type {
	case MissingInDatabase:
		return "", errors.New("database is source of truth but holds no copy of this entity")
	default:
		return e.copyDatabaseToCache(ctx, conflict)
	}
}

func (e *Engine) resolveCacheWins(ctx context.Context, conflict *DataConflict) (string, error) {
	switch conflict.Type {
	case MissingInCache:
		return "", errors.New("cache is source of truth but holds no copy of this entity")
	default:
		return e.copyCacheToDatabase(ctx, conflict)
	}
}

func (e *Engine) resolveLastModifiedWins(ctx context.Context, conflict *DataConflict) (string, error) {
	switch conflict.Type {
	case MissingInCache:
		return e.copyDatabaseToCache(ctx, conflict)
	case MissingInDatabase:
		return e.copyCacheToDatabase(ctx, conflict)
	default:
		dbTime, dbOK := snapshotTime(conflict.DBData)
		cacheTime, cacheOK := snapshotTime(conflict.CacheData)
		switch {
		case dbOK && cacheOK && cacheTime.After(dbTime):
			return e.copyCacheToDatabase(ctx, conflict)
		case dbOK && cacheOK:
			return e.copyDatabaseToCache(ctx, conflict)
		case cacheOK && !dbOK:
			return e.copyCacheToDatabase(ctx, conflict)
		default:
			// Neither side parseable, or only the database has a timestamp:
			// the store wins.
			return e.copyDatabaseToCache(ctx, conflict)
		}
	}
}

// copyDatabaseToCache writes the persisted snapshot over the cache entry.
func (e *Engine) copyDatabaseToCache(ctx context.Context, conflict *DataConflict) (string, error) {
	snap := conflict.DBData
	if snap == nil {
		fresh, err := e.loadSnapshot(ctx, conflict.EntityType, conflict.EntityID)
		if err != nil {
			return "", err
		}
		snap = fresh
	}

	key := cache.Key(conflict.EntityType, conflict.EntityID)
	if err := e.cache.Put(ctx, key, snap); err != nil {
		return "", fmt.Errorf("failed to refresh cache entry %s: %w", key, err)
	}
	return fmt.Sprintf("copied %s/%d database -> cache", conflict.EntityType, conflict.EntityID), nil
}

// copyCacheToDatabase writes the cached entry into the store inside a managed
// transaction. Existing rows keep their primary key and created_at; the
// session bumps version by exactly 1 on update. Absent rows are reconstructed
// from the cache entry with safe defaults.
func (e *Engine) copyCacheToDatabase(ctx context.Context, conflict *DataConflict) (string, error) {
	if conflict.CacheData == nil {
		return "", errors.New("conflict carries no cache data to persist")
	}

	sess := e.store.NewSession()
	err := e.tm.WithTransaction(ctx, sess, false, func(ctx context.Context) error {
		switch conflict.EntityType {
		case EntityAnimeMetadata:
			return e.writeAnime(ctx, sess, conflict)
		case EntityParsedFile:
			return e.writeParsedFile(ctx, sess, conflict)
		default:
			return fmt.Errorf("unknown entity type %q", conflict.EntityType)
		}
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("copied %s/%d cache -> database", conflict.EntityType, conflict.EntityID), nil
}

func (e *Engine) writeAnime(ctx context.Context, sess *mediadb.Session, conflict *DataConflict) error {
	row, err := sess.GetAnimeByID(ctx, conflict.EntityID)
	switch {
	case errors.Is(err, mediadb.ErrNotFound):
		fresh := dao.AnimeFromSnapshot(conflict.EntityID, conflict.CacheData)
		if err := sess.InsertAnime(ctx, fresh); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		row.ApplySnapshot(conflict.CacheData)
		if err := sess.UpdateAnime(ctx, row); err != nil {
			return err
		}
	}
	e.tm.IncrementAffectedRows(1)
	return nil
}

func (e *Engine) writeParsedFile(ctx context.Context, sess *mediadb.Session, conflict *DataConflict) error {
	row, err := sess.GetParsedFileByID(ctx, conflict.EntityID)
	switch {
	case errors.Is(err, mediadb.ErrNotFound):
		fresh := dao.ParsedFileFromSnapshot(conflict.EntityID, conflict.CacheData)
		if err := sess.InsertParsedFile(ctx, fresh); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		row.ApplySnapshot(conflict.CacheData)
		if err := sess.UpdateParsedFile(ctx, row); err != nil {
			return err
		}
	}
	e.tm.IncrementAffectedRows(1)
	return nil
}

func (e *Engine) loadSnapshot(ctx context.Context, entityType string, id int64) (map[string]any, error) {
	sess := e.store.NewSession()
	switch entityType {
	case EntityAnimeMetadata:
		row, err := sess.GetAnimeByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return row.Snapshot(), nil
	case EntityParsedFile:
		row, err := sess.GetParsedFileByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return row.Snapshot(), nil
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
}

// snapshotTime extracts the last-modified timestamp from a snapshot, falling
// back to the legacy field name.
func snapshotTime(snap map[string]any) (time.Time, bool) {
	if snap == nil {
		return time.Time{}, false
	}
	if t, ok := dao.AsTime(snap["updated_at"]); ok {
		return t, true
	}
	return dao.AsTime(snap[lastModifiedFallbackField])
}
