package consistency

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/otakulab/media-sync/internal/metrics"
	"github.com/otakulab/media-sync/pkg/cache"
	"github.com/otakulab/media-sync/pkg/mediadb"
	"github.com/otakulab/media-sync/pkg/mediadb/dao"
)

// Key fields compared one by one during drift detection. Each differing
// field yields its own DataMismatch conflict.
var (
	animeKeyFields      = []string{"title", "title_english", "episodes", "status", "rating"}
	parsedFileKeyFields = []string{"path", "file_name", "size", "crc32", "anime_id", "episode_number", "release_group"}
)

// Validator performs the read-only diff between cache and store, one entity
// type at a time. It never returns an error: whole-pass failures collapse
// into a single critical synthetic conflict.
type Validator struct {
	store  *mediadb.Store
	cache  cache.Cache
	logger *zap.Logger
}

// NewValidator creates a consistency validator
func NewValidator(store *mediadb.Store, c cache.Cache, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{store: store, cache: c, logger: logger}
}

type snapshotRow struct {
	id   int64
	snap map[string]any
}

// ValidateAll runs every per-type pass in fixed order and concatenates the
// findings. It never raises; see validatePass for failure downgrades.
func (v *Validator) ValidateAll(ctx context.Context) []DataConflict {
	start := time.Now()
	defer func() {
		metrics.ValidationDuration.Observe(time.Since(start).Seconds())
	}()

	conflicts := v.validatePass(ctx, EntityAnimeMetadata, animeKeyFields, v.loadAnime)
	conflicts = append(conflicts, v.validatePass(ctx, EntityParsedFile, parsedFileKeyFields, v.loadParsedFiles)...)

	v.logger.Info("consistency validation completed",
		zap.Int("conflicts", len(conflicts)),
		zap.Duration("duration", time.Since(start)))
	return conflicts
}

// ValidateAnime checks only the anime metadata entity type
func (v *Validator) ValidateAnime(ctx context.Context) []DataConflict {
	return v.validatePass(ctx, EntityAnimeMetadata, animeKeyFields, v.loadAnime)
}

// ValidateParsedFiles checks only the parsed file entity type
func (v *Validator) ValidateParsedFiles(ctx context.Context) []DataConflict {
	return v.validatePass(ctx, EntityParsedFile, parsedFileKeyFields, v.loadParsedFiles)
}

func (v *Validator) loadAnime(ctx context.Context, sess *mediadb.Session) ([]snapshotRow, error) {
	rows, err := sess.ListAnime(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]snapshotRow, len(rows))
	for i := range rows {
		out[i] = snapshotRow{id: rows[i].ID, snap: rows[i].Snapshot()}
	}
	return out, nil
}

func (v *Validator) loadParsedFiles(ctx context.Context, sess *mediadb.Session) ([]snapshotRow, error) {
	rows, err := sess.ListParsedFiles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]snapshotRow, len(rows))
	for i := range rows {
		out[i] = snapshotRow{id: rows[i].ID, snap: rows[i].Snapshot()}
	}
	return out, nil
}

// validatePass diffs one entity type inside a single read transaction.
// Any failure of the pass as a whole (store error, panic) is downgraded to
// exactly one critical validation_error conflict.
func (v *Validator) validatePass(
	ctx context.Context,
	entityType string,
	keyFields []string,
	load func(context.Context, *mediadb.Session) ([]snapshotRow, error),
) (conflicts []DataConflict) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("validation pass panicked",
				zap.String("entity_type", entityType),
				zap.Any("panic", r))
			conflicts = []DataConflict{v.validationFailure(entityType, fmt.Sprintf("panic: %v", r))}
		}
	}()

	sess := v.store.NewSession()
	if err := sess.Begin(ctx); err != nil {
		return []DataConflict{v.validationFailure(entityType, err.Error())}
	}
	// Read-only pass: the transaction only pins a consistent view.
	defer func() {
		if sess.InTransaction() {
			_ = sess.Rollback(ctx)
		}
	}()

	rows, err := load(ctx, sess)
	if err != nil {
		return []DataConflict{v.validationFailure(entityType, err.Error())}
	}

	persisted := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		persisted[row.id] = struct{}{}

		key := cache.Key(entityType, row.id)
		entry, found, err := v.cache.Get(ctx, key)
		if err != nil {
			return []DataConflict{v.validationFailure(entityType, err.Error())}
		}
		if !found {
			conflicts = append(conflicts, v.newConflict(MissingInCache, entityType, row.id, nil, row.snap,
				SeverityMedium, fmt.Sprintf("entity %d present in database but absent from cache", row.id)))
			continue
		}
		conflicts = append(conflicts, v.compareEntry(entityType, row.id, keyFields, row.snap, entry)...)
	}

	conflicts = append(conflicts, v.findOrphanedEntries(ctx, entityType, persisted)...)
	return conflicts
}

// compareEntry diffs one cached entry against its persisted snapshot.
func (v *Validator) compareEntry(entityType string, id int64, keyFields []string, dbSnap, entry map[string]any) []DataConflict {
	var conflicts []DataConflict

	dbVer, _ := dao.AsInt64(dbSnap["version"])
	cacheVer, ok := dao.AsInt64(entry["version"])
	if !ok {
		cacheVer = 0
	}
	if delta := dbVer - cacheVer; delta != 0 {
		severity := SeverityMedium
		if delta > 1 || delta < -1 {
			severity = SeverityHigh
		}
		conflicts = append(conflicts, v.newConflict(VersionMismatch, entityType, id, entry, dbSnap, severity,
			fmt.Sprintf("version drift: database=%d cache=%d", dbVer, cacheVer)))
	}

	// Unparsable timestamps count as absent; absence is never a conflict.
	dbTime, dbOK := dao.AsTime(dbSnap["updated_at"])
	cacheTime, cacheOK := dao.AsTime(entry["updated_at"])
	if dbOK && cacheOK && !dbTime.Equal(cacheTime) {
		conflicts = append(conflicts, v.newConflict(TimestampMismatch, entityType, id, entry, dbSnap, SeverityLow,
			fmt.Sprintf("updated_at drift: database=%s cache=%s",
				dbTime.UTC().Format(time.RFC3339Nano), cacheTime.UTC().Format(time.RFC3339Nano))))
	}

	for _, field := range keyFields {
		if !fieldsEqual(dbSnap[field], entry[field]) {
			conflicts = append(conflicts, v.newConflict(DataMismatch, entityType, id, entry, dbSnap, SeverityMedium,
				fmt.Sprintf("field %q differs: database=%v cache=%v", field, dbSnap[field], entry[field])))
		}
	}
	return conflicts
}

// findOrphanedEntries reports cache entries with no persisted row. Backends
// without key enumeration make this direction inert, which is a documented
// limitation rather than a failure.
func (v *Validator) findOrphanedEntries(ctx context.Context, entityType string, persisted map[int64]struct{}) []DataConflict {
	keys, err := v.cache.Keys(ctx, entityType+":")
	if err != nil {
		v.logger.Debug("cache key enumeration unavailable, skipping missing-in-database detection",
			zap.String("entity_type", entityType),
			zap.Error(err))
		return nil
	}

	var conflicts []DataConflict
	for _, key := range keys {
		idStr, ok := strings.CutPrefix(key, entityType+":")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			v.logger.Debug("skipping malformed cache key", zap.String("key", key))
			continue
		}
		if _, exists := persisted[id]; exists {
			continue
		}
		entry, found, err := v.cache.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		conflicts = append(conflicts, v.newConflict(MissingInDatabase, entityType, id, entry, nil, SeverityHigh,
			fmt.Sprintf("entity %d present in cache but absent from database", id)))
	}
	return conflicts
}

func (v *Validator) newConflict(ct ConflictType, entityType string, id int64, cacheData, dbData map[string]any, severity Severity, details string) DataConflict {
	metrics.ConflictsDetected.WithLabelValues(entityType, string(ct), string(severity)).Inc()
	return DataConflict{
		Type:       ct,
		EntityType: entityType,
		EntityID:   id,
		CacheData:  cacheData,
		DBData:     dbData,
		Severity:   severity,
		Details:    details,
		DetectedAt: time.Now().UTC(),
	}
}

func (v *Validator) validationFailure(entityType, message string) DataConflict {
	v.logger.Error("validation pass failed",
		zap.String("entity_type", entityType),
		zap.String("error", message))
	return v.newConflict(ValidationFailure, EntityValidationError, 0, nil, nil, SeverityCritical,
		fmt.Sprintf("validation of %s failed: %s", entityType, message))
}

// fieldsEqual compares two snapshot values across representations: the redis
// backend hands back float64 where the store snapshot holds int64.
func fieldsEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if ai, aok := dao.AsInt64(a); aok {
		if bi, bok := dao.AsInt64(b); bok {
			return ai == bi
		}
	}
	if as, aok := dao.AsString(a); aok {
		if bs, bok := dao.AsString(b); bok {
			return as == bs
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
