// Package consistency implements drift detection and reconciliation between
// the metadata cache and the embedded store.
package consistency

import (
	"fmt"
	"time"
)

// ConflictType classifies a detected discrepancy
type ConflictType string

const (
	MissingInCache    ConflictType = "missing_in_cache"
	MissingInDatabase ConflictType = "missing_in_database"
	VersionMismatch   ConflictType = "version_mismatch"
	DataMismatch      ConflictType = "data_mismatch"
	TimestampMismatch ConflictType = "timestamp_mismatch"
	// ValidationFailure is the synthetic type carried by the single critical
	// conflict emitted when an entire validation pass fails.
	ValidationFailure ConflictType = "validation_failure"
)

// Severity grades how urgent a conflict is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Entity types the validator understands. EntityValidationError marks the
// synthetic conflict emitted when a whole validation pass fails.
const (
	EntityAnimeMetadata   = "anime_metadata"
	EntityParsedFile      = "parsed_file"
	EntityValidationError = "validation_error"
)

// Strategy selects how conflicts are resolved
type Strategy string

const (
	// DatabaseWins treats the store as the source of truth.
	DatabaseWins Strategy = "database_wins"
	// CacheWins treats the cache as the source of truth.
	CacheWins Strategy = "cache_wins"
	// LastModifiedWins compares last-updated timestamps and lets the newer
	// side win; the store wins when neither side is parseable.
	LastModifiedWins Strategy = "last_modified_wins"
	// ManualReview marks conflicts resolved without writing either side.
	ManualReview Strategy = "manual_review"
)

// ParseStrategy converts a config string into a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case DatabaseWins, CacheWins, LastModifiedWins, ManualReview:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown reconciliation strategy %q", s)
	}
}

// DataConflict is one detected discrepancy between the cached and persisted
// copy of an entity. Conflicts are immutable once created; a single entity
// pair may yield several conflicts, one per mismatched field, and they are
// never deduplicated.
type DataConflict struct {
	Type       ConflictType   `json:"conflict_type"`
	EntityType string         `json:"entity_type"`
	EntityID   int64          `json:"entity_id"`
	CacheData  map[string]any `json:"cache_data,omitempty"`
	DBData     map[string]any `json:"db_data,omitempty"`
	Severity   Severity       `json:"severity"`
	Details    string         `json:"details"`
	DetectedAt time.Time      `json:"detected_at"`
}

// ReconciliationResult summarizes one reconciliation batch.
// Success holds exactly when no conflict failed to resolve.
type ReconciliationResult struct {
	Success   bool      `json:"success"`
	Strategy  Strategy  `json:"strategy_used"`
	Resolved  int       `json:"conflicts_resolved"`
	Failed    int       `json:"conflicts_failed"`
	Details   []string  `json:"details"`
	Errors    []string  `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}
