// Package retention keeps storage bounded by pruning aged rows from the
// raw and minute tiers. The hourly tier is never pruned.
//
// A cleanup pass is idempotent (delete-only-if-aged), so a transient
// failure self-heals on the next daily cycle without operator action.
package retention

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/homewatt/wattd/internal/logging"
	"github.com/homewatt/wattd/internal/storage/types"
)

var log = logging.Component("retention")

// metaKeyLastCleanup is where the last run's result is persisted for the
// reporting layer. Observability only, never control flow.
const metaKeyLastCleanup = "retention:last_cleanup"

// Store is the storage surface the enforcer needs.
type Store interface {
	RawReadingsBefore(ctx context.Context, cutoff int64) ([]types.RawReading, error)
	DeleteRawBefore(ctx context.Context, cutoff int64) (int64, error)
	DeleteMinutesBefore(ctx context.Context, cutoff int64) (int64, error)
	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, bool, error)
}

// Config holds retention configuration.
type Config struct {
	// RawHorizon is the maximum age of raw readings.
	RawHorizon time.Duration

	// MinuteHorizon is the maximum age of minute aggregates.
	MinuteHorizon time.Duration
}

// DefaultConfig returns the default horizons (7 days raw, 90 days minute).
func DefaultConfig() Config {
	return Config{
		RawHorizon:    types.TierRaw.DefaultRetention(),
		MinuteHorizon: types.TierMinute.DefaultRetention(),
	}
}

// CleanupResult holds the outcome of one cleanup pass.
type CleanupResult struct {
	RawDeleted    int64     `json:"raw_deleted"`
	MinuteDeleted int64     `json:"minute_deleted"`
	RawArchived   int64     `json:"raw_archived,omitempty"`
	ArchivePath   string    `json:"archive_path,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`

	// Errors from the pass. The pass keeps going past individual
	// failures; affected rows are retried by the next daily cycle.
	Errors []error `json:"-"`
}

// Stats holds cumulative enforcer statistics.
type Stats struct {
	LastRunTime   time.Time
	RunsCompleted int64
	RowsDeleted   int64
	RowsArchived  int64
	Errors        int64
}

// Enforcer prunes aged rows from the prunable tiers on demand.
// Scheduling is owned by the rollup service; the manual entry point and the
// daily tick both land on RunNow.
//
// Enforcer is safe for concurrent use.
type Enforcer struct {
	store    Store
	config   Config
	archiver *Archiver // nil when archiving is disabled

	// Concurrent triggers (daily tick, manual run) collapse into one pass.
	group singleflight.Group

	statsMu sync.Mutex
	stats   Stats
}

// New creates a retention enforcer. archiver may be nil.
func New(s Store, cfg Config, archiver *Archiver) *Enforcer {
	return &Enforcer{
		store:    s,
		config:   cfg,
		archiver: archiver,
	}
}

// RunNow executes one cleanup pass and returns the per-tier deleted counts.
// It is idempotent and safe to call at any time; a call that arrives while
// a pass is running shares that pass's result instead of starting another.
func (e *Enforcer) RunNow(ctx context.Context) CleanupResult {
	v, _, _ := e.group.Do("cleanup", func() (any, error) {
		return e.run(ctx), nil
	})
	return v.(CleanupResult)
}

// run performs a single cleanup pass.
func (e *Enforcer) run(ctx context.Context) CleanupResult {
	now := time.Now()
	cutoffRaw := now.Add(-e.config.RawHorizon).Unix()
	cutoffMinute := now.Add(-e.config.MinuteHorizon).Unix()

	var result CleanupResult

	// Archive expiring raw rows first when enabled. If the export fails
	// the raw delete is skipped for this pass so no data is lost; the
	// rows are still there for the next cycle.
	deleteRaw := true
	if e.archiver != nil {
		archived, path, err := e.archiveRaw(ctx, cutoffRaw, now)
		if err != nil {
			log.Error("raw archive failed, raw delete deferred", "error", err)
			result.Errors = append(result.Errors, err)
			deleteRaw = false
		} else {
			result.RawArchived = archived
			result.ArchivePath = path
		}
	}

	if deleteRaw {
		n, err := e.store.DeleteRawBefore(ctx, cutoffRaw)
		if err != nil {
			log.Error("raw cleanup failed", "cutoff", cutoffRaw, "error", err)
			result.Errors = append(result.Errors, err)
		} else {
			result.RawDeleted = n
		}
	}

	n, err := e.store.DeleteMinutesBefore(ctx, cutoffMinute)
	if err != nil {
		log.Error("minute cleanup failed", "cutoff", cutoffMinute, "error", err)
		result.Errors = append(result.Errors, err)
	} else {
		result.MinuteDeleted = n
	}

	// Hourly rows are never deleted, regardless of age.

	result.CompletedAt = time.Now()
	e.persistResult(ctx, result)
	e.recordStats(result)

	log.Info("cleanup complete",
		"raw_deleted", result.RawDeleted,
		"minute_deleted", result.MinuteDeleted,
		"raw_archived", result.RawArchived,
		"errors", len(result.Errors))
	return result
}

// archiveRaw exports the rows that are about to expire.
func (e *Enforcer) archiveRaw(ctx context.Context, cutoff int64, runTime time.Time) (int64, string, error) {
	rows, err := e.store.RawReadingsBefore(ctx, cutoff)
	if err != nil {
		return 0, "", err
	}
	if len(rows) == 0 {
		return 0, "", nil
	}
	path, err := e.archiver.ArchiveRaw(rows, runTime)
	if err != nil {
		return 0, "", err
	}
	return int64(len(rows)), path, nil
}

// persistResult records the run in the meta table for the reporting layer.
func (e *Enforcer) persistResult(ctx context.Context, result CleanupResult) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Error("marshal cleanup result", "error", err)
		return
	}
	if err := e.store.SetMeta(ctx, metaKeyLastCleanup, string(data)); err != nil {
		log.Error("persist cleanup result", "error", err)
	}
}

// LastResult returns the persisted result of the most recent cleanup pass.
// ok is false when no pass has completed yet.
func (e *Enforcer) LastResult(ctx context.Context) (CleanupResult, bool, error) {
	data, ok, err := e.store.GetMeta(ctx, metaKeyLastCleanup)
	if err != nil || !ok {
		return CleanupResult{}, false, err
	}

	var result CleanupResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return CleanupResult{}, false, err
	}
	return result, true, nil
}

// recordStats folds a pass into the cumulative statistics.
func (e *Enforcer) recordStats(result CleanupResult) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.LastRunTime = result.CompletedAt
	e.stats.RunsCompleted++
	e.stats.RowsDeleted += result.RawDeleted + result.MinuteDeleted
	e.stats.RowsArchived += result.RawArchived
	e.stats.Errors += int64(len(result.Errors))
}

// Stats returns cumulative statistics.
func (e *Enforcer) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}
