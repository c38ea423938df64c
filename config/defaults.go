// Package config provides configuration loading and documented defaults
// for the wattd telemetry pipeline.
//
// Values can be overridden via config.yaml; cmd/wattd flags override the
// file in turn.
package config

import "time"

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultDBPath is the default DuckDB database file.
	// Override via config: db.path
	DefaultDBPath = "wattd.db"
)

// =============================================================================
// Retention Defaults
// =============================================================================

const (
	// DefaultRawRetention is how long raw readings are kept. At one sample
	// every ~2 seconds this bounds the raw tier to ~300k rows per week.
	// Far longer than any realistic aggregation lag, so rollups always
	// find their source data.
	// Override via config: telemetry.retention.raw
	DefaultRawRetention = 7 * 24 * time.Hour

	// DefaultMinuteRetention is how long minute aggregates are kept.
	// The hourly tier is never pruned.
	// Override via config: telemetry.retention.minute
	DefaultMinuteRetention = 90 * 24 * time.Hour

	// DefaultRetentionHour is the local hour of day (0-23) at which the
	// daily retention run fires. 3 AM is assumed low-traffic.
	// Override via config: telemetry.retention.daily_hour
	DefaultRetentionHour = 3
)

// =============================================================================
// Rollup Defaults
// =============================================================================

const (
	// DefaultCatchUpDelay is how long after process start the one-shot
	// catch-up pass runs. The delay gives the meter poller time to resume
	// producing raw readings first.
	// Override via config: telemetry.catch_up_delay
	DefaultCatchUpDelay = 30 * time.Second

	// DefaultPercentileAccuracy is the DDSketch relative accuracy used
	// when the percentile feature is enabled (0.01 = 1% error).
	// Override via config: telemetry.features.percentile.accuracy
	DefaultPercentileAccuracy = 0.01
)

// =============================================================================
// Archive Defaults
// =============================================================================

const (
	// DefaultArchiveDir is where expiring raw readings are exported as
	// Parquet files when the archive feature is enabled.
	// Override via config: telemetry.features.archive.dir
	DefaultArchiveDir = "archive"

	// DefaultArchiveCompression is the Parquet compression algorithm:
	// zstd, snappy, or none.
	// Override via config: telemetry.features.archive.compression
	DefaultArchiveCompression = "zstd"
)
