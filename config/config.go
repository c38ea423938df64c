package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete wattd configuration.
type Config struct {
	// DB configures the telemetry store.
	DB DBConfig `yaml:"db"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry configures the rollup and retention pipeline.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DBConfig configures the telemetry store.
type DBConfig struct {
	// Path is the DuckDB database file path.
	Path string `yaml:"path"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches output from human-readable text to JSON.
	JSON bool `yaml:"json"`
}

// TelemetryConfig configures the rollup and retention pipeline.
type TelemetryConfig struct {
	// Enabled controls whether any scheduled or one-shot task is
	// registered. Read once at process start.
	Enabled bool `yaml:"enabled"`

	// CatchUpDelay is how long after startup the catch-up pass runs.
	CatchUpDelay time.Duration `yaml:"catch_up_delay"`

	// Retention defines horizons and the daily run hour.
	Retention RetentionConfig `yaml:"retention"`

	// Features configures optional features.
	Features FeaturesConfig `yaml:"features"`
}

// RetentionConfig defines how long to keep data in the prunable tiers.
// Hourly aggregates are retained forever and have no horizon here.
type RetentionConfig struct {
	// Raw is the retention horizon for raw readings.
	Raw time.Duration `yaml:"raw"`

	// Minute is the retention horizon for minute aggregates.
	Minute time.Duration `yaml:"minute"`

	// DailyHour is the local hour of day (0-23) for the daily run.
	DailyHour int `yaml:"daily_hour"`
}

// FeaturesConfig configures optional features.
type FeaturesConfig struct {
	// Percentile configures DDSketch percentile calculation on minute
	// aggregates.
	Percentile PercentileConfig `yaml:"percentile"`

	// Archive configures Parquet export of expiring raw readings.
	Archive ArchiveConfig `yaml:"archive"`
}

// PercentileConfig configures DDSketch percentile calculation.
type PercentileConfig struct {
	// Enabled enables the total_p95 column on minute aggregates.
	Enabled bool `yaml:"enabled"`

	// Accuracy is the relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// ArchiveConfig configures Parquet export of expiring raw readings.
type ArchiveConfig struct {
	// Enabled enables archiving before retention deletes raw rows.
	Enabled bool `yaml:"enabled"`

	// Dir is the directory archive files are written to.
	Dir string `yaml:"dir"`

	// Compression is the Parquet compression algorithm: zstd, snappy, none.
	Compression string `yaml:"compression"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DB: DBConfig{
			Path: DefaultDBPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:      true,
			CatchUpDelay: DefaultCatchUpDelay,
			Retention: RetentionConfig{
				Raw:       DefaultRawRetention,
				Minute:    DefaultMinuteRetention,
				DailyHour: DefaultRetentionHour,
			},
			Features: FeaturesConfig{
				Percentile: PercentileConfig{
					Enabled:  false,
					Accuracy: DefaultPercentileAccuracy,
				},
				Archive: ArchiveConfig{
					Enabled:     false,
					Dir:         DefaultArchiveDir,
					Compression: DefaultArchiveCompression,
				},
			},
		},
	}
}

// Load loads configuration from a YAML file, applying defaults for any
// value the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.DB.Path == "" {
		return fmt.Errorf("db.path must not be empty")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}

	t := &c.Telemetry
	if t.CatchUpDelay < 0 {
		return fmt.Errorf("telemetry.catch_up_delay must not be negative")
	}
	if t.Retention.Raw <= 0 {
		return fmt.Errorf("telemetry.retention.raw must be positive")
	}
	if t.Retention.Minute <= 0 {
		return fmt.Errorf("telemetry.retention.minute must be positive")
	}
	if t.Retention.Minute < t.Retention.Raw {
		return fmt.Errorf("telemetry.retention.minute must not be shorter than retention.raw")
	}
	if t.Retention.DailyHour < 0 || t.Retention.DailyHour > 23 {
		return fmt.Errorf("telemetry.retention.daily_hour must be 0-23")
	}
	if t.Features.Percentile.Enabled {
		a := t.Features.Percentile.Accuracy
		if a <= 0 || a >= 1 {
			return fmt.Errorf("telemetry.features.percentile.accuracy must be in (0, 1)")
		}
	}
	if t.Features.Archive.Enabled {
		if t.Features.Archive.Dir == "" {
			return fmt.Errorf("telemetry.features.archive.dir must not be empty")
		}
		switch t.Features.Archive.Compression {
		case "zstd", "snappy", "none", "":
		default:
			return fmt.Errorf("telemetry.features.archive.compression: unknown algorithm %q",
				t.Features.Archive.Compression)
		}
	}

	return nil
}
