package types

import (
	"fmt"
	"time"
)

// Tier represents a storage tier with specific resolution and retention.
type Tier int

const (
	// TierRaw stores raw readings at polling resolution (~2s).
	// Retention: 7 days
	TierRaw Tier = iota

	// TierMinute stores one-minute aggregates.
	// Retention: 90 days
	TierMinute

	// TierHourly stores one-hour aggregates.
	// Retention: unlimited
	TierHourly
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierRaw:
		return "raw"
	case TierMinute:
		return "minute"
	case TierHourly:
		return "hourly"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// WindowSize returns the aggregation window length for this tier.
// The raw tier has no windows and returns zero.
func (t Tier) WindowSize() time.Duration {
	switch t {
	case TierMinute:
		return time.Minute
	case TierHourly:
		return time.Hour
	default:
		return 0
	}
}

// WindowSeconds returns the window length in unix seconds.
func (t Tier) WindowSeconds() int64 {
	return int64(t.WindowSize() / time.Second)
}

// DefaultRetention returns the default retention horizon for this tier.
// Zero means the tier is retained forever.
func (t Tier) DefaultRetention() time.Duration {
	switch t {
	case TierRaw:
		return 7 * 24 * time.Hour
	case TierMinute:
		return 90 * 24 * time.Hour
	case TierHourly:
		return 0 // never pruned
	default:
		return 0
	}
}

// Prunable returns true if rows in this tier are ever deleted by retention.
func (t Tier) Prunable() bool {
	return t == TierRaw || t == TierMinute
}

// Source returns the tier this tier is aggregated from.
// Returns the same tier for the raw tier, which has no source.
func (t Tier) Source() Tier {
	switch t {
	case TierMinute:
		return TierRaw
	case TierHourly:
		return TierMinute
	default:
		return t
	}
}

// TruncateToWindow truncates a timestamp to the start of its window.
func (t Tier) TruncateToWindow(ts time.Time) time.Time {
	switch t {
	case TierMinute:
		return ts.Truncate(time.Minute).UTC()
	case TierHourly:
		return ts.Truncate(time.Hour).UTC()
	default:
		return ts.UTC()
	}
}

// ParseTier parses a string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "raw":
		return TierRaw, nil
	case "minute":
		return TierMinute, nil
	case "hourly":
		return TierHourly, nil
	default:
		return TierRaw, fmt.Errorf("unknown tier: %s", s)
	}
}

// AllTiers returns all available tiers in order of increasing granularity.
func AllTiers() []Tier {
	return []Tier{TierRaw, TierMinute, TierHourly}
}
