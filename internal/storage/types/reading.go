package types

import "time"

// RawReading represents a single power measurement from the meter poller.
// Readings are append-only: one row per sample, never mutated, deleted only
// in bulk once they age past the raw retention horizon.
type RawReading struct {
	// ID is the storage-assigned row identity. Zero until persisted.
	ID int64

	// Timestamp is the sample time in unix seconds.
	Timestamp int64

	// Total is the whole-home power draw in watts.
	Total float64

	// PhaseA and PhaseB are per-phase power in watts. Nil when the meter
	// did not report the phase.
	PhaseA *float64
	PhaseB *float64

	// Circuits maps circuit name to power in watts. Nil when the sample
	// carried no per-circuit breakdown, or when its payload failed to
	// decode (the scalar fields above still count in that case).
	Circuits map[string]float64
}

// TimestampTime returns the sample time as a time.Time.
func (r *RawReading) TimestampTime() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// HasCircuits returns true if the reading carries per-circuit data.
func (r *RawReading) HasCircuits() bool {
	return len(r.Circuits) > 0
}
