package types

import "time"

// MinuteAggregate represents one minute of downsampled raw readings.
// A row exists only for windows that had at least one contributing reading;
// once written it is never updated.
type MinuteAggregate struct {
	// WindowStart is the minute-aligned window start in unix seconds.
	// The window covers [WindowStart, WindowStart+60).
	WindowStart int64

	// Statistics over Total across all contributing readings.
	TotalAvg float64
	TotalMin float64
	TotalMax float64

	// Per-phase averages over readings that reported the phase.
	// Nil when no contributing reading carried the phase.
	PhaseAAvg *float64
	PhaseBAvg *float64

	// SampleCount is the number of contributing raw readings.
	SampleCount int

	// CircuitsAvg maps circuit name to its average watts; each circuit is
	// averaged only over the readings that included it.
	CircuitsAvg map[string]float64

	// TotalP95 is the 95th percentile of Total, present only when the
	// percentile feature is enabled.
	TotalP95 *float64
}

// WindowStartTime returns the window start as a time.Time.
func (a *MinuteAggregate) WindowStartTime() time.Time {
	return time.Unix(a.WindowStart, 0).UTC()
}

// WindowEnd returns the exclusive window end in unix seconds.
func (a *MinuteAggregate) WindowEnd() int64 {
	return a.WindowStart + int64(TierMinute.WindowSize()/time.Second)
}

// HourlyAggregate represents one hour of downsampled minute aggregates.
// It is built from minute rows only, never from raw readings, so it stays
// computable after the raw tier has been pruned.
type HourlyAggregate struct {
	// WindowStart is the hour-aligned window start in unix seconds.
	// The window covers [WindowStart, WindowStart+3600).
	WindowStart int64

	// Sample-count-weighted statistics across the contributing minutes.
	TotalAvg float64
	TotalMin float64
	TotalMax float64

	// TotalKwh is the estimated energy for the hour, derived from TotalAvg
	// assuming constant power across the window.
	TotalKwh float64

	// Per-phase weighted averages over minutes where the phase is present.
	PhaseAAvg *float64
	PhaseBAvg *float64

	// PeakCircuit names the circuit with the highest weighted average for
	// the hour; PeakCircuitWatts is that average. Both nil when no minute
	// carried circuit data.
	PeakCircuit      *string
	PeakCircuitWatts *float64

	// AnomalyCount is reserved for a downstream analysis pass and is
	// always written as zero by the rollup pipeline.
	AnomalyCount int
}

// WindowStartTime returns the window start as a time.Time.
func (a *HourlyAggregate) WindowStartTime() time.Time {
	return time.Unix(a.WindowStart, 0).UTC()
}

// WindowEnd returns the exclusive window end in unix seconds.
func (a *HourlyAggregate) WindowEnd() int64 {
	return a.WindowStart + int64(TierHourly.WindowSize()/time.Second)
}
