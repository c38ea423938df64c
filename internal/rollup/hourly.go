package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/homewatt/wattd/internal/store"
	"github.com/homewatt/wattd/internal/storage/types"
)

// HourlyStore is the storage surface the hourly aggregator needs.
type HourlyStore interface {
	MinuteAggregatesInRange(ctx context.Context, start, end int64) ([]types.MinuteAggregate, error)
	HourlyAggregateExists(ctx context.Context, windowStart int64) (bool, error)
	InsertHourlyAggregate(ctx context.Context, agg types.HourlyAggregate) error
}

// HourlyAggregator downsamples minute aggregates into one-hour aggregates.
// It never reads the raw tier, so it stays cheap after raw rows expire.
type HourlyAggregator struct {
	store HourlyStore
}

// NewHourlyAggregator creates an hourly aggregator over the given store.
func NewHourlyAggregator(s HourlyStore) *HourlyAggregator {
	return &HourlyAggregator{store: s}
}

// AggregatePrevious aggregates the most recently completed hour window
// relative to now. This is the scheduled-tick entry point.
func (a *HourlyAggregator) AggregatePrevious(ctx context.Context, now time.Time) error {
	return a.AggregateWindow(ctx, previousWindowStart(now, time.Hour))
}

// AggregateWindow computes and stores the aggregate for the window
// [windowStart, windowStart+3600). Statistics are weighted by each minute's
// sample count, correcting for minutes that had fewer raw samples.
func (a *HourlyAggregator) AggregateWindow(ctx context.Context, windowStart int64) error {
	windowEnd := windowStart + types.TierHourly.WindowSeconds()

	minutes, err := a.store.MinuteAggregatesInRange(ctx, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("read minute window %d: %w", windowStart, err)
	}
	if len(minutes) == 0 {
		log.Debug("hourly window empty", "window_start", windowStart)
		return nil
	}

	exists, err := a.store.HourlyAggregateExists(ctx, windowStart)
	if err != nil {
		return fmt.Errorf("check hourly window %d: %w", windowStart, err)
	}
	if exists {
		log.Debug("hourly window already aggregated", "window_start", windowStart)
		return nil
	}

	agg, ok := computeHourly(windowStart, minutes)
	if !ok {
		log.Warn("hourly window has no weighted samples", "window_start", windowStart)
		return nil
	}

	if err := a.store.InsertHourlyAggregate(ctx, agg); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Debug("hourly window aggregated concurrently", "window_start", windowStart)
			return nil
		}
		return fmt.Errorf("insert hourly window %d: %w", windowStart, err)
	}

	log.Debug("hourly window aggregated",
		"window_start", windowStart,
		"minutes", len(minutes),
		"total_avg", agg.TotalAvg,
		"total_kwh", agg.TotalKwh)
	return nil
}

// computeHourly derives the hourly aggregate from the hour's minute rows.
// ok is false when the minutes carry no samples to weight by.
func computeHourly(windowStart int64, minutes []types.MinuteAggregate) (types.HourlyAggregate, bool) {
	var (
		weightTotal float64
		weightedSum float64
		totalMin    = minutes[0].TotalMin
		totalMax    = minutes[0].TotalMax

		phaseASum float64
		phaseAWt  float64
		phaseBSum float64
		phaseBWt  float64

		circuitSum = make(map[string]float64)
		circuitWt  = make(map[string]float64)
	)

	for i := range minutes {
		m := &minutes[i]
		w := float64(m.SampleCount)

		weightTotal += w
		weightedSum += m.TotalAvg * w

		if m.TotalMin < totalMin {
			totalMin = m.TotalMin
		}
		if m.TotalMax > totalMax {
			totalMax = m.TotalMax
		}

		if m.PhaseAAvg != nil {
			phaseASum += *m.PhaseAAvg * w
			phaseAWt += w
		}
		if m.PhaseBAvg != nil {
			phaseBSum += *m.PhaseBAvg * w
			phaseBWt += w
		}

		for name, avg := range m.CircuitsAvg {
			circuitSum[name] += avg * w
			circuitWt[name] += w
		}
	}

	if weightTotal == 0 {
		return types.HourlyAggregate{}, false
	}

	totalAvg := weightedSum / weightTotal
	agg := types.HourlyAggregate{
		WindowStart: windowStart,
		TotalAvg:    round2(totalAvg),
		TotalMin:    round2(totalMin),
		TotalMax:    round2(totalMax),
		// First-order energy estimate: average watts held constant
		// across the hour.
		TotalKwh:     round3(totalAvg / 1000),
		AnomalyCount: 0, // reserved for a downstream analysis pass
	}

	if phaseAWt > 0 {
		avg := round2(phaseASum / phaseAWt)
		agg.PhaseAAvg = &avg
	}
	if phaseBWt > 0 {
		avg := round2(phaseBSum / phaseBWt)
		agg.PhaseBAvg = &avg
	}

	// Peak circuit: highest weighted average, first name in sorted order
	// winning ties.
	var (
		peakName  string
		peakWatts float64
		havePeak  bool
	)
	for _, name := range types.CircuitNames(circuitSum) {
		avg := circuitSum[name] / circuitWt[name]
		if !havePeak || avg > peakWatts {
			peakName = name
			peakWatts = avg
			havePeak = true
		}
	}
	if havePeak {
		watts := round2(peakWatts)
		agg.PeakCircuit = &peakName
		agg.PeakCircuitWatts = &watts
	}

	return agg, true
}
