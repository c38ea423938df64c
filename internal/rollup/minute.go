package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/homewatt/wattd/internal/logging"
	"github.com/homewatt/wattd/internal/store"
	"github.com/homewatt/wattd/internal/storage/types"
)

var log = logging.Component("rollup")

// MinuteStore is the storage surface the minute aggregator needs.
// *store.Store satisfies it; tests supply an in-memory fake.
type MinuteStore interface {
	RawReadingsInRange(ctx context.Context, start, end int64) ([]types.RawReading, error)
	MinuteAggregateExists(ctx context.Context, windowStart int64) (bool, error)
	InsertMinuteAggregate(ctx context.Context, agg types.MinuteAggregate) error
}

// MinuteAggregator downsamples raw readings into one-minute aggregates.
// Each invocation targets exactly one fully elapsed 60-second window.
type MinuteAggregator struct {
	store MinuteStore

	// Percentile feature (DDSketch). Disabled by default.
	percentileEnabled  bool
	percentileAccuracy float64
}

// NewMinuteAggregator creates a minute aggregator over the given store.
func NewMinuteAggregator(s MinuteStore) *MinuteAggregator {
	return &MinuteAggregator{store: s}
}

// EnablePercentile turns on total_p95 calculation with the given DDSketch
// relative accuracy.
func (a *MinuteAggregator) EnablePercentile(accuracy float64) {
	a.percentileEnabled = true
	a.percentileAccuracy = accuracy
}

// AggregatePrevious aggregates the most recently completed minute window
// relative to now. This is the scheduled-tick entry point.
func (a *MinuteAggregator) AggregatePrevious(ctx context.Context, now time.Time) error {
	return a.AggregateWindow(ctx, previousWindowStart(now, time.Minute))
}

// AggregateWindow computes and stores the aggregate for the window
// [windowStart, windowStart+60). It is idempotent: an empty window writes
// nothing, and a window that already has an aggregate is left untouched.
func (a *MinuteAggregator) AggregateWindow(ctx context.Context, windowStart int64) error {
	windowEnd := windowStart + types.TierMinute.WindowSeconds()

	readings, err := a.store.RawReadingsInRange(ctx, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("read raw window %d: %w", windowStart, err)
	}
	if len(readings) == 0 {
		log.Debug("minute window empty", "window_start", windowStart)
		return nil
	}

	exists, err := a.store.MinuteAggregateExists(ctx, windowStart)
	if err != nil {
		return fmt.Errorf("check minute window %d: %w", windowStart, err)
	}
	if exists {
		log.Debug("minute window already aggregated", "window_start", windowStart)
		return nil
	}

	agg := a.compute(windowStart, readings)

	if err := a.store.InsertMinuteAggregate(ctx, agg); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost the insert race to another entry point. The stored
			// row is identical in effect, so this is a clean no-op.
			log.Debug("minute window aggregated concurrently", "window_start", windowStart)
			return nil
		}
		return fmt.Errorf("insert minute window %d: %w", windowStart, err)
	}

	log.Debug("minute window aggregated",
		"window_start", windowStart,
		"sample_count", agg.SampleCount,
		"total_avg", agg.TotalAvg)
	return nil
}

// compute derives the minute aggregate from the window's readings.
func (a *MinuteAggregator) compute(windowStart int64, readings []types.RawReading) types.MinuteAggregate {
	var (
		totalSum float64
		totalMin = readings[0].Total
		totalMax = readings[0].Total

		phaseASum float64
		phaseACnt int
		phaseBSum float64
		phaseBCnt int

		circuitSum = make(map[string]float64)
		circuitCnt = make(map[string]int)
	)

	var sketch *ddsketch.DDSketch
	if a.percentileEnabled {
		s, err := ddsketch.NewDefaultDDSketch(a.percentileAccuracy)
		if err != nil {
			log.Warn("ddsketch init failed, skipping percentile", "error", err)
		} else {
			sketch = s
		}
	}

	for i := range readings {
		r := &readings[i]

		totalSum += r.Total
		if r.Total < totalMin {
			totalMin = r.Total
		}
		if r.Total > totalMax {
			totalMax = r.Total
		}
		if sketch != nil {
			sketch.Add(r.Total)
		}

		if r.PhaseA != nil {
			phaseASum += *r.PhaseA
			phaseACnt++
		}
		if r.PhaseB != nil {
			phaseBSum += *r.PhaseB
			phaseBCnt++
		}

		// A reading missing a circuit does not count as zero for that
		// circuit: each circuit averages only over the readings that
		// included it.
		for name, watts := range r.Circuits {
			circuitSum[name] += watts
			circuitCnt[name]++
		}
	}

	count := len(readings)
	agg := types.MinuteAggregate{
		WindowStart: windowStart,
		TotalAvg:    round2(totalSum / float64(count)),
		TotalMin:    round2(totalMin),
		TotalMax:    round2(totalMax),
		SampleCount: count,
	}

	if phaseACnt > 0 {
		avg := round2(phaseASum / float64(phaseACnt))
		agg.PhaseAAvg = &avg
	}
	if phaseBCnt > 0 {
		avg := round2(phaseBSum / float64(phaseBCnt))
		agg.PhaseBAvg = &avg
	}

	if len(circuitSum) > 0 {
		agg.CircuitsAvg = make(map[string]float64, len(circuitSum))
		for name, sum := range circuitSum {
			agg.CircuitsAvg[name] = round2(sum / float64(circuitCnt[name]))
		}
	}

	if sketch != nil {
		p95, err := sketch.GetValueAtQuantile(0.95)
		if err == nil {
			rounded := round2(p95)
			agg.TotalP95 = &rounded
		}
	}

	return agg
}
