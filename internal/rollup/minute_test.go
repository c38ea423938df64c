package rollup

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/homewatt/wattd/internal/storage/types"
)

// windowT is an arbitrary minute-aligned window start used across tests.
const windowT = int64(1_760_000_040)

func TestMinuteAggregator_BasicStats(t *testing.T) {
	ms := newMemStore()
	ms.addRaw(windowT+0, 100)
	ms.addRaw(windowT+20, 200)
	ms.addRaw(windowT+40, 330)

	agg := NewMinuteAggregator(ms)
	if err := agg.AggregateWindow(context.Background(), windowT); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	row, ok := ms.minutes[windowT]
	if !ok {
		t.Fatal("expected minute aggregate to be written")
	}

	if row.SampleCount != 3 {
		t.Errorf("sample_count: expected 3, got %d", row.SampleCount)
	}
	if math.Abs(row.TotalAvg-210) > 0.01 {
		t.Errorf("total_avg: expected 210, got %v", row.TotalAvg)
	}
	if row.TotalMin != 100 {
		t.Errorf("total_min: expected 100, got %v", row.TotalMin)
	}
	if row.TotalMax != 330 {
		t.Errorf("total_max: expected 330, got %v", row.TotalMax)
	}
	if row.PhaseAAvg != nil || row.PhaseBAvg != nil {
		t.Error("expected nil phase averages when no reading carried phases")
	}
	if row.TotalP95 != nil {
		t.Error("expected nil total_p95 with percentile feature disabled")
	}
}

func TestMinuteAggregator_Rounding(t *testing.T) {
	ms := newMemStore()
	ms.addRaw(windowT+0, 100.123)
	ms.addRaw(windowT+2, 100.124)
	ms.addRaw(windowT+4, 100.125)

	agg := NewMinuteAggregator(ms)
	if err := agg.AggregateWindow(context.Background(), windowT); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	row := ms.minutes[windowT]
	if row.TotalAvg != 100.12 {
		t.Errorf("total_avg: expected 100.12, got %v", row.TotalAvg)
	}
	if row.TotalMin != 100.12 {
		t.Errorf("total_min: expected 100.12, got %v", row.TotalMin)
	}
	if row.TotalMax != 100.13 {
		t.Errorf("total_max: expected 100.13, got %v", row.TotalMax)
	}
}

func TestMinuteAggregator_EmptyWindowWritesNothing(t *testing.T) {
	ms := newMemStore()
	ms.addRaw(windowT-10, 100) // before the window
	ms.addRaw(windowT+60, 100) // after the window

	agg := NewMinuteAggregator(ms)
	if err := agg.AggregateWindow(context.Background(), windowT); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if len(ms.minutes) != 0 {
		t.Errorf("expected no aggregate rows, got %d", len(ms.minutes))
	}
}

func TestMinuteAggregator_Idempotent(t *testing.T) {
	ms := newMemStore()
	ms.addRaw(windowT, 100)

	agg := NewMinuteAggregator(ms)
	for i := 0; i < 3; i++ {
		if err := agg.AggregateWindow(context.Background(), windowT); err != nil {
			t.Fatalf("aggregate attempt %d: %v", i, err)
		}
	}

	if len(ms.minutes) != 1 {
		t.Errorf("expected exactly one stored row, got %d", len(ms.minutes))
	}
}

func TestMinuteAggregator_InsertRaceIsCleanNoop(t *testing.T) {
	ms := newMemStore()
	ms.addRaw(windowT, 100)

	// Simulate another entry point winning between the existence check
	// and the insert.
	raced := &racingStore{memStore: ms}

	agg := NewMinuteAggregator(raced)
	if err := agg.AggregateWindow(context.Background(), windowT); err != nil {
		t.Fatalf("expected clean no-op on insert race, got %v", err)
	}
	if len(ms.minutes) != 1 {
		t.Errorf("expected exactly one stored row, got %d", len(ms.minutes))
	}
}

// racingStore reports the window as absent, then lets a competing insert
// land first.
type racingStore struct {
	*memStore
}

func (r *racingStore) MinuteAggregateExists(_ context.Context, _ int64) (bool, error) {
	return false, nil
}

func (r *racingStore) InsertMinuteAggregate(ctx context.Context, agg types.MinuteAggregate) error {
	competitor := agg
	competitor.TotalAvg = -1
	r.memStore.InsertMinuteAggregate(ctx, competitor)
	return r.memStore.InsertMinuteAggregate(ctx, agg)
}

func TestMinuteAggregator_PhaseAveragesSkipMissing(t *testing.T) {
	ms := newMemStore()
	ms.raw = append(ms.raw,
		types.RawReading{Timestamp: windowT + 0, Total: 100, PhaseA: f64(50)},
		types.RawReading{Timestamp: windowT + 2, Total: 100, PhaseA: f64(70), PhaseB: f64(30)},
		types.RawReading{Timestamp: windowT + 4, Total: 100},
	)

	agg := NewMinuteAggregator(ms)
	if err := agg.AggregateWindow(context.Background(), windowT); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	row := ms.minutes[windowT]
	if row.PhaseAAvg == nil || *row.PhaseAAvg != 60 {
		t.Errorf("phase_a_avg: expected 60 over the two contributing readings, got %v", row.PhaseAAvg)
	}
	if row.PhaseBAvg == nil || *row.PhaseBAvg != 30 {
		t.Errorf("phase_b_avg: expected 30, got %v", row.PhaseBAvg)
	}
	if row.SampleCount != 3 {
		t.Errorf("sample_count: expected 3, got %d", row.SampleCount)
	}
}

func TestMinuteAggregator_CircuitAveragingAsymmetry(t *testing.T) {
	ms := newMemStore()
	ms.raw = append(ms.raw,
		types.RawReading{Timestamp: windowT + 0, Total: 150,
			Circuits: map[string]float64{"kitchen": 100, "garage": 50}},
		types.RawReading{Timestamp: windowT + 2, Total: 200,
			Circuits: map[string]float64{"kitchen": 200}},
	)

	agg := NewMinuteAggregator(ms)
	if err := agg.AggregateWindow(context.Background(), windowT); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	row := ms.minutes[windowT]
	if got := row.CircuitsAvg["kitchen"]; got != 150 {
		t.Errorf("kitchen: expected 150, got %v", got)
	}
	// The reading without a garage value must not drag the average down
	// as an implied zero.
	if got := row.CircuitsAvg["garage"]; got != 50 {
		t.Errorf("garage: expected 50, got %v", got)
	}
}

func TestMinuteAggregator_MalformedCircuitsRowStillCounts(t *testing.T) {
	// The storage edge hands a reading whose circuits blob failed to
	// decode as a nil map; its scalar fields still contribute.
	ms := newMemStore()
	ms.raw = append(ms.raw,
		types.RawReading{Timestamp: windowT + 0, Total: 100,
			Circuits: map[string]float64{"kitchen": 40}},
		types.RawReading{Timestamp: windowT + 2, Total: 300}, // malformed payload
	)

	agg := NewMinuteAggregator(ms)
	if err := agg.AggregateWindow(context.Background(), windowT); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	row := ms.minutes[windowT]
	if row.SampleCount != 2 {
		t.Errorf("sample_count: expected 2, got %d", row.SampleCount)
	}
	if row.TotalAvg != 200 {
		t.Errorf("total_avg: expected 200, got %v", row.TotalAvg)
	}
	if got := row.CircuitsAvg["kitchen"]; got != 40 {
		t.Errorf("kitchen: expected 40 from the single contributing row, got %v", got)
	}
}

func TestMinuteAggregator_Percentile(t *testing.T) {
	ms := newMemStore()
	for i := int64(0); i < 30; i++ {
		ms.addRaw(windowT+i*2, float64(100+i))
	}

	agg := NewMinuteAggregator(ms)
	agg.EnablePercentile(0.01)
	if err := agg.AggregateWindow(context.Background(), windowT); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	row := ms.minutes[windowT]
	if row.TotalP95 == nil {
		t.Fatal("expected total_p95 with percentile feature enabled")
	}
	// Values span 100..129; p95 lands near the top of the range. DDSketch
	// guarantees 1% relative accuracy.
	if *row.TotalP95 < 124 || *row.TotalP95 > 131 {
		t.Errorf("total_p95: expected ~127, got %v", *row.TotalP95)
	}
}

func TestMinuteAggregator_StorageErrorPropagates(t *testing.T) {
	ms := newMemStore()
	ms.rawErr = errors.New("disk on fire")

	agg := NewMinuteAggregator(ms)
	if err := agg.AggregateWindow(context.Background(), windowT); err == nil {
		t.Fatal("expected error from failing store")
	}
	if len(ms.minutes) != 0 {
		t.Error("no row should be written on failure")
	}
}

func TestMinuteAggregator_AggregatePreviousTargetsElapsedWindow(t *testing.T) {
	now := time.Unix(windowT+90, 0) // 30s into the window after windowT

	ms := newMemStore()
	ms.addRaw(windowT+10, 100) // previous, fully elapsed window
	ms.addRaw(windowT+70, 999) // current, still-filling window

	agg := NewMinuteAggregator(ms)
	if err := agg.AggregatePrevious(context.Background(), now); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if _, ok := ms.minutes[windowT]; !ok {
		t.Error("expected the elapsed window to be aggregated")
	}
	if _, ok := ms.minutes[windowT+60]; ok {
		t.Error("the in-progress window must never be aggregated")
	}
}
