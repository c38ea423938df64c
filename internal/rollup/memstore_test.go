package rollup

import (
	"context"
	"sort"

	"github.com/homewatt/wattd/internal/store"
	"github.com/homewatt/wattd/internal/storage/types"
)

// memStore is an in-memory stand-in for *store.Store covering the surfaces
// the rollup pipeline needs. The injectable errors simulate transient
// storage failures.
type memStore struct {
	raw      []types.RawReading
	minutes  map[int64]types.MinuteAggregate
	hourlies map[int64]types.HourlyAggregate

	rawErr    error // returned by RawReadingsInRange when set
	minuteErr error // returned by MinuteAggregatesInRange when set
}

func newMemStore() *memStore {
	return &memStore{
		minutes:  make(map[int64]types.MinuteAggregate),
		hourlies: make(map[int64]types.HourlyAggregate),
	}
}

func (m *memStore) addRaw(ts int64, total float64) {
	m.raw = append(m.raw, types.RawReading{Timestamp: ts, Total: total})
}

func (m *memStore) RawReadingsInRange(_ context.Context, start, end int64) ([]types.RawReading, error) {
	if m.rawErr != nil {
		return nil, m.rawErr
	}
	var out []types.RawReading
	for _, r := range m.raw {
		if r.Timestamp >= start && r.Timestamp < end {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (m *memStore) MinuteAggregateExists(_ context.Context, windowStart int64) (bool, error) {
	_, ok := m.minutes[windowStart]
	return ok, nil
}

func (m *memStore) InsertMinuteAggregate(_ context.Context, agg types.MinuteAggregate) error {
	if _, ok := m.minutes[agg.WindowStart]; ok {
		return store.ErrAlreadyExists
	}
	m.minutes[agg.WindowStart] = agg
	return nil
}

func (m *memStore) MinuteAggregatesInRange(_ context.Context, start, end int64) ([]types.MinuteAggregate, error) {
	if m.minuteErr != nil {
		return nil, m.minuteErr
	}
	var out []types.MinuteAggregate
	for ws, agg := range m.minutes {
		if ws >= start && ws < end {
			out = append(out, agg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowStart < out[j].WindowStart })
	return out, nil
}

func (m *memStore) HourlyAggregateExists(_ context.Context, windowStart int64) (bool, error) {
	_, ok := m.hourlies[windowStart]
	return ok, nil
}

func (m *memStore) InsertHourlyAggregate(_ context.Context, agg types.HourlyAggregate) error {
	if _, ok := m.hourlies[agg.WindowStart]; ok {
		return store.ErrAlreadyExists
	}
	m.hourlies[agg.WindowStart] = agg
	return nil
}

func (m *memStore) LatestMinuteWindowStart(_ context.Context) (int64, bool, error) {
	return latestKey(m.minutes)
}

func (m *memStore) EarliestRawTimestamp(_ context.Context) (int64, bool, error) {
	if len(m.raw) == 0 {
		return 0, false, nil
	}
	min := m.raw[0].Timestamp
	for _, r := range m.raw[1:] {
		if r.Timestamp < min {
			min = r.Timestamp
		}
	}
	return min, true, nil
}

func (m *memStore) LatestHourlyWindowStart(_ context.Context) (int64, bool, error) {
	return latestKey(m.hourlies)
}

func (m *memStore) EarliestMinuteTimestamp(_ context.Context) (int64, bool, error) {
	var (
		min   int64
		found bool
	)
	for ws := range m.minutes {
		if !found || ws < min {
			min = ws
			found = true
		}
	}
	return min, found, nil
}

func latestKey[V any](m map[int64]V) (int64, bool, error) {
	var (
		max   int64
		found bool
	)
	for k := range m {
		if !found || k > max {
			max = k
			found = true
		}
	}
	return max, found, nil
}

func f64(v float64) *float64 { return &v }
