package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/homewatt/wattd/internal/storage/types"
)

// =============================================================================
// Minute Tier
// =============================================================================

// MinuteAggregateExists reports whether a minute aggregate is already
// stored for the given window start.
func (s *Store) MinuteAggregateExists(ctx context.Context, windowStart int64) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM minute_aggregates WHERE window_start = ?`,
		windowStart,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check minute aggregate: %w", err)
	}
	return n > 0, nil
}

// InsertMinuteAggregate inserts a minute aggregate.
// Returns ErrAlreadyExists when the window already has a row; the primary
// key on window_start makes the insert race-safe across scheduler,
// catch-up, and manual entry points.
func (s *Store) InsertMinuteAggregate(ctx context.Context, agg types.MinuteAggregate) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	circuits, err := types.EncodeCircuits(agg.CircuitsAvg)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO minute_aggregates
		 (window_start, total_avg, total_min, total_max, phase_a_avg, phase_b_avg,
		  sample_count, circuits_avg, total_p95)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agg.WindowStart, agg.TotalAvg, agg.TotalMin, agg.TotalMax,
		agg.PhaseAAvg, agg.PhaseBAvg, agg.SampleCount,
		nullString(circuits), agg.TotalP95,
	)
	if err != nil {
		return fmt.Errorf("insert minute aggregate: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert minute aggregate: %w", err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// MinuteAggregatesInRange returns all minute aggregates with
// start <= window_start < end, ordered by window start.
func (s *Store) MinuteAggregatesInRange(ctx context.Context, start, end int64) ([]types.MinuteAggregate, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT window_start, total_avg, total_min, total_max, phase_a_avg,
		        phase_b_avg, sample_count, circuits_avg, total_p95
		 FROM minute_aggregates
		 WHERE window_start >= ? AND window_start < ?
		 ORDER BY window_start`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query minute aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []types.MinuteAggregate
	for rows.Next() {
		var (
			a        types.MinuteAggregate
			phaseA   sql.NullFloat64
			phaseB   sql.NullFloat64
			circuits sql.NullString
			p95      sql.NullFloat64
		)

		if err := rows.Scan(&a.WindowStart, &a.TotalAvg, &a.TotalMin, &a.TotalMax,
			&phaseA, &phaseB, &a.SampleCount, &circuits, &p95); err != nil {
			return nil, fmt.Errorf("scan minute aggregate: %w", err)
		}

		if phaseA.Valid {
			a.PhaseAAvg = &phaseA.Float64
		}
		if phaseB.Valid {
			a.PhaseBAvg = &phaseB.Float64
		}
		if p95.Valid {
			a.TotalP95 = &p95.Float64
		}
		if circuits.Valid {
			decoded, err := types.DecodeCircuits(circuits.String)
			if err != nil {
				log.Warn("malformed circuits_avg blob",
					"window_start", a.WindowStart, "error", err)
			}
			a.CircuitsAvg = decoded
		}

		aggs = append(aggs, a)
	}

	return aggs, rows.Err()
}

// LatestMinuteWindowStart returns the newest stored minute window start.
// ok is false when the minute tier is empty.
func (s *Store) LatestMinuteWindowStart(ctx context.Context) (ts int64, ok bool, err error) {
	return s.latestWindowStart(ctx, "minute_aggregates")
}

// EarliestMinuteTimestamp returns the oldest stored minute window start.
// ok is false when the minute tier is empty.
func (s *Store) EarliestMinuteTimestamp(ctx context.Context) (ts int64, ok bool, err error) {
	if err := s.checkOpen(); err != nil {
		return 0, false, err
	}

	var min sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT min(window_start) FROM minute_aggregates`).Scan(&min)
	if err != nil {
		return 0, false, fmt.Errorf("query earliest minute window: %w", err)
	}
	return min.Int64, min.Valid, nil
}

// DeleteMinutesBefore deletes all minute aggregates with window_start older
// than the cutoff and returns the number of rows removed.
func (s *Store) DeleteMinutesBefore(ctx context.Context, cutoff int64) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM minute_aggregates WHERE window_start < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete minute aggregates: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// Hourly Tier
// =============================================================================

// HourlyAggregateExists reports whether an hourly aggregate is already
// stored for the given window start.
func (s *Store) HourlyAggregateExists(ctx context.Context, windowStart int64) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM hourly_aggregates WHERE window_start = ?`,
		windowStart,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check hourly aggregate: %w", err)
	}
	return n > 0, nil
}

// InsertHourlyAggregate inserts an hourly aggregate.
// Returns ErrAlreadyExists when the window already has a row.
func (s *Store) InsertHourlyAggregate(ctx context.Context, agg types.HourlyAggregate) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO hourly_aggregates
		 (window_start, total_avg, total_min, total_max, total_kwh,
		  phase_a_avg, phase_b_avg, peak_circuit, peak_circuit_watts, anomaly_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agg.WindowStart, agg.TotalAvg, agg.TotalMin, agg.TotalMax, agg.TotalKwh,
		agg.PhaseAAvg, agg.PhaseBAvg, agg.PeakCircuit, agg.PeakCircuitWatts,
		agg.AnomalyCount,
	)
	if err != nil {
		return fmt.Errorf("insert hourly aggregate: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert hourly aggregate: %w", err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// HourlyAggregatesInRange returns all hourly aggregates with
// start <= window_start < end, ordered by window start. This is the read
// surface the reporting layer consumes.
func (s *Store) HourlyAggregatesInRange(ctx context.Context, start, end int64) ([]types.HourlyAggregate, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT window_start, total_avg, total_min, total_max, total_kwh,
		        phase_a_avg, phase_b_avg, peak_circuit, peak_circuit_watts, anomaly_count
		 FROM hourly_aggregates
		 WHERE window_start >= ? AND window_start < ?
		 ORDER BY window_start`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query hourly aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []types.HourlyAggregate
	for rows.Next() {
		var (
			a         types.HourlyAggregate
			phaseA    sql.NullFloat64
			phaseB    sql.NullFloat64
			peak      sql.NullString
			peakWatts sql.NullFloat64
		)

		if err := rows.Scan(&a.WindowStart, &a.TotalAvg, &a.TotalMin, &a.TotalMax,
			&a.TotalKwh, &phaseA, &phaseB, &peak, &peakWatts, &a.AnomalyCount); err != nil {
			return nil, fmt.Errorf("scan hourly aggregate: %w", err)
		}

		if phaseA.Valid {
			a.PhaseAAvg = &phaseA.Float64
		}
		if phaseB.Valid {
			a.PhaseBAvg = &phaseB.Float64
		}
		if peak.Valid {
			a.PeakCircuit = &peak.String
		}
		if peakWatts.Valid {
			a.PeakCircuitWatts = &peakWatts.Float64
		}

		aggs = append(aggs, a)
	}

	return aggs, rows.Err()
}

// LatestHourlyWindowStart returns the newest stored hourly window start.
// ok is false when the hourly tier is empty.
func (s *Store) LatestHourlyWindowStart(ctx context.Context) (ts int64, ok bool, err error) {
	return s.latestWindowStart(ctx, "hourly_aggregates")
}

// latestWindowStart returns max(window_start) for an aggregate table.
func (s *Store) latestWindowStart(ctx context.Context, table string) (int64, bool, error) {
	if err := s.checkOpen(); err != nil {
		return 0, false, err
	}

	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT max(window_start) FROM `+table).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("query latest window in %s: %w", table, err)
	}
	return max.Int64, max.Valid, nil
}
