package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/homewatt/wattd/internal/storage/types"
)

// InsertRawReading appends a single raw reading.
// This is the surface the meter-polling process writes through.
func (s *Store) InsertRawReading(ctx context.Context, r types.RawReading) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	circuits, err := types.EncodeCircuits(r.Circuits)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO raw_readings (ts, total, phase_a, phase_b, circuits)
		 VALUES (?, ?, ?, ?, ?)`,
		r.Timestamp, r.Total, r.PhaseA, r.PhaseB, nullString(circuits),
	)
	if err != nil {
		return fmt.Errorf("insert raw reading: %w", err)
	}
	return nil
}

// InsertRawReadings appends a batch of raw readings in one transaction.
func (s *Store) InsertRawReadings(ctx context.Context, readings []types.RawReading) error {
	if len(readings) == 0 {
		return nil
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.TransactionContext(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO raw_readings (ts, total, phase_a, phase_b, circuits)
			 VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i := range readings {
			r := &readings[i]

			circuits, err := types.EncodeCircuits(r.Circuits)
			if err != nil {
				return err
			}

			if _, err := stmt.ExecContext(ctx,
				r.Timestamp, r.Total, r.PhaseA, r.PhaseB, nullString(circuits)); err != nil {
				return fmt.Errorf("insert raw reading at ts %d: %w", r.Timestamp, err)
			}
		}
		return nil
	})
}

// RawReadingsInRange returns all raw readings with start <= ts < end,
// ordered by timestamp. Insertion order is irrelevant; selection is purely
// by timestamp range.
//
// A row whose circuits blob fails to decode is returned with a nil circuit
// map: its scalar fields still contribute to aggregation.
func (s *Store) RawReadingsInRange(ctx context.Context, start, end int64) ([]types.RawReading, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, total, phase_a, phase_b, circuits
		 FROM raw_readings
		 WHERE ts >= ? AND ts < ?
		 ORDER BY ts`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query raw readings: %w", err)
	}
	defer rows.Close()

	var readings []types.RawReading
	for rows.Next() {
		var (
			r        types.RawReading
			phaseA   sql.NullFloat64
			phaseB   sql.NullFloat64
			circuits sql.NullString
		)

		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Total, &phaseA, &phaseB, &circuits); err != nil {
			return nil, fmt.Errorf("scan raw reading: %w", err)
		}

		if phaseA.Valid {
			r.PhaseA = &phaseA.Float64
		}
		if phaseB.Valid {
			r.PhaseB = &phaseB.Float64
		}
		if circuits.Valid {
			decoded, err := types.DecodeCircuits(circuits.String)
			if err != nil {
				// Tolerate the malformed blob: the reading's scalar
				// fields still count toward the window.
				log.Warn("malformed circuits blob, skipping circuit data",
					"id", r.ID, "ts", r.Timestamp, "error", err)
			}
			r.Circuits = decoded
		}

		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// EarliestRawTimestamp returns the oldest raw reading timestamp.
// ok is false when the raw tier is empty.
func (s *Store) EarliestRawTimestamp(ctx context.Context) (ts int64, ok bool, err error) {
	if err := s.checkOpen(); err != nil {
		return 0, false, err
	}

	var min sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT min(ts) FROM raw_readings`).Scan(&min)
	if err != nil {
		return 0, false, fmt.Errorf("query earliest raw timestamp: %w", err)
	}
	return min.Int64, min.Valid, nil
}

// RawReadingsBefore returns all raw readings older than the cutoff,
// ordered by timestamp. Used by the retention archiver before pruning.
func (s *Store) RawReadingsBefore(ctx context.Context, cutoff int64) ([]types.RawReading, error) {
	return s.RawReadingsInRange(ctx, 0, cutoff)
}

// DeleteRawBefore deletes all raw readings older than the cutoff and
// returns the number of rows removed.
func (s *Store) DeleteRawBefore(ctx context.Context, cutoff int64) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM raw_readings WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete raw readings: %w", err)
	}
	return res.RowsAffected()
}

// checkOpen returns ErrClosed if the store has been closed.
func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// nullString converts an empty string to a NULL-able database value.
func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
