package store

import "context"

// schemaStatements creates the three telemetry tiers and the meta table.
//
// Layout notes:
//   - raw_readings is append-only; id comes from a sequence, no uniqueness
//     beyond that identity.
//   - minute_aggregates and hourly_aggregates key on window_start; the
//     primary key is the concurrency guard behind insert-if-absent.
//   - circuit maps are stored as JSON blobs and decoded at the storage edge.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS raw_readings_seq`,

	`CREATE TABLE IF NOT EXISTS raw_readings (
		id       BIGINT PRIMARY KEY DEFAULT nextval('raw_readings_seq'),
		ts       BIGINT NOT NULL,
		total    DOUBLE NOT NULL,
		phase_a  DOUBLE,
		phase_b  DOUBLE,
		circuits VARCHAR
	)`,

	`CREATE INDEX IF NOT EXISTS raw_readings_ts_idx ON raw_readings (ts)`,

	`CREATE TABLE IF NOT EXISTS minute_aggregates (
		window_start BIGINT PRIMARY KEY,
		total_avg    DOUBLE NOT NULL,
		total_min    DOUBLE NOT NULL,
		total_max    DOUBLE NOT NULL,
		phase_a_avg  DOUBLE,
		phase_b_avg  DOUBLE,
		sample_count INTEGER NOT NULL,
		circuits_avg VARCHAR,
		total_p95    DOUBLE
	)`,

	`CREATE TABLE IF NOT EXISTS hourly_aggregates (
		window_start       BIGINT PRIMARY KEY,
		total_avg          DOUBLE NOT NULL,
		total_min          DOUBLE NOT NULL,
		total_max          DOUBLE NOT NULL,
		total_kwh          DOUBLE NOT NULL,
		phase_a_avg        DOUBLE,
		phase_b_avg        DOUBLE,
		peak_circuit       VARCHAR,
		peak_circuit_watts DOUBLE,
		anomaly_count      INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS meta (
		key   VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL
	)`,
}

// initSchema creates all tables if they do not exist.
func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
