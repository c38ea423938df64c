// Package types defines the core data types used throughout the telemetry
// storage system.
//
// Key types:
//   - RawReading: A single power measurement appended by the meter poller
//   - MinuteAggregate: One-minute rollup of raw readings
//   - HourlyAggregate: One-hour rollup of minute aggregates
//   - Tier: Storage tier (raw, minute, hourly)
package types
