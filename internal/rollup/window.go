// Package rollup implements the power telemetry downsampling pipeline:
// minute and hourly aggregation, startup catch-up after downtime, and the
// service that drives them on aligned timers.
//
// A window is a fixed-length, left-closed right-open interval aligned to a
// tier's granularity and identified by its start timestamp in unix seconds.
// Every aggregation path - scheduled tick, catch-up, manual trigger - funnels
// through the same per-window routines, so the existence-check-before-insert
// guard in the store is the only concurrency control needed.
package rollup

import (
	"math"
	"time"
)

// floorWindow truncates a unix-seconds timestamp to the start of its window.
func floorWindow(ts int64, window time.Duration) int64 {
	size := int64(window / time.Second)
	return (ts / size) * size
}

// previousWindowStart returns the start of the last fully elapsed window
// before now. The current, still-filling window is never targeted.
func previousWindowStart(now time.Time, window time.Duration) int64 {
	size := int64(window / time.Second)
	return floorWindow(now.Unix(), window) - size
}

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// round3 rounds to 3 decimal places.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
