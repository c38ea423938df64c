package rollup

import (
	"context"
	"time"

	"github.com/homewatt/wattd/internal/storage/types"
)

// CatchUpStore is the storage surface the catch-up coordinator needs to
// locate the resume point for each tier.
type CatchUpStore interface {
	LatestMinuteWindowStart(ctx context.Context) (int64, bool, error)
	EarliestRawTimestamp(ctx context.Context) (int64, bool, error)
	LatestHourlyWindowStart(ctx context.Context) (int64, bool, error)
	EarliestMinuteTimestamp(ctx context.Context) (int64, bool, error)
}

// CatchUpCoordinator backfills aggregate windows missed while the process
// was not running. It runs once per process start and drives the same
// per-window routines as the scheduled ticks, so downtime recovery cannot
// produce gaps or duplicates.
type CatchUpCoordinator struct {
	store  CatchUpStore
	minute *MinuteAggregator
	hourly *HourlyAggregator
}

// CatchUpStats summarizes one catch-up pass for logging.
type CatchUpStats struct {
	MinuteWindows int // minute windows attempted
	MinuteErrors  int
	HourlyWindows int // hourly windows attempted
	HourlyErrors  int
}

// NewCatchUpCoordinator creates a catch-up coordinator.
func NewCatchUpCoordinator(s CatchUpStore, minute *MinuteAggregator, hourly *HourlyAggregator) *CatchUpCoordinator {
	return &CatchUpCoordinator{
		store:  s,
		minute: minute,
		hourly: hourly,
	}
}

// Run executes one catch-up pass ending at now. The minute pass runs to
// completion before the hourly pass starts, since hourly windows are built
// from minute rows. A failure in one window is logged and does not stop the
// remaining windows.
func (c *CatchUpCoordinator) Run(ctx context.Context, now time.Time) CatchUpStats {
	var stats CatchUpStats

	log.Info("catch-up starting")

	c.minutePass(ctx, now, &stats)
	c.hourlyPass(ctx, now, &stats)

	log.Info("catch-up complete",
		"minute_windows", stats.MinuteWindows,
		"minute_errors", stats.MinuteErrors,
		"hourly_windows", stats.HourlyWindows,
		"hourly_errors", stats.HourlyErrors)
	return stats
}

func (c *CatchUpCoordinator) minutePass(ctx context.Context, now time.Time, stats *CatchUpStats) {
	start, ok := c.resumePoint(ctx, time.Minute,
		c.store.LatestMinuteWindowStart, c.store.EarliestRawTimestamp)
	if !ok {
		return
	}

	// The current, still-filling window is excluded: end is exclusive.
	end := floorWindow(now.Unix(), time.Minute)
	size := types.TierMinute.WindowSeconds()

	for ws := start; ws < end; ws += size {
		if ctx.Err() != nil {
			return
		}
		stats.MinuteWindows++
		if err := c.minute.AggregateWindow(ctx, ws); err != nil {
			stats.MinuteErrors++
			log.Error("catch-up minute window failed", "window_start", ws, "error", err)
		}
	}
}

func (c *CatchUpCoordinator) hourlyPass(ctx context.Context, now time.Time, stats *CatchUpStats) {
	start, ok := c.resumePoint(ctx, time.Hour,
		c.store.LatestHourlyWindowStart, c.store.EarliestMinuteTimestamp)
	if !ok {
		return
	}

	end := floorWindow(now.Unix(), time.Hour)
	size := types.TierHourly.WindowSeconds()

	for ws := start; ws < end; ws += size {
		if ctx.Err() != nil {
			return
		}
		stats.HourlyWindows++
		if err := c.hourly.AggregateWindow(ctx, ws); err != nil {
			stats.HourlyErrors++
			log.Error("catch-up hourly window failed", "window_start", ws, "error", err)
		}
	}
}

// resumePoint determines where a tier's backfill starts: one window past
// the latest existing aggregate, or the earliest source timestamp floored
// to a window boundary when the tier is empty. ok is false when there is
// nothing to resume from.
func (c *CatchUpCoordinator) resumePoint(
	ctx context.Context,
	window time.Duration,
	latest func(context.Context) (int64, bool, error),
	earliestSource func(context.Context) (int64, bool, error),
) (int64, bool) {
	ws, ok, err := latest(ctx)
	if err != nil {
		log.Error("catch-up: latest window lookup failed", "window", window, "error", err)
		return 0, false
	}
	if ok {
		return ws + int64(window/time.Second), true
	}

	src, ok, err := earliestSource(ctx)
	if err != nil {
		log.Error("catch-up: earliest source lookup failed", "window", window, "error", err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	return floorWindow(src, window), true
}
