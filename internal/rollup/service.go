package rollup

import (
	"context"
	"sync"
	"time"

	"github.com/homewatt/wattd/internal/retention"
)

// hourlyPhaseOffset delays the hourly tick slightly past the hour boundary
// so the minute tick for the hour's final window lands first.
const hourlyPhaseOffset = 5 * time.Second

// ServiceConfig holds aggregation service configuration.
type ServiceConfig struct {
	// Enabled controls whether any task is registered. Read once at Start.
	Enabled bool

	// CatchUpDelay is how long after Start the one-shot catch-up pass
	// runs, giving the meter poller time to resume first.
	CatchUpDelay time.Duration

	// RetentionHour is the local hour of day (0-23) for the daily
	// retention run.
	RetentionHour int
}

// Service owns the pipeline's timers: the minute tick, the hour tick, the
// daily retention tick, and the one-shot startup catch-up. The storage
// handle is injected through the aggregators rather than reached for
// globally, so tests can supply an isolated store.
//
// Each timer computes its next aligned fire time only after the previous
// run returns, so a tick can never overlap or queue behind itself; a
// window skipped because a run overran is recovered by catch-up on the
// next restart or by the idempotent re-attempt semantics.
type Service struct {
	config   ServiceConfig
	minute   *MinuteAggregator
	hourly   *HourlyAggregator
	catchup  *CatchUpCoordinator
	enforcer *retention.Enforcer

	shutdown chan struct{}
	wg       sync.WaitGroup
	started  bool
}

// NewService creates the aggregation service.
func NewService(cfg ServiceConfig, minute *MinuteAggregator, hourly *HourlyAggregator,
	catchup *CatchUpCoordinator, enforcer *retention.Enforcer) *Service {
	return &Service{
		config:   cfg,
		minute:   minute,
		hourly:   hourly,
		catchup:  catchup,
		enforcer: enforcer,
		shutdown: make(chan struct{}),
	}
}

// Start registers all scheduled and one-shot tasks.
// When the pipeline is disabled nothing is registered at all.
func (s *Service) Start() {
	if !s.config.Enabled {
		log.Info("telemetry pipeline disabled, no tasks registered")
		return
	}
	s.started = true

	s.wg.Add(4)
	go s.windowLoop(time.Minute, 0, s.runMinute)
	go s.windowLoop(time.Hour, hourlyPhaseOffset, s.runHourly)
	go s.dailyLoop()
	go s.catchUpOnce()

	log.Info("aggregation service started",
		"catch_up_delay", s.config.CatchUpDelay,
		"retention_hour", s.config.RetentionHour)
}

// Stop shuts down all timers and waits for any in-flight run to finish.
func (s *Service) Stop() {
	if !s.started {
		return
	}
	close(s.shutdown)
	s.wg.Wait()
	log.Info("aggregation service stopped")
}

// ForceCleanup runs a retention pass immediately. This is the manual
// operational entry point; it shares the daily tick's idempotent semantics
// and coalesces with any pass already in flight.
func (s *Service) ForceCleanup(ctx context.Context) retention.CleanupResult {
	return s.enforcer.RunNow(ctx)
}

// =============================================================================
// Timer Loops
// =============================================================================

// windowLoop fires run at each window boundary plus offset. The next fire
// time is computed after run returns: a run that overshoots its window
// skips the missed boundaries instead of queuing them.
func (s *Service) windowLoop(window time.Duration, offset time.Duration, run func(context.Context)) {
	defer s.wg.Done()

	for {
		now := time.Now()
		next := now.Add(-offset).Truncate(window).Add(window + offset)

		select {
		case <-time.After(time.Until(next)):
			run(context.Background())
		case <-s.shutdown:
			return
		}
	}
}

// dailyLoop fires the retention pass at the configured local hour.
func (s *Service) dailyLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-time.After(time.Until(s.nextDailyRun(time.Now()))):
			s.enforcer.RunNow(context.Background())
		case <-s.shutdown:
			return
		}
	}
}

// catchUpOnce runs the catch-up pass a fixed delay after startup, exactly
// once per process start. Shutdown during the delay or mid-pass cancels it.
func (s *Service) catchUpOnce() {
	defer s.wg.Done()

	select {
	case <-time.After(s.config.CatchUpDelay):
	case <-s.shutdown:
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.catchup.Run(ctx, time.Now())
}

// runMinute aggregates the previous minute window. Errors stay inside the
// tick: the window is left for catch-up or a later idempotent re-attempt.
func (s *Service) runMinute(ctx context.Context) {
	if err := s.minute.AggregatePrevious(ctx, time.Now()); err != nil {
		log.Error("minute tick failed", "error", err)
	}
}

// runHourly aggregates the previous hour window.
func (s *Service) runHourly(ctx context.Context) {
	if err := s.hourly.AggregatePrevious(ctx, time.Now()); err != nil {
		log.Error("hourly tick failed", "error", err)
	}
}

// nextDailyRun returns the next occurrence of the configured hour.
func (s *Service) nextDailyRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.config.RetentionHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
