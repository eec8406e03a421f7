// Package cron re-evaluates clock-dependent counters on a cron schedule. The
// overdue count only changes with the data or with the passage of time; this
// scheduler covers the second case.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Refresher is what the scheduler pokes. *tracker.Tracker implements it.
type Refresher interface {
	RefreshOverdue()
}

// Config holds the dependencies for the scheduler.
type Config struct {
	Target Refresher
	// Expr is a 5-field cron expression, e.g. "* * * * *".
	Expr     string
	Logger   *slog.Logger
	Interval time.Duration // tick interval; defaults to 15 seconds if zero
	Now      func() time.Time
}

// Scheduler checks at every tick whether the schedule is due and, if so,
// refreshes the target once and computes the next run.
type Scheduler struct {
	target   Refresher
	expr     string
	schedule cronlib.Schedule
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	next  time.Time
	fired atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler validates cfg.Expr and returns a stopped scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Target == nil {
		return nil, fmt.Errorf("cron: target is required")
	}
	schedule, err := cronParser.Parse(cfg.Expr)
	if err != nil {
		return nil, fmt.Errorf("cron: parse %q: %w", cfg.Expr, err)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		target:   cfg.Target,
		expr:     cfg.Expr,
		schedule: schedule,
		logger:   logger,
		interval: interval,
		now:      now,
	}, nil
}

// Start begins the scheduler loop. It runs in a background goroutine
// and respects the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.next = s.schedule.Next(s.now())
	s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("overdue refresher started", "cron_expr", s.expr, "next_run_at", s.NextRun())
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("overdue refresher stopped", "fired", s.fired.Load())
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick fires at most once however many runs were missed.
func (s *Scheduler) tick() {
	now := s.now()
	s.mu.Lock()
	if now.Before(s.next) {
		s.mu.Unlock()
		return
	}
	s.next = s.schedule.Next(now)
	next := s.next
	s.mu.Unlock()

	s.target.RefreshOverdue()
	s.fired.Add(1)
	s.logger.Debug("overdue counter refreshed", "next_run_at", next)
}

// NextRun is the time of the next scheduled refresh.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Fired counts refreshes since Start.
func (s *Scheduler) Fired() int64 {
	return s.fired.Load()
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(cronExpr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
