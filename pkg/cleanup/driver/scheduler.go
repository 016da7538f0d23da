package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler fires drains on a cron schedule.
type Scheduler struct {
	driver   *Driver
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool

	// onDrain observes each completed drain. Tests use it.
	onDrain func(*Report, error)
}

// NewScheduler creates a scheduler for a standard five-field cron
// expression. An empty schedule makes Start a no-op.
func NewScheduler(driver *Driver, schedule string) *Scheduler {
	return &Scheduler{
		driver:   driver,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   slog.Default().With("component", "cleanup.scheduler"),
	}
}

// Start validates the schedule and begins firing drains. The scheduler
// stops when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("drain schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.runDrain(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule drain: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("drain scheduler started",
		"schedule", s.schedule,
		"max_ticks_per_drain", s.driver.config.MaxTicksPerDrain,
		"concurrency", s.driver.config.Concurrency,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runDrain(ctx context.Context) {
	report, err := s.driver.Drain(ctx)
	if err != nil {
		s.logger.Error("scheduled drain failed", "error", err)
	}
	if s.onDrain != nil {
		s.onDrain(report, err)
	}
}

// Stop stops the scheduler and waits for a running drain to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("drain scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is started.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled drain, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
