package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig holds configuration for the daily scheduler
type SchedulerConfig struct {
	// RunOnStart processes due parents once immediately (default: true)
	RunOnStart bool

	// RunTimeout bounds a single run (default: 10m)
	RunTimeout time.Duration

	// NextRun returns the next trigger after now (default: next UTC midnight)
	NextRun func(now time.Time) time.Time
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RunOnStart: true,
		RunTimeout: 10 * time.Minute,
		NextRun:    NextUTCMidnight,
	}
}

// NextUTCMidnight returns the first UTC midnight strictly after now.
func NextUTCMidnight(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// Scheduler triggers a RecurringProcessor once a day.
type Scheduler struct {
	processor *RecurringProcessor
	config    SchedulerConfig
	now       func() time.Time

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce *sync.Once
}

func NewScheduler(processor *RecurringProcessor, config SchedulerConfig) *Scheduler {
	if config.NextRun == nil {
		config.NextRun = NextUTCMidnight
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 10 * time.Minute
	}
	return &Scheduler{
		processor: processor,
		config:    config,
		now:       time.Now,
	}
}

// Start begins the trigger loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.stopOnce = &sync.Once{}
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Recurring scheduler started",
		"run_on_start", s.config.RunOnStart,
		"next_run", s.config.NextRun(s.now()).Format(time.RFC3339))
	return nil
}

// Stop signals the loop and waits for the current run to finish. A Stop that
// timed out may be retried; it keeps waiting for the same run.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh, once := s.stopCh, s.doneCh, s.stopOnce
	s.mu.Unlock()

	once.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Recurring scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce processes due parents at the current time.
func (s *Scheduler) RunOnce(ctx context.Context) (RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()
	return s.processor.ProcessDue(ctx, s.now())
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	if s.config.RunOnStart {
		s.run(ctx)
	}

	for {
		wait := s.config.NextRun(s.now()).Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	summary, err := s.RunOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Recurring run failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Recurring run finished",
		"due", summary.Due,
		"processed", summary.Processed,
		"failed", len(summary.Failed))
}
