package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"networth/internal/core"
)

type countingSource struct {
	lists atomic.Int32
}

func (c *countingSource) ListDueRecurring(context.Context, time.Time) ([]core.Transaction, error) {
	c.lists.Add(1)
	return nil, nil
}

func (c *countingSource) ClaimRecurring(context.Context, string, time.Time, time.Time) (bool, error) {
	return true, nil
}

func (c *countingSource) ReleaseClaim(context.Context, string) error { return nil }

// blockingSource holds a run inside ListDueRecurring until release is closed.
type blockingSource struct {
	countingSource
	started chan struct{}
	release chan struct{}
}

func (b *blockingSource) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	close(b.started)
	<-b.release
	return b.countingSource.ListDueRecurring(ctx, now)
}

func TestNextUTCMidnight(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "middle of day",
			now:  time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly midnight moves to next day",
			now:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "end of year",
			now:  time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC),
			want: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non-UTC input",
			now:  time.Date(2024, 1, 15, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600)),
			want: time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextUTCMidnight(tt.now); !got.Equal(tt.want) {
				t.Errorf("NextUTCMidnight() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduler_IsRunning(t *testing.T) {
	s := NewScheduler(NewRecurringProcessor(&countingSource{}, &fakeMaterializer{}, 0), DefaultSchedulerConfig())
	if s.IsRunning() {
		t.Error("scheduler should not be running initially")
	}
}

func TestScheduler_StartRunStop(t *testing.T) {
	src := &countingSource{}
	cfg := DefaultSchedulerConfig()
	cfg.NextRun = func(now time.Time) time.Time { return now.Add(time.Hour) }
	s := NewScheduler(NewRecurringProcessor(src, &fakeMaterializer{}, 0), cfg)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("expected error when starting already running scheduler")
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.lists.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if src.lists.Load() != 1 {
		t.Errorf("expected one run on start, got %d", src.lists.Load())
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
}

func TestScheduler_StopNotRunning(t *testing.T) {
	s := NewScheduler(NewRecurringProcessor(&countingSource{}, &fakeMaterializer{}, 0), SchedulerConfig{})
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestScheduler_StopRetryAfterTimeout(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	cfg := DefaultSchedulerConfig()
	cfg.NextRun = func(now time.Time) time.Time { return now.Add(time.Hour) }
	s := NewScheduler(NewRecurringProcessor(src, &fakeMaterializer{}, 0), cfg)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-src.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run on start did not begin")
	}

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		err := s.Stop(ctx)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Stop() attempt %d error = %v, want deadline exceeded", i+1, err)
		}
		if !s.IsRunning() {
			t.Fatalf("scheduler reported stopped while a run is still in progress")
		}
	}

	close(src.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() after release error = %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
	if got := src.lists.Load(); got != 1 {
		t.Errorf("expected exactly one run, got %d", got)
	}
}
