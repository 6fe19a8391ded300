package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Scheduler runs sweep cycles for a set of targets on a cron schedule.
type Scheduler struct {
	sweepers    []*Sweeper
	schedule    string
	concurrency int

	cron    *cron.Cron
	mu      sync.Mutex // guards lifecycle state
	cycleMu sync.Mutex // held for the duration of one cycle
	running bool
}

// NewScheduler creates a scheduler that sweeps all targets on the given
// cron schedule, at most concurrency targets at a time.
func NewScheduler(sweepers []*Sweeper, schedule string, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Scheduler{
		sweepers:    sweepers,
		schedule:    schedule,
		concurrency: concurrency,
		cron:        cron.New(),
	}
}

// Start validates the schedule and begins cron-driven cycles. The
// scheduler stops itself when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		return errors.New("cron schedule is required")
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.runCycle(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	slog.Info("scheduler started", "schedule", s.schedule, "targets", len(s.sweepers))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// runCycle sweeps every target, bounded by the concurrency limit. A
// cycle that fires while the previous one is still going is skipped
// rather than allowed to race it.
func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		slog.Warn("previous sweep cycle still running, skipping this one")
		return
	}
	defer s.cycleMu.Unlock()

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, sw := range s.sweepers {
		g.Go(func() error {
			// One failed target must not cancel the others.
			if _, err := sw.Run(ctx); err != nil {
				slog.Error("scheduled sweep failed", "target", sw.Target, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Stop halts the cron loop and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	slog.Info("scheduler stopped")
}

// IsRunning reports whether the cron loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the time of the next scheduled cycle.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}
