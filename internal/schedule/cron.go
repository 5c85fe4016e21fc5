package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate reports whether expr is a standard 5-field cron expression
// (descriptors such as "@daily" are accepted too).
func Validate(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return fmt.Errorf("empty expression")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return err
	}
	return nil
}

// Next returns the first activation of expr strictly after t.
func Next(expr string, t time.Time) (time.Time, error) {
	s, err := cron.ParseStandard(strings.TrimSpace(expr))
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(t), nil
}

// Job is one scheduled invocation. Errors are logged, never fatal to the
// scheduler.
type Job func(ctx context.Context) error

// Scheduler runs a single job on a cron expression. A run that is still
// in progress when the next activation fires causes that activation to be
// skipped.
type Scheduler struct {
	expr    string
	timeout time.Duration
	job     Job
	log     *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	// stopped is done once the cron loop has halted and the last run has
	// returned. Nil until Stop is first called.
	stopped context.Context
}

func NewScheduler(expr string, timeout time.Duration, job Job, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		expr:    strings.TrimSpace(expr),
		timeout: timeout,
		job:     job,
		log:     log.With("component", "schedule"),
	}
}

// Start registers the job and starts the cron loop. It returns once the
// scheduler is running; the loop stops when ctx is canceled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if err := Validate(s.expr); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.expr, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.expr, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	c.Start()
	s.cron = c
	s.running = true

	s.log.Info("scheduler started", "schedule", s.expr, "next", s.nextLocked())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx := ctx
	cancel := func() {}
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	s.log.Info("scheduled run triggered")
	if err := s.job(runCtx); err != nil {
		s.log.Error("scheduled run failed", "error", err)
		return
	}
	s.log.Debug("scheduled run finished")
}

// Stop halts the scheduler and waits for a job in progress to return.
// Every caller waits, including concurrent ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cron == nil {
		s.mu.Unlock()
		return
	}
	first := s.running
	if first {
		s.running = false
		s.stopped = s.cron.Stop()
	}
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped.Done()
	if first {
		s.log.Info("scheduler stopped")
	}
}

// NextRun returns the next activation time, or the zero time when the
// scheduler is not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
