package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateAcceptsCommonForms(t *testing.T) {
	cases := []string{
		"* * * * *",
		"*/5 * * * *",
		"0 2 * * *",
		"0,15,30,45 9-17 * * 1-5",
		"@daily",
	}

	for _, expr := range cases {
		if err := Validate(expr); err != nil {
			t.Fatalf("Validate(%q) unexpected error: %v", expr, err)
		}
	}
}

func TestValidateRejectsInvalid(t *testing.T) {
	cases := []string{
		"",
		"61 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * *",
		"bad * * * *",
	}

	for _, expr := range cases {
		if err := Validate(expr); err == nil {
			t.Fatalf("Validate(%q) expected error, got nil", expr)
		}
	}
}

func TestNext(t *testing.T) {
	from := time.Date(2026, 2, 20, 2, 15, 0, 0, time.UTC) // Friday
	got, err := Next("0 3 * * 1-5", from)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := time.Date(2026, 2, 20, 3, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %s, want %s", got, want)
	}

	// Saturday and Sunday are skipped.
	got, err = Next("0 3 * * 1-5", want)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want = time.Date(2026, 2, 23, 3, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %s, want %s", got, want)
	}
}

func TestSchedulerStartRejectsInvalidExpression(t *testing.T) {
	s := NewScheduler("not a cron", 0, func(context.Context) error { return nil }, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error for invalid expression")
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler("@hourly", 0, func(context.Context) error { return nil }, nil)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.NextRun().IsZero() {
		t.Fatalf("expected a next run time while running")
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scheduler still running after cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSchedulerConcurrentStopWaitsForRunningJob(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool

	job := func(context.Context) error {
		once.Do(func() { close(started) })
		<-release
		finished.Store(true)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler("@every 1s", 0, job, nil)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never started")
	}

	// The cancel watcher stops the scheduler first; the explicit Stop below
	// is the second caller and must still wait for the job.
	cancel()
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatalf("Stop returned while a run was still in progress")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return after the job finished")
	}
	if !finished.Load() {
		t.Fatalf("Stop returned before the job finished")
	}
}
