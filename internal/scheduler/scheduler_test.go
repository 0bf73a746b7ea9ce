package scheduler_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"galleryvault/internal/metrics"
	"galleryvault/internal/scheduler"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewValidatesOptions(t *testing.T) {
	job := func(context.Context) error { return nil }
	cases := []struct {
		name string
		opts scheduler.Options
		job  scheduler.Job
	}{
		{"missing name", scheduler.Options{Interval: time.Minute}, job},
		{"missing job", scheduler.Options{Name: "x", Interval: time.Minute}, nil},
		{"missing schedule", scheduler.Options{Name: "x"}, job},
		{"bad cron", scheduler.Options{Name: "x", Cron: "every tuesday"}, job},
	}
	for _, tc := range cases {
		if _, err := scheduler.New(tc.opts, tc.job, nil, nil); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}

	s, err := scheduler.New(scheduler.Options{Name: "feed", Cron: "*/5 * * * *", Interval: time.Minute}, job, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.Status().Schedule; got != "*/5 * * * *" {
		t.Fatalf("expected cron to win over interval, got %q", got)
	}
}

func TestForceRunShortCircuitsWait(t *testing.T) {
	var runs atomic.Int32
	s, err := scheduler.New(scheduler.Options{Name: "tracker", Interval: time.Hour}, func(context.Context) error {
		runs.Add(1)
		return nil
	}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.ForceRun(); !errors.Is(err, scheduler.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning before start, got %v", err)
	}

	s.Start(context.Background())
	t.Cleanup(func() { _ = s.Stop() })
	waitFor(t, "next run", func() bool { return !s.Status().NextRun.IsZero() })
	if runs.Load() != 0 {
		t.Fatal("job ran before its interval")
	}

	if err := s.ForceRun(); err != nil {
		t.Fatalf("ForceRun: %v", err)
	}
	waitFor(t, "forced run", func() bool { return s.Status().Runs == 1 })
	if runs.Load() != 1 {
		t.Fatalf("expected one run, got %d", runs.Load())
	}
	status := s.Status()
	if !status.Running || status.Failures != 0 || status.LastRun.IsZero() {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestJobPanicIsRecordedAndLoopSurvives(t *testing.T) {
	m := metrics.New("test")
	var calls atomic.Int32
	s, err := scheduler.New(scheduler.Options{Name: "verify", Interval: time.Hour, RunOnStart: true}, func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}, m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start(context.Background())
	t.Cleanup(func() { _ = s.Stop() })

	waitFor(t, "panicking run", func() bool { return s.Status().Failures == 1 })
	status := s.Status()
	if !strings.Contains(status.LastError, "job panic: boom") || !strings.Contains(status.LastError, "goroutine") {
		t.Fatalf("expected panic with stack, got %q", status.LastError)
	}

	if err := s.ForceRun(); err != nil {
		t.Fatalf("ForceRun: %v", err)
	}
	waitFor(t, "second run", func() bool { return s.Status().Runs == 2 })
	status = s.Status()
	if status.Failures != 1 || status.LastError != "" {
		t.Fatalf("expected bookkeeping to recover, got %#v", status)
	}
	if got := testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("verify", "error")); got != 1 {
		t.Fatalf("expected 1 failed job run, got %v", got)
	}
	if got := testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("verify", "success")); got != 1 {
		t.Fatalf("expected 1 successful job run, got %v", got)
	}
}

func TestStopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	s, err := scheduler.New(scheduler.Options{Name: "crawl", Interval: time.Hour, RunOnStart: true}, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start(context.Background())
	<-started
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	status := s.Status()
	if status.Running || status.Busy || status.Runs != 1 {
		t.Fatalf("unexpected status after stop %#v", status)
	}
	if err := s.ForceRun(); !errors.Is(err, scheduler.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestStopWaitIsBounded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s, err := scheduler.New(scheduler.Options{
		Name:        "stubborn",
		Interval:    time.Hour,
		RunOnStart:  true,
		StopTimeout: 20 * time.Millisecond,
	}, func(context.Context) error {
		close(started)
		<-release
		return nil
	}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start(context.Background())
	<-started
	defer close(release)

	if err := s.Stop(); !errors.Is(err, scheduler.ErrStopTimeout) {
		t.Fatalf("expected ErrStopTimeout, got %v", err)
	}
}

func TestGroupLookupAndStatuses(t *testing.T) {
	noop := func(context.Context) error { return nil }
	a, _ := scheduler.New(scheduler.Options{Name: "tracker", Interval: time.Hour}, noop, nil, nil)
	b, _ := scheduler.New(scheduler.Options{Name: "redownloads", Interval: time.Hour}, noop, nil, nil)

	var g scheduler.Group
	g.Add(a, b)
	g.Start(context.Background())
	if found, ok := g.Lookup("redownloads"); !ok || found != b {
		t.Fatal("expected to find redownloads scheduler")
	}
	if _, ok := g.Lookup("missing"); ok {
		t.Fatal("unexpected scheduler found")
	}
	statuses := g.Statuses()
	if len(statuses) != 2 || statuses[0].Name != "tracker" || !statuses[1].Running {
		t.Fatalf("unexpected statuses %#v", statuses)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if g.Statuses()[0].Running {
		t.Fatal("expected schedulers stopped")
	}
}
