// Package scheduler runs background jobs on an interval or a cron
// expression with cooperative stop and a force-run override.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"galleryvault/internal/logging"
	"galleryvault/internal/metrics"
)

// DefaultStopTimeout bounds how long Stop waits for a running job.
const DefaultStopTimeout = 30 * time.Second

var (
	// ErrNotRunning is returned by ForceRun before Start or after Stop.
	ErrNotRunning = errors.New("scheduler not running")
	// ErrStopTimeout is returned when a job does not return within the stop
	// timeout.
	ErrStopTimeout = errors.New("scheduler stop timed out")
)

// Job is one unit of background work.
type Job func(ctx context.Context) error

// Options configures a scheduler. Cron wins over Interval when both are set.
type Options struct {
	Name        string
	Interval    time.Duration
	Cron        string
	RunOnStart  bool
	StopTimeout time.Duration
}

// Status is a snapshot of a scheduler.
type Status struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Running      bool          `json:"running"`
	Busy         bool          `json:"busy"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastRun      time.Time     `json:"last_run,omitzero"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      time.Time     `json:"next_run,omitzero"`
}

// Scheduler runs one job repeatedly until stopped.
type Scheduler struct {
	name        string
	spec        string
	schedule    cron.Schedule
	runOnStart  bool
	stopTimeout time.Duration
	job         Job
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu     sync.Mutex
	status Status
	force  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// New validates opts and builds a stopped scheduler. m may be nil.
func New(opts Options, job Job, m *metrics.Metrics, logger *slog.Logger) (*Scheduler, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errors.New("scheduler: name is required")
	}
	if job == nil {
		return nil, fmt.Errorf("scheduler %s: job is required", name)
	}
	var (
		schedule cron.Schedule
		spec     string
	)
	switch {
	case strings.TrimSpace(opts.Cron) != "":
		spec = strings.TrimSpace(opts.Cron)
		parsed, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("scheduler %s: parse cron %q: %w", name, spec, err)
		}
		schedule = parsed
	case opts.Interval > 0:
		schedule = cron.Every(opts.Interval)
		spec = "@every " + opts.Interval.String()
	default:
		return nil, fmt.Errorf("scheduler %s: interval or cron expression is required", name)
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Scheduler{
		name:        name,
		spec:        spec,
		schedule:    schedule,
		runOnStart:  opts.RunOnStart,
		stopTimeout: stopTimeout,
		job:         job,
		metrics:     m,
		logger:      logging.NewComponentLogger(logger, "scheduler").With(logging.String("scheduler", name)),
		status:      Status{Name: name, Schedule: spec},
	}, nil
}

// Name returns the scheduler name.
func (s *Scheduler) Name() string { return s.name }

// Start launches the loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.force = make(chan struct{}, 1)
	s.status.Running = true
	go s.loop(loopCtx, s.force, s.done)
	s.logger.Info("scheduler started",
		logging.String("schedule", s.spec),
		logging.String(logging.FieldEventType, "scheduler_started"),
	)
}

// Stop signals the loop and waits up to the stop timeout for the current job
// to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logging.WarnWithContext(s.logger, "scheduler did not stop in time", "scheduler_stop_timeout",
			logging.Duration("timeout", s.stopTimeout),
			logging.String(logging.FieldImpact, "job keeps running in the background"),
		)
		return fmt.Errorf("%w: %s", ErrStopTimeout, s.name)
	}
	s.mu.Lock()
	s.status.Running = false
	s.status.NextRun = time.Time{}
	s.mu.Unlock()
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stopped"))
	return nil
}

// ForceRun short-circuits the next wait. Requests made while a forced run is
// already pending collapse into one.
func (s *Scheduler) ForceRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return fmt.Errorf("%w: %s", ErrNotRunning, s.name)
	}
	select {
	case s.force <- struct{}{}:
	default:
	}
	return nil
}

// Status returns a snapshot.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) loop(ctx context.Context, force <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if s.runOnStart {
		s.runOnce(ctx)
	}
	for {
		next := s.schedule.Next(time.Now())
		s.mu.Lock()
		s.status.NextRun = next
		s.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-force:
			timer.Stop()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		s.runOnce(ctx)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	s.status.Busy = true
	s.mu.Unlock()

	start := time.Now()
	err := s.invoke(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.status.Busy = false
	s.status.Runs++
	s.status.LastRun = start
	s.status.LastDuration = elapsed
	s.status.LastError = ""
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	s.metrics.ObserveJob(s.name, elapsed, err)
	switch {
	case err == nil:
		s.logger.Debug("job finished", logging.Duration("elapsed", elapsed))
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		s.logger.Info("job interrupted by stop", logging.Duration("elapsed", elapsed))
	default:
		logging.ErrorWithContext(s.logger, "job failed", "scheduler_job_failed",
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job retried on the next tick"),
		)
	}
}

// invoke runs the job and turns a panic into an error carrying the stack.
func (s *Scheduler) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v\n%s", r, debug.Stack())
		}
	}()
	return s.job(ctx)
}

// Group starts and stops a set of schedulers together.
type Group struct {
	mu         sync.Mutex
	schedulers []*Scheduler
}

// Add registers schedulers with the group.
func (g *Group) Add(schedulers ...*Scheduler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.schedulers = append(g.schedulers, schedulers...)
}

// Start starts every scheduler.
func (g *Group) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.schedulers {
		s.Start(ctx)
	}
}

// Stop stops every scheduler and joins their timeouts.
func (g *Group) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var errs []error
	for _, s := range g.schedulers {
		errs = append(errs, s.Stop())
	}
	return errors.Join(errs...)
}

// Lookup finds a scheduler by name.
func (g *Group) Lookup(name string) (*Scheduler, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.schedulers {
		if s.name == name {
			return s, true
		}
	}
	return nil, false
}

// Statuses returns a snapshot of every scheduler in registration order.
func (g *Group) Statuses() []Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Status, 0, len(g.schedulers))
	for _, s := range g.schedulers {
		out = append(out, s.Status())
	}
	return out
}
