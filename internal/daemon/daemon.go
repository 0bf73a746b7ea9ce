package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"galleryvault/internal/catalog"
	"galleryvault/internal/crawler"
	"galleryvault/internal/logging"
	"galleryvault/internal/notifications"
	"galleryvault/internal/preflight"
	"galleryvault/internal/scheduler"
	"galleryvault/internal/services"
	"galleryvault/internal/webqueue"
)

// Scheduler names.
const (
	SchedulerTracker     = "tracker"
	SchedulerRedownloads = "redownloads"
	SchedulerVerify      = "verify"
	SchedulerFeed        = "feed"
)

// ErrAlreadyRunning is returned when the lock is held by another process.
var ErrAlreadyRunning = errors.New("another galleryvault daemon instance is already running")

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	svc    *services.Services
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	queue      *webqueue.Queue
	schedulers *scheduler.Group
	api        *apiServer

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	preflight []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    time.Time          `json:"started_at,omitzero"`
	CatalogPath  string             `json:"catalog_path"`
	LockFilePath string             `json:"lock_file_path"`
	APIAddress   string             `json:"api_address,omitempty"`
	Providers    []string           `json:"providers"`
	QueuePending int                `json:"queue_pending"`
	Transfers    int                `json:"transfers_in_progress"`
	Redownloads  int                `json:"redownloads_pending"`
	Schedulers   []scheduler.Status `json:"schedulers"`
	Preflight    []CheckStatus      `json:"preflight,omitempty"`
}

// CheckStatus is a preflight result as reported by Status.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// New constructs a daemon around svc. The daemon does not own svc.
func New(svc *services.Services, logger *slog.Logger) (*Daemon, error) {
	if svc == nil || svc.Config == nil || svc.Store == nil {
		return nil, errors.New("daemon requires services with config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockPath := svc.Config.LockPath()
	d := &Daemon{
		svc:        svc,
		logger:     logger,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		schedulers: &scheduler.Group{},
	}
	d.queue = webqueue.New(d.runCrawl, logger)
	if err := d.buildSchedulers(); err != nil {
		return nil, err
	}
	api, err := newAPIServer(svc.Config, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

type scheduledJob struct {
	opts scheduler.Options
	job  scheduler.Job
}

func (d *Daemon) buildSchedulers() error {
	cfg := d.svc.Config
	m := d.svc.Metrics

	specs := []scheduledJob{
		{
			opts: scheduler.Options{
				Name:     SchedulerTracker,
				Interval: time.Duration(cfg.Workflow.TransferPollSeconds) * time.Second,
			},
			job: d.pollTransfers,
		},
		{
			opts: scheduler.Options{
				Name:     SchedulerRedownloads,
				Interval: time.Duration(cfg.Workflow.RedownloadPollSeconds) * time.Second,
			},
			job: d.processRedownloads,
		},
	}
	if cfg.Workflow.VerifyCron != "" {
		specs = append(specs, scheduledJob{scheduler.Options{Name: SchedulerVerify, Cron: cfg.Workflow.VerifyCron}, d.verifyArchives})
	}
	if cfg.Workflow.FeedCron != "" {
		specs = append(specs, scheduledJob{scheduler.Options{Name: SchedulerFeed, Cron: cfg.Workflow.FeedCron}, d.crawlFeeds})
	}

	for _, spec := range specs {
		s, err := scheduler.New(spec.opts, spec.job, m, d.logger)
		if err != nil {
			return fmt.Errorf("scheduler %s: %w", spec.opts.Name, err)
		}
		d.schedulers.Add(s)
	}
	return nil
}

// Start acquires the daemon lock and launches the queue, schedulers and API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.runPreflight(runCtx)

	if err := d.queue.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start web queue: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.queue.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.schedulers.Start(runCtx)

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("galleryvault daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if err := d.schedulers.Stop(); err != nil {
		logging.WarnWithContext(d.logger, "schedulers did not stop cleanly", "scheduler_stop_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a job may still be running during shutdown"),
		)
	}
	d.queue.Stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("galleryvault daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Submit queues a crawl request.
func (d *Daemon) Submit(req webqueue.Request) (webqueue.Job, error) {
	return d.queue.Submit(req)
}

// Job returns one queued or finished crawl.
func (d *Daemon) Job(id string) (webqueue.Job, bool) {
	return d.queue.Get(id)
}

// Jobs lists queued and finished crawls, newest first.
func (d *Daemon) Jobs() []webqueue.Job {
	return d.queue.List()
}

// RunScheduler forces an immediate run of the named scheduler.
func (d *Daemon) RunScheduler(name string) error {
	s, ok := d.schedulers.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownScheduler, name)
	}
	return s.ForceRun()
}

var errUnknownScheduler = errors.New("unknown scheduler")

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		CatalogPath:  d.svc.Store.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
		Providers:    d.svc.Registry.Providers(),
		QueuePending: d.queue.Pending(),
		Schedulers:   d.schedulers.Statuses(),
	}
	d.mu.Lock()
	status.StartedAt = d.startedAt
	for _, r := range d.preflight {
		status.Preflight = append(status.Preflight, CheckStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	d.mu.Unlock()

	if transfers, err := d.svc.Store.ListTransfers(ctx, catalog.TransferInProgress); err == nil {
		status.Transfers = len(transfers)
	} else {
		d.logger.Warn("status: list transfers failed", logging.Error(err))
	}
	if pending, err := d.svc.Store.PendingRedownloads(ctx); err == nil {
		status.Redownloads = len(pending)
	} else {
		d.logger.Warn("status: list redownloads failed", logging.Error(err))
	}
	return status
}

func (d *Daemon) runPreflight(ctx context.Context) {
	results := preflight.RunAll(ctx, d.svc.Config, d.svc.TransferList()...)
	d.preflight = results
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "fix the directory, disk space or transport settings"),
			logging.String(logging.FieldImpact, "related jobs may fail until resolved"),
		)
	}
}

func (d *Daemon) runCrawl(ctx context.Context, req webqueue.Request) (crawler.Summary, error) {
	summary, err := d.svc.Crawl(ctx, req.URLs, crawler.Options{
		WantedOnly: req.WantedOnly,
		ForceRetry: req.ForceRetry,
		Downloader: req.Downloader,
	})
	if err != nil && ctx.Err() == nil {
		d.notify(ctx, notifications.EventError, notifications.Payload{"context": "crawl " + req.Source, "error": err})
	}
	d.notify(ctx, notifications.EventCrawlCompleted, notifications.Payload{
		"source":     req.Source,
		"downloaded": summary.Downloaded,
		"failed":     summary.Failed,
		"wanted":     summary.Wanted,
	})
	return summary, err
}
