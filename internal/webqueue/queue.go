// Package webqueue serializes crawl requests into a single active crawl.
// Jobs are kept in memory and run in submission order.
package webqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"galleryvault/internal/crawler"
	"galleryvault/internal/logging"
)

// DefaultHistory is how many finished jobs are remembered.
const DefaultHistory = 200

// ErrNotRunning is returned by Submit after Stop.
var ErrNotRunning = errors.New("web queue not running")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Request is one crawl submission.
type Request struct {
	URLs       []string `json:"urls"`
	WantedOnly bool     `json:"wanted_only,omitempty"`
	ForceRetry bool     `json:"force_retry,omitempty"`
	Downloader string   `json:"downloader,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// Job is a snapshot of a queued crawl.
type Job struct {
	ID        string          `json:"id"`
	Request   Request         `json:"request"`
	Status    Status          `json:"status"`
	Submitted time.Time       `json:"submitted"`
	Started   time.Time       `json:"started,omitzero"`
	Finished  time.Time       `json:"finished,omitzero"`
	Summary   crawler.Summary `json:"summary"`
	Error     string          `json:"error,omitempty"`
}

// Runner executes one crawl.
type Runner func(ctx context.Context, req Request) (crawler.Summary, error)

// Queue is a FIFO of crawl jobs drained by one worker.
type Queue struct {
	run     Runner
	logger  *slog.Logger
	history int

	mu      sync.Mutex
	jobs    map[string]*Job
	order   []string
	pending []string
	running bool
	cancel  context.CancelFunc
	notify  chan struct{}
	wg      sync.WaitGroup
}

// New builds a stopped queue.
func New(run Runner, logger *slog.Logger) *Queue {
	return &Queue{
		run:     run,
		logger:  logging.NewComponentLogger(logger, "webqueue"),
		history: DefaultHistory,
		jobs:    make(map[string]*Job),
		notify:  make(chan struct{}, 1),
	}
}

// Start launches the worker.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("web queue already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.running = true
	q.wg.Add(1)
	go q.work(runCtx)
	return nil
}

// Stop cancels the active crawl, marks queued jobs canceled and waits for the
// worker to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	cancel := q.cancel
	q.running = false
	q.cancel = nil
	now := time.Now()
	for _, id := range q.pending {
		job := q.jobs[id]
		job.Status = StatusCanceled
		job.Finished = now
	}
	q.pending = nil
	q.mu.Unlock()

	cancel()
	q.wg.Wait()
}

// Submit validates and queues a crawl.
func (q *Queue) Submit(req Request) (Job, error) {
	urls := make([]string, 0, len(req.URLs))
	for _, raw := range req.URLs {
		if u := strings.TrimSpace(raw); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return Job{}, errors.New("submit crawl: at least one url is required")
	}
	req.URLs = urls

	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return Job{}, ErrNotRunning
	}
	job := &Job{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    StatusQueued,
		Submitted: time.Now(),
	}
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	q.pending = append(q.pending, job.ID)
	q.trimLocked()
	snapshot := copyJob(job)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	q.logger.Info("crawl queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("urls", len(urls)),
		logging.String("source", req.Source),
		logging.String(logging.FieldEventType, "crawl_queued"),
	)
	return snapshot, nil
}

// Get returns one job.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return copyJob(job), true
}

// List returns every remembered job, newest first.
func (q *Queue) List() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.order))
	for i := len(q.order) - 1; i >= 0; i-- {
		out = append(out, copyJob(q.jobs[q.order[i]]))
	}
	return out
}

// Pending reports how many jobs wait behind the active one.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		job, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.notify:
			}
			continue
		}
		q.execute(ctx, job)
		if ctx.Err() != nil {
			return
		}
	}
}

func (q *Queue) next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Job{}, false
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	job := q.jobs[id]
	job.Status = StatusRunning
	job.Started = time.Now()
	return copyJob(job), true
}

func (q *Queue) execute(ctx context.Context, job Job) {
	logger := q.logger.With(logging.String(logging.FieldJobID, job.ID))
	jobCtx := logging.ContextWithJobID(ctx, job.ID)
	logger.Info("crawl started",
		logging.Int("urls", len(job.Request.URLs)),
		logging.String(logging.FieldEventType, "crawl_started"),
	)

	summary, err := q.invoke(jobCtx, job.Request)

	q.mu.Lock()
	stored, ok := q.jobs[job.ID]
	if ok {
		stored.Summary = summary
		stored.Finished = time.Now()
		switch {
		case err == nil:
			stored.Status = StatusDone
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			stored.Status = StatusCanceled
			stored.Error = err.Error()
		default:
			stored.Status = StatusFailed
			stored.Error = err.Error()
		}
	}
	q.mu.Unlock()

	if err != nil {
		logging.ErrorWithContext(logger, "crawl failed", "crawl_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "remaining urls of the job were not processed"),
		)
		return
	}
	logger.Info("crawl finished",
		logging.Int("forwarded", summary.Forwarded),
		logging.Int("downloaded", summary.Downloaded),
		logging.Int("failed", summary.Failed),
		logging.String(logging.FieldEventType, "crawl_finished"),
	)
}

func (q *Queue) invoke(ctx context.Context, req Request) (summary crawler.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl panic: %v\n%s", r, debug.Stack())
		}
	}()
	return q.run(ctx, req)
}

// trimLocked forgets the oldest finished jobs beyond the history limit.
func (q *Queue) trimLocked() {
	excess := len(q.order) - q.history
	if excess <= 0 {
		return
	}
	kept := q.order[:0]
	for _, id := range q.order {
		job := q.jobs[id]
		if excess > 0 && !job.Finished.IsZero() {
			delete(q.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

func copyJob(job *Job) Job {
	out := *job
	out.Request.URLs = slices.Clone(job.Request.URLs)
	return out
}
