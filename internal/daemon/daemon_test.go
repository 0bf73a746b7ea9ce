package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"galleryvault/internal/config"
	"galleryvault/internal/daemon"
	"galleryvault/internal/gallery"
	"galleryvault/internal/services"
	"galleryvault/internal/testsupport"
	"galleryvault/internal/transport"
	"galleryvault/internal/webqueue"
)

func newDaemon(t *testing.T, cfg *config.Config, stub *testsupport.StubProvider, extra ...services.Option) *daemon.Daemon {
	t.Helper()
	opts := append([]services.Option{
		services.WithProviders(stub.Registration()),
		services.WithTransfers(map[string]transport.Transfer{}),
	}, extra...)
	svc, err := services.New(cfg, nil, opts...)
	if err != nil {
		t.Fatalf("services.New: %v", err)
	}
	d, err := daemon.New(svc, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
		svc.Close()
	})
	return d
}

func waitForJob(t *testing.T, d *daemon.Daemon, id string) webqueue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := d.Job(id)
		if ok && job.Status != webqueue.StatusQueued && job.Status != webqueue.StatusRunning {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return webqueue.Job{}
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, testsupport.NewStubProvider("stub"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.APIAddress == "" || len(status.Schedulers) != 2 {
		t.Fatalf("unexpected running status %+v", status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other := newDaemon(t, cfg, testsupport.NewStubProvider("stub"))
	if err := other.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected lock contention, got %v", err)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := d.Submit(webqueue.Request{URLs: []string{"https://stub.test/g/1"}}); !errors.Is(err, webqueue.ErrNotRunning) {
		t.Fatalf("expected submit after stop to fail, got %v", err)
	}
}

func TestAPICrawlLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stub := testsupport.NewStubProvider("stub")
	url := stub.Add(gallery.Record{GID: "7", Title: "Seven"})
	d := newDaemon(t, cfg, stub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	base := "http://" + d.Status(ctx).APIAddress

	body, _ := json.Marshal(webqueue.Request{URLs: []string{url}})
	resp, err := http.Post(base+"/api/crawl", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/crawl: %v", err)
	}
	var submitted webqueue.Job
	decodeBody(t, resp, http.StatusAccepted, &submitted)
	if submitted.ID == "" || submitted.Request.Source != "api" {
		t.Fatalf("unexpected submitted job %+v", submitted)
	}

	job := waitForJob(t, d, submitted.ID)
	if job.Status != webqueue.StatusDone || job.Summary.Downloaded != 1 {
		t.Fatalf("unexpected finished job %+v", job)
	}

	resp, err = http.Get(base + "/api/jobs/" + submitted.ID)
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	var fetched webqueue.Job
	decodeBody(t, resp, http.StatusOK, &fetched)
	if fetched.Status != webqueue.StatusDone || fetched.Summary.Fetched != 1 {
		t.Fatalf("unexpected job over api %+v", fetched)
	}

	resp, err = http.Get(base + "/api/jobs")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	var list daemon.JobListResponse
	decodeBody(t, resp, http.StatusOK, &list)
	if len(list.Jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(list.Jobs))
	}

	resp, err = http.Get(base + "/api/jobs/missing")
	if err != nil {
		t.Fatalf("GET missing job: %v", err)
	}
	decodeBody(t, resp, http.StatusNotFound, nil)

	resp, err = http.Post(base+"/api/crawl", "application/json", bytes.NewReader([]byte(`{"urls":[]}`)))
	if err != nil {
		t.Fatalf("POST empty crawl: %v", err)
	}
	decodeBody(t, resp, http.StatusBadRequest, nil)

	resp, err = http.Post(base+"/api/schedulers/tracker/run", "application/json", nil)
	if err != nil {
		t.Fatalf("POST scheduler run: %v", err)
	}
	decodeBody(t, resp, http.StatusAccepted, nil)

	resp, err = http.Post(base+"/api/schedulers/nope/run", "application/json", nil)
	if err != nil {
		t.Fatalf("POST unknown scheduler: %v", err)
	}
	decodeBody(t, resp, http.StatusNotFound, nil)

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(raw, []byte("galleryvault_")) {
		t.Fatalf("unexpected metrics response %d", resp.StatusCode)
	}
}

func TestFeedSchedulerQueuesCrawl(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.FeedCron = "0 0 1 1 *"
	stub := testsupport.NewStubProvider("stub")
	stub.SetFeed(stub.Add(gallery.Record{GID: "1", Title: "One"}), stub.Add(gallery.Record{GID: "2", Title: "Two"}))
	d := newDaemon(t, cfg, stub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.RunScheduler(daemon.SchedulerFeed); err != nil {
		t.Fatalf("RunScheduler: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, job := range d.Jobs() {
			if job.Request.Source == "feed:stub" && job.Status == webqueue.StatusDone {
				if job.Summary.Downloaded != 2 {
					t.Fatalf("unexpected feed summary %+v", job.Summary)
				}
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("feed crawl never finished")
}

func decodeBody(t *testing.T, resp *http.Response, wantStatus int, out any) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", wantStatus, resp.StatusCode, raw)
	}
	if out == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
