package daemon_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"galleryvault/internal/daemon"
	"galleryvault/internal/gallery"
	"galleryvault/internal/notifications"
	"galleryvault/internal/services"
	"galleryvault/internal/testsupport"
	"galleryvault/internal/webqueue"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   map[notifications.Event]notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		r.last = map[notifications.Event]notifications.Payload{}
	}
	r.events = append(r.events, event)
	r.last[event] = payload
	return nil
}

func (r *recordingNotifier) payload(event notifications.Event) (notifications.Payload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.last[event]
	return p, ok
}

func TestCrawlJobPublishesNotification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stub := testsupport.NewStubProvider("stub")
	url := stub.Add(gallery.Record{GID: "1", Title: "One"})
	notifier := &recordingNotifier{}
	d := newDaemon(t, cfg, stub, services.WithNotifier(notifier))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	job, err := d.Submit(webqueue.Request{URLs: []string{url}, Source: "test"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if finished := waitForJob(t, d, job.ID); finished.Status != webqueue.StatusDone {
		t.Fatalf("unexpected job %+v", finished)
	}

	payload, ok := notifier.payload(notifications.EventCrawlCompleted)
	if !ok {
		t.Fatal("expected crawl notification")
	}
	if payload["source"] != "test" || payload["downloaded"] != 1 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if _, ok := notifier.payload(notifications.EventError); ok {
		t.Fatal("did not expect an error notification")
	}
}

func TestTransferPollPublishesNotification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	notifier := &recordingNotifier{}
	d := newDaemon(t, cfg, testsupport.NewStubProvider("stub"), services.WithNotifier(notifier))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.RunScheduler(daemon.SchedulerTracker); err != nil {
		t.Fatalf("RunScheduler: %v", err)
	}
	waitUntil(t, func() bool {
		_, ok := notifier.payload(notifications.EventTransfersFinished)
		return ok
	})
}

func waitUntil(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
