package daemon

import (
	"context"
	"errors"
	"fmt"

	"galleryvault/internal/catalog"
	"galleryvault/internal/logging"
	"galleryvault/internal/notifications"
	"galleryvault/internal/webqueue"
)

// notify publishes event and logs delivery failures. Notifications never fail
// the job that produced them.
func (d *Daemon) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.svc.Notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(d.logger, "notification failed", "notify_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "event was not delivered"),
		)
	}
}

func (d *Daemon) pollTransfers(ctx context.Context) error {
	result, err := d.svc.Tracker.Poll(ctx)
	if err != nil {
		return err
	}
	if result.Checked > 0 {
		d.logger.Info("transfers polled",
			logging.Int("checked", result.Checked),
			logging.Int("completed", result.Completed),
			logging.Int("failed", result.Failed),
			logging.Int("pending", result.Pending),
		)
	}
	d.notify(ctx, notifications.EventTransfersFinished, notifications.Payload{
		"completed": result.Completed,
		"failed":    result.Failed,
	})
	return nil
}

func (d *Daemon) processRedownloads(ctx context.Context) error {
	done, failed, err := d.svc.Redownloads.Process(ctx)
	if done+failed > 0 {
		d.logger.Info("redownloads processed", logging.Int("done", done), logging.Int("failed", failed))
	}
	return err
}

func (d *Daemon) verifyArchives(ctx context.Context) error {
	reports, err := d.svc.Verifier.VerifyAll(ctx, catalog.ArchiveOK, catalog.ArchiveCorrupt)
	var corrupt, mismatched int
	for _, r := range reports {
		if r.Corrupt || r.Missing {
			corrupt++
		}
		if r.SizeMismatch {
			mismatched++
		}
	}
	d.logger.Info("archive verification finished",
		logging.Int("archives", len(reports)),
		logging.Int("unreadable", corrupt),
		logging.Int("size_mismatch", mismatched),
	)
	d.notify(ctx, notifications.EventVerifyProblems, notifications.Payload{
		"checked":  len(reports),
		"problems": corrupt + mismatched,
	})
	return err
}

// crawlFeeds submits one crawl job per provider feed.
func (d *Daemon) crawlFeeds(ctx context.Context) error {
	var errs []error
	for _, gen := range d.svc.Registry.Generators() {
		urls, err := gen.Generate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s feed: %w", gen.Provider, err))
			continue
		}
		if len(urls) == 0 {
			continue
		}
		job, err := d.queue.Submit(webqueue.Request{URLs: urls, Source: "feed:" + gen.Provider})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s feed: %w", gen.Provider, err))
			continue
		}
		d.logger.Info("feed crawl queued",
			logging.String(logging.FieldProvider, gen.Provider),
			logging.String(logging.FieldJobID, job.ID),
			logging.Int("urls", len(urls)),
		)
	}
	return errors.Join(errs...)
}
