package reconcile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"galleryvault/internal/catalog"
	"galleryvault/internal/config"
	"galleryvault/internal/fileutil"
	"galleryvault/internal/logging"
	"galleryvault/internal/metrics"
	"galleryvault/internal/transport"
	"galleryvault/internal/workerpool"
)

// PollResult counts what one tracker pass did.
type PollResult struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// Tracker follows asynchronous transfers to completion.
type Tracker struct {
	cfg       *config.Config
	store     *catalog.Store
	transfers map[string]transport.Transfer
	verifier  *Verifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewTracker builds a tracker over the named transports. verifier may be nil.
func NewTracker(cfg *config.Config, store *catalog.Store, transfers map[string]transport.Transfer, verifier *Verifier, m *metrics.Metrics, logger *slog.Logger) *Tracker {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return &Tracker{
		cfg:       cfg,
		store:     store,
		transfers: transfers,
		verifier:  verifier,
		metrics:   m,
		logger:    logging.NewComponentLogger(logger, "tracker"),
	}
}

// Poll checks every in-progress transfer once. Finished payloads are moved
// into the archive directory and verified; transfers the backend forgot
// whose payload is missing are marked failed and not retried.
func (t *Tracker) Poll(ctx context.Context) (PollResult, error) {
	var result PollResult
	pending, err := t.store.ListTransfers(ctx, catalog.TransferInProgress)
	if err != nil {
		return result, err
	}
	result.Checked = len(pending)

	byMethod := make(map[string][]*catalog.Transfer)
	var methods []string
	for _, tr := range pending {
		if _, ok := byMethod[tr.Method]; !ok {
			methods = append(methods, tr.Method)
		}
		byMethod[tr.Method] = append(byMethod[tr.Method], tr)
	}

	var finished []*catalog.Transfer
	for _, method := range methods {
		group := byMethod[method]
		backend, ok := t.transfers[method]
		if !ok || backend == nil {
			result.Pending += len(group)
			logging.WarnWithContext(t.logger, "no transport for transfers", "transport_missing",
				logging.String("method", method),
				logging.Int("transfers", len(group)),
				logging.String(logging.FieldErrorHint, "enable the transport in the config"),
				logging.String(logging.FieldImpact, "transfers stay in progress"),
			)
			continue
		}
		ids := make([]string, 0, len(group))
		for _, tr := range group {
			ids = append(ids, tr.TransferID)
		}
		progress, err := backend.Progress(ctx, ids)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Pending += len(group)
			logging.WarnWithContext(t.logger, "transfer progress unavailable", "transfer_progress_failed",
				logging.String("method", method),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the transport is running"),
				logging.String(logging.FieldImpact, "transfers checked again on the next poll"),
			)
			continue
		}

		for _, tr := range group {
			p, known := progress[tr.TransferID]
			switch {
			case known && (p.Done || p.Percent >= 100), atExpectedSize(tr.Destination, tr.ExpectedSize):
				finished = append(finished, tr)
			case !known && !exists(tr.Destination):
				result.Failed++
				if err := t.fail(ctx, tr, "transfer unknown to transport and payload missing"); err != nil {
					return result, err
				}
			default:
				result.Pending++
				if err := t.store.UpdateTransfer(ctx, tr.ID, catalog.TransferInProgress, p.Percent); err != nil {
					return result, err
				}
			}
		}
	}

	var mu sync.Mutex
	err = workerpool.Drain(ctx, t.logger, t.cfg.Workflow.PoolSize, finished, func(ctx context.Context, tr *catalog.Transfer) error {
		if err := t.complete(ctx, tr); err != nil {
			return err
		}
		mu.Lock()
		result.Completed++
		mu.Unlock()
		return nil
	})
	t.metrics.SetTransfersInProgress(result.Pending)
	return result, err
}

func (t *Tracker) complete(ctx context.Context, tr *catalog.Transfer) error {
	archive, err := t.store.GetArchive(ctx, tr.ArchiveID)
	if err != nil {
		return err
	}
	target := tr.Destination
	if t.cfg.Paths.ArchiveDir != "" && filepath.Dir(tr.Destination) != filepath.Clean(t.cfg.Paths.ArchiveDir) {
		target = fileutil.UniquePath(filepath.Join(t.cfg.Paths.ArchiveDir, filepath.Base(tr.Destination)))
		if err := fileutil.MoveFile(tr.Destination, target); err != nil {
			return err
		}
	}
	if archive != nil {
		if err := t.store.MoveArchive(ctx, archive.ID, target); err != nil {
			return err
		}
		if err := t.store.SetArchiveStatus(ctx, archive.ID, catalog.ArchiveOK, ""); err != nil {
			return err
		}
	}
	if err := t.store.UpdateTransfer(ctx, tr.ID, catalog.TransferComplete, 100); err != nil {
		return err
	}
	t.logger.Info("transfer complete",
		logging.String("method", tr.Method),
		logging.String("transfer_id", tr.TransferID),
		logging.String("path", target),
		logging.String(logging.FieldEventType, "transfer_complete"),
	)
	if archive != nil && t.verifier != nil {
		if _, err := t.verifier.VerifyArchive(ctx, archive.ID); err != nil {
			logging.WarnWithContext(t.logger, "verification after transfer failed", "verify_failed",
				logging.Int64("archive_id", archive.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "archive verified again on the next verification pass"),
			)
		}
	}
	return nil
}

func (t *Tracker) fail(ctx context.Context, tr *catalog.Transfer, reason string) error {
	if err := t.store.UpdateTransfer(ctx, tr.ID, catalog.TransferFailed, 0); err != nil {
		return err
	}
	if err := t.store.SetArchiveStatus(ctx, tr.ArchiveID, catalog.ArchiveFailed, reason); err != nil {
		return err
	}
	logging.WarnWithContext(t.logger, "transfer failed", "transfer_failed",
		logging.String("method", tr.Method),
		logging.String("transfer_id", tr.TransferID),
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, "requeue the gallery if it is still wanted"),
		logging.String(logging.FieldImpact, "archive marked failed; no automatic retry"),
	)
	return nil
}

func atExpectedSize(path string, expected int64) bool {
	if expected <= 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() == expected
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
