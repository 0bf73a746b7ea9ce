package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"galleryvault/internal/catalog"
	"galleryvault/internal/download"
	"galleryvault/internal/logging"
)

// Redownloader forces one gallery through one downloader type.
type Redownloader interface {
	Redownload(ctx context.Context, galleryID int64, downloaderType string) (download.Outcome, error)
}

// Redownloads drains queued redownload requests.
type Redownloads struct {
	store    *catalog.Store
	pipeline Redownloader
	logger   *slog.Logger
}

// NewRedownloads builds the redownload processor.
func NewRedownloads(store *catalog.Store, pipeline Redownloader, logger *slog.Logger) *Redownloads {
	return &Redownloads{
		store:    store,
		pipeline: pipeline,
		logger:   logging.NewComponentLogger(logger, "redownloads"),
	}
}

// Process runs every pending request once and closes it as done or failed.
func (r *Redownloads) Process(ctx context.Context) (done, failed int, err error) {
	pending, err := r.store.PendingRedownloads(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			return done, failed, err
		}
		logger := r.logger.With(
			logging.String(logging.FieldProvider, req.Provider),
			logging.Int64("gallery_id", req.GalleryID),
			logging.String(logging.FieldDownloader, req.Downloader),
		)
		status := catalog.RedownloadDone
		outcome, runErr := r.pipeline.Redownload(ctx, req.GalleryID, req.Downloader)
		switch {
		case runErr != nil && ctx.Err() != nil:
			return done, failed, ctx.Err()
		case runErr != nil:
			status = catalog.RedownloadFailed
			logging.WarnWithContext(logger, "redownload failed", "redownload_failed",
				logging.Error(runErr),
				logging.String(logging.FieldImpact, "request closed as failed"),
			)
		case !outcome.Succeeded:
			status = catalog.RedownloadFailed
			logging.WarnWithContext(logger, "redownload produced nothing", "redownload_failed",
				logging.String("reason", req.Reason),
				logging.String(logging.FieldErrorHint, "check the downloader credentials"),
				logging.String(logging.FieldImpact, "request closed as failed"),
			)
		default:
			logger.Info("redownload finished",
				logging.String("reason", req.Reason),
				logging.Int64("archive_id", outcome.ArchiveID),
				logging.String(logging.FieldEventType, "redownload_done"),
			)
			if err := r.retireCorrupt(ctx, logger, req.GalleryID, outcome.ArchiveID); err != nil {
				return done, failed, err
			}
		}
		if err := r.store.CompleteRedownload(ctx, req.ID, status); err != nil {
			return done, failed, err
		}
		if status == catalog.RedownloadDone {
			done++
		} else {
			failed++
		}
	}
	return done, failed, nil
}

// retireCorrupt marks the gallery's corrupt archives failed once a
// replacement exists so verification stops picking them up.
func (r *Redownloads) retireCorrupt(ctx context.Context, logger *slog.Logger, galleryID, replacementID int64) error {
	if replacementID == 0 {
		return nil
	}
	archives, err := r.store.ArchivesForGallery(ctx, galleryID)
	if err != nil {
		return err
	}
	for _, a := range archives {
		if a.ID == replacementID || a.Status != catalog.ArchiveCorrupt {
			continue
		}
		reason := fmt.Sprintf("replaced by archive %d", replacementID)
		if err := r.store.SetArchiveStatus(ctx, a.ID, catalog.ArchiveFailed, reason); err != nil {
			return err
		}
		logger.Info("corrupt archive retired",
			logging.Int64("archive_id", a.ID),
			logging.Int64("replacement_id", replacementID),
			logging.String(logging.FieldEventType, "archive_retired"),
		)
	}
	return nil
}
