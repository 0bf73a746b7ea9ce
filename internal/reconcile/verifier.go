package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"galleryvault/internal/catalog"
	"galleryvault/internal/config"
	"galleryvault/internal/fileutil"
	"galleryvault/internal/logging"
	"galleryvault/internal/metrics"
	"galleryvault/internal/registry"
	"galleryvault/internal/workerpool"
)

const (
	reasonCorrupt      = "corrupt archive"
	reasonSizeMismatch = "size mismatch"
)

// Redownloaders finds the downloader used for forced retries of a provider.
type Redownloaders interface {
	Redownloader(name string) (registry.DownloaderEntry, bool)
}

// Report describes one verification.
type Report struct {
	ArchiveID  int64
	Checksum   string
	ImageSize  int64
	ImageCount int
	Corrupt    bool
	Missing    bool
	// SizeMismatch is set when the image size differs from the gallery and
	// no sibling archive has the expected size.
	SizeMismatch     bool
	RedownloadQueued bool
}

// Verifier checks archives on disk.
type Verifier struct {
	cfg     *config.Config
	store   *catalog.Store
	redl    Redownloaders
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewVerifier builds a verifier. m may be nil.
func NewVerifier(cfg *config.Config, store *catalog.Store, redl Redownloaders, m *metrics.Metrics, logger *slog.Logger) *Verifier {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return &Verifier{
		cfg:     cfg,
		store:   store,
		redl:    redl,
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "verifier"),
	}
}

// VerifyAll verifies every archive in the given statuses on the worker pool.
func (v *Verifier) VerifyAll(ctx context.Context, statuses ...catalog.ArchiveStatus) ([]Report, error) {
	archives, err := v.store.ListArchives(ctx, catalog.ArchiveFilter{Statuses: statuses})
	if err != nil {
		return nil, err
	}
	reports := make([]Report, len(archives))
	indexes := make([]int, len(archives))
	for i := range indexes {
		indexes[i] = i
	}
	err = workerpool.Drain(ctx, v.logger, v.cfg.Workflow.PoolSize, indexes, func(ctx context.Context, i int) error {
		report, err := v.VerifyArchive(ctx, archives[i].ID)
		reports[i] = report
		return err
	})
	return reports, err
}

// VerifyArchive checks one archive and stores the recomputed contents.
func (v *Verifier) VerifyArchive(ctx context.Context, id int64) (Report, error) {
	report := Report{ArchiveID: id}
	archive, err := v.store.GetArchive(ctx, id)
	if err != nil {
		return report, err
	}
	if archive == nil {
		return report, fmt.Errorf("verify: archive %d not found", id)
	}
	logger := v.logger.With(logging.Int64("archive_id", id), logging.String("path", archive.Path))

	images, err := fileutil.InspectZip(archive.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		report.Missing = true
		v.metrics.ObserveVerification("missing")
		logging.WarnWithContext(logger, "archive file missing", "archive_missing",
			logging.String(logging.FieldErrorHint, "restore the file or remove the archive row"),
			logging.String(logging.FieldImpact, "archive marked failed"),
		)
		return report, v.store.SetArchiveStatus(ctx, id, catalog.ArchiveFailed, "file missing")
	case err != nil:
		report.Corrupt = true
		v.metrics.ObserveVerification("corrupt")
		if err := v.store.SetArchiveStatus(ctx, id, catalog.ArchiveCorrupt, err.Error()); err != nil {
			return report, err
		}
		queued, qerr := v.queueRedownload(ctx, logger, archive, reasonCorrupt)
		report.RedownloadQueued = queued
		return report, qerr
	}
	size, count := images.Size, images.Count

	checksum, _, err := fileutil.SHA1File(archive.Path)
	if err != nil {
		return report, err
	}
	report.Checksum = checksum
	report.ImageSize = size
	report.ImageCount = count
	if err := v.store.UpdateArchiveContents(ctx, id, checksum, size, count); err != nil {
		return report, err
	}

	mismatch, err := v.sizeMismatch(ctx, archive, size)
	if err != nil {
		return report, err
	}
	if !mismatch {
		v.metrics.ObserveVerification("ok")
		return report, nil
	}
	report.SizeMismatch = true
	v.metrics.ObserveVerification("size_mismatch")
	queued, err := v.queueRedownload(ctx, logger, archive, reasonSizeMismatch)
	report.RedownloadQueued = queued
	return report, err
}

// sizeMismatch reports whether size differs from the linked gallery and no
// other archive of the gallery carries the gallery's size.
func (v *Verifier) sizeMismatch(ctx context.Context, archive *catalog.Archive, size int64) (bool, error) {
	if !archive.HasGallery() {
		return false, nil
	}
	g, err := v.store.GetGallery(ctx, archive.GalleryID)
	if err != nil || g == nil {
		return false, err
	}
	if g.Filesize <= 0 || g.Filesize == size {
		return false, nil
	}
	siblings, err := v.store.ArchivesForGallery(ctx, g.ID)
	if err != nil {
		return false, err
	}
	for _, sibling := range siblings {
		if sibling.ID != archive.ID && sibling.Filesize == g.Filesize {
			return false, nil
		}
	}
	return true, nil
}

func (v *Verifier) queueRedownload(ctx context.Context, logger *slog.Logger, archive *catalog.Archive, reason string) (bool, error) {
	if !archive.HasGallery() {
		logging.WarnWithContext(logger, "archive needs a redownload but has no gallery", "redownload_unavailable",
			logging.String("reason", reason),
			logging.String(logging.FieldErrorHint, "match the archive to a gallery first"),
			logging.String(logging.FieldImpact, "archive left as is"),
		)
		return false, nil
	}
	g, err := v.store.GetGallery(ctx, archive.GalleryID)
	if err != nil || g == nil {
		return false, err
	}
	healthy, err := v.healthySibling(ctx, g, archive)
	if err != nil {
		return false, err
	}
	if healthy != nil {
		logger.Info("redownload skipped, gallery has a healthy archive",
			logging.Int64("healthy_archive_id", healthy.ID),
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "redownload_skipped"),
		)
		return false, nil
	}
	tried, err := v.store.RedownloadAttempted(ctx, g.ID, reason)
	if err != nil {
		return false, err
	}
	if tried {
		logging.WarnWithContext(logger, "archive still fails after a redownload", "redownload_exhausted",
			logging.String(logging.FieldProvider, g.Provider),
			logging.String(logging.FieldGID, g.GID),
			logging.String("reason", reason),
			logging.String(logging.FieldErrorHint, "queue a manual redownload or replace the archive"),
			logging.String(logging.FieldImpact, "archive left as is"),
		)
		return false, nil
	}
	entry, ok := v.redl.Redownloader(g.Provider)
	if !ok {
		logging.WarnWithContext(logger, "provider cannot redownload", "redownload_unsupported",
			logging.String(logging.FieldProvider, g.Provider),
			logging.String(logging.FieldGID, g.GID),
			logging.String("reason", reason),
			logging.String(logging.FieldErrorHint, "replace the archive manually"),
			logging.String(logging.FieldImpact, "archive left as is"),
		)
		return false, nil
	}
	queued, err := v.store.EnqueueRedownload(ctx, g.ID, g.Provider, entry.Type, reason)
	if err != nil {
		return false, err
	}
	if queued {
		v.metrics.ObserveRedownloadQueued()
		logger.Info("redownload queued",
			logging.String(logging.FieldProvider, g.Provider),
			logging.String(logging.FieldGID, g.GID),
			logging.String(logging.FieldDownloader, entry.Type),
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "redownload_queued"),
		)
	}
	return queued, nil
}

// healthySibling returns another archive of the same gallery that verified
// ok with the gallery's size, if any.
func (v *Verifier) healthySibling(ctx context.Context, g *catalog.Gallery, archive *catalog.Archive) (*catalog.Archive, error) {
	siblings, err := v.store.ArchivesForGallery(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	for _, sibling := range siblings {
		if sibling.ID == archive.ID || sibling.Status != catalog.ArchiveOK {
			continue
		}
		if g.Filesize <= 0 || sibling.Filesize == g.Filesize {
			return sibling, nil
		}
	}
	return nil, nil
}
