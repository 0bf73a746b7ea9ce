package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"galleryvault/internal/catalog"
	"galleryvault/internal/config"
	"galleryvault/internal/gallery"
	"galleryvault/internal/logging"
	"galleryvault/internal/metrics"
	"galleryvault/internal/preflight"
	"galleryvault/internal/provider"
	"galleryvault/internal/registry"
	"galleryvault/internal/wanted"
)

// ErrInsufficientSpace stops a run when the archive filesystem is below the
// configured free-space floor.
var ErrInsufficientSpace = errors.New("insufficient free space")

// Chain resolves the downloaders available for a record.
type Chain interface {
	Downloaders(q registry.Query) []registry.DownloaderEntry
}

// VerifyFunc checks a freshly committed archive.
type VerifyFunc func(ctx context.Context, archiveID int64) error

// Options tunes one Process call.
type Options struct {
	// Force ignores priority tables and attempts every downloader.
	Force bool
	// Downloader restricts the chain to a single downloader type.
	Downloader string
}

// Outcome reports what happened to one record.
type Outcome struct {
	Key        gallery.Key
	GalleryID  int64
	ArchiveID  int64
	TransferID int64
	Downloader string
	Succeeded  bool
	// Skipped lists downloaders passed over for hidden galleries.
	Skipped []string
}

// Pipeline commits downloader results to the catalog.
type Pipeline struct {
	cfg     *config.Config
	store   *catalog.Store
	chain   Chain
	metrics *metrics.Metrics
	logger  *slog.Logger

	verify    VerifyFunc
	sleep     func(context.Context, time.Duration) error
	freeSpace func(name, path string, minGiB float64) preflight.Result
}

// New builds a pipeline. m may be nil.
func New(cfg *config.Config, store *catalog.Store, chain Chain, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		chain:     chain,
		metrics:   m,
		logger:    logging.NewComponentLogger(logger, "download"),
		sleep:     sleepContext,
		freeSpace: preflight.CheckFreeSpace,
	}
}

// SetVerifier installs the hook run on every archive written synchronously.
func (p *Pipeline) SetVerifier(fn VerifyFunc) {
	p.verify = fn
}

// Process attempts every record in order. The provider wait is honoured
// between records unless the deciding downloader was info-only. Catalog
// failures and cancellation stop the run; outcomes so far are returned.
func (p *Pipeline) Process(ctx context.Context, records []gallery.Record, matches wanted.Matches, opts Options) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if err := p.checkSpace(); err != nil {
			return outcomes, err
		}

		outcome, infoOnly, err := p.processOne(ctx, rec, matches.For(rec.Key()), opts)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)

		if i == len(records)-1 || infoOnly {
			continue
		}
		if wait := p.cfg.WaitFor(rec.Provider); wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				return outcomes, err
			}
		}
	}
	return outcomes, nil
}

// Redownload forces a gallery through one downloader type, ignoring
// priority tables.
func (p *Pipeline) Redownload(ctx context.Context, galleryID int64, downloaderType string) (Outcome, error) {
	g, err := p.store.GetGallery(ctx, galleryID)
	if err != nil {
		return Outcome{}, err
	}
	if g == nil {
		return Outcome{}, fmt.Errorf("redownload: gallery %d not found", galleryID)
	}
	outcomes, err := p.Process(ctx, []gallery.Record{g.Record}, nil, Options{Force: true, Downloader: downloaderType})
	if err != nil {
		return Outcome{}, err
	}
	if len(outcomes) == 0 {
		return Outcome{}, fmt.Errorf("redownload: gallery %d produced no outcome", galleryID)
	}
	return outcomes[0], nil
}

func (p *Pipeline) checkSpace() error {
	minGiB := p.cfg.Paths.MinFreeGiB
	if minGiB <= 0 || p.cfg.Paths.ArchiveDir == "" {
		return nil
	}
	result := p.freeSpace("archive free space", p.cfg.Paths.ArchiveDir, minGiB)
	if result.Passed {
		return nil
	}
	logging.ErrorWithContext(p.logger, "archive filesystem below free-space floor", "free_space_low",
		logging.String("detail", result.Detail),
		logging.String(logging.FieldErrorHint, "free space in archive_dir or lower paths.min_free_gib"),
	)
	return fmt.Errorf("%w: %s", ErrInsufficientSpace, result.Detail)
}

func (p *Pipeline) processOne(ctx context.Context, rec gallery.Record, filters []wanted.Filter, opts Options) (Outcome, bool, error) {
	outcome := Outcome{Key: rec.Key()}
	logger := p.logger.With(
		logging.String(logging.FieldProvider, rec.Provider),
		logging.String(logging.FieldGID, rec.GID),
	)

	entries := p.chain.Downloaders(registry.Query{Provider: rec.Provider, Type: opts.Downloader, Force: opts.Force})
	lastInfoOnly := false
	for _, entry := range entries {
		if entry.Provider != rec.Provider {
			continue
		}
		if entry.Spec.SkipIfHidden && rec.Hidden {
			outcome.Skipped = append(outcome.Skipped, entry.Type)
			logger.Debug("downloader skipped for hidden gallery",
				logging.String(logging.FieldDownloader, entry.Type),
			)
			continue
		}
		lastInfoOnly = entry.Spec.InfoOnly

		attempt, err := entry.Downloader.Download(ctx, rec.Clone())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome, false, ctxErr
			}
			p.metrics.ObserveDownload(rec.Provider, entry.Type, "error")
			logging.WarnWithContext(logger, "downloader failed; trying next", "downloader_failed",
				logging.String(logging.FieldDownloader, entry.Type),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, downloaderHint(err)),
				logging.String(logging.FieldImpact, "next downloader in chain attempted"),
			)
			continue
		}
		if !attempt.Succeeded {
			p.metrics.ObserveDownload(rec.Provider, entry.Type, "declined")
			logger.Debug("downloader declined",
				logging.String(logging.FieldDownloader, entry.Type),
			)
			continue
		}

		p.metrics.ObserveDownload(rec.Provider, entry.Type, "success")
		outcome.Downloader = entry.Type
		outcome.Succeeded = true
		if err := p.commitSuccess(ctx, logger, rec, entry, attempt, filters, &outcome); err != nil {
			return outcome, false, err
		}
		return outcome, entry.Spec.InfoOnly, nil
	}

	p.metrics.ObserveDownload(rec.Provider, "", "exhausted")
	if err := p.commitFailure(ctx, logger, rec, filters, &outcome); err != nil {
		return outcome, false, err
	}
	return outcome, lastInfoOnly, nil
}

func (p *Pipeline) commitSuccess(ctx context.Context, logger *slog.Logger, rec gallery.Record, entry registry.DownloaderEntry, attempt provider.Attempt, filters []wanted.Filter, outcome *Outcome) error {
	if attempt.Filename != "" {
		rec.Filename = attempt.Filename
	}
	// Provider metadata stays authoritative; the archive only fills gaps.
	if rec.Filesize <= 0 && attempt.Filesize > 0 {
		rec.Filesize = attempt.Filesize
	}
	if rec.Filecount <= 0 && attempt.Filecount > 0 {
		rec.Filecount = attempt.Filecount
	}
	rec.DLType = gallery.DLTypeNone
	if entry.Spec.InfoOnly {
		rec.DLType = gallery.DLTypeInfo
	}

	if entry.Spec.ArchiveOnly {
		existing, err := p.store.FindGallery(ctx, rec.Key())
		if err != nil {
			return fmt.Errorf("find gallery %s: %w", rec.Key(), err)
		}
		if existing != nil {
			outcome.GalleryID = existing.ID
		}
	} else {
		g, err := p.store.UpsertGallery(ctx, rec, p.cfg.Crawl.ReplaceMetadata)
		if err != nil {
			return fmt.Errorf("store gallery %s: %w", rec.Key(), err)
		}
		outcome.GalleryID = g.ID
	}

	var archive *catalog.Archive
	if (attempt.FileDownloaded || attempt.Ticket != nil) && attempt.Filename != "" {
		status := catalog.ArchiveOK
		if attempt.Ticket != nil {
			status = catalog.ArchiveTransferring
		}
		var err error
		archive, err = p.store.UpsertArchive(ctx, catalog.Archive{
			Path:       attempt.Filename,
			GalleryID:  outcome.GalleryID,
			Title:      rec.DisplayTitle(),
			Checksum:   attempt.Checksum,
			Filesize:   attempt.Filesize,
			Filecount:  attempt.Filecount,
			MatchType:  entry.Type,
			SourceType: entry.Provider,
			Status:     status,
			Reason:     wantedReason(filters),
		})
		if err != nil {
			return fmt.Errorf("store archive %s: %w", attempt.Filename, err)
		}
		outcome.ArchiveID = archive.ID
	}

	if attempt.Ticket != nil && archive != nil {
		transfer, err := p.store.CreateTransfer(ctx, catalog.Transfer{
			ArchiveID:    archive.ID,
			Method:       attempt.Ticket.Method,
			TransferID:   attempt.Ticket.TransferID,
			Destination:  attempt.Ticket.Destination,
			ExpectedSize: attempt.Ticket.ExpectedSize,
		})
		if err != nil {
			return fmt.Errorf("store transfer: %w", err)
		}
		outcome.TransferID = transfer.ID
	}

	if err := p.linkWanted(ctx, outcome.GalleryID, filters); err != nil {
		return err
	}

	logger.Info("gallery downloaded",
		logging.String(logging.FieldDownloader, entry.Type),
		logging.String("title", rec.DisplayTitle()),
		logging.Bool("async", attempt.Ticket != nil),
		logging.String(logging.FieldEventType, "download_succeeded"),
	)

	if archive != nil && archive.Status == catalog.ArchiveOK && p.verify != nil {
		if err := p.verify(ctx, archive.ID); err != nil {
			logging.WarnWithContext(logger, "archive verification failed", "verify_failed",
				logging.Int64("archive_id", archive.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "archive left unverified until the next verification pass"),
			)
		}
	}
	return nil
}

func (p *Pipeline) commitFailure(ctx context.Context, logger *slog.Logger, rec gallery.Record, filters []wanted.Filter, outcome *Outcome) error {
	rec.DLType = gallery.DLTypeFailed
	g, err := p.store.UpsertGallery(ctx, rec, p.cfg.Crawl.ReplaceMetadata)
	if err != nil {
		return fmt.Errorf("store failed gallery %s: %w", rec.Key(), err)
	}
	outcome.GalleryID = g.ID
	if err := p.linkWanted(ctx, g.ID, filters); err != nil {
		return err
	}
	logging.WarnWithContext(logger, "every downloader failed", "download_exhausted",
		logging.String("title", rec.DisplayTitle()),
		logging.String(logging.FieldErrorHint, "check provider credentials and downloader priorities"),
		logging.String(logging.FieldImpact, "gallery recorded as failed"),
	)
	return nil
}

// linkWanted records the found relation for each matched filter.
func (p *Pipeline) linkWanted(ctx context.Context, galleryID int64, filters []wanted.Filter) error {
	hide := false
	for _, f := range filters {
		if f.ID <= 0 {
			continue
		}
		if galleryID > 0 {
			if err := p.store.LinkFound(ctx, f.ID, galleryID); err != nil {
				return err
			}
		}
		if err := p.store.MarkWantedFound(ctx, f.ID); err != nil {
			return err
		}
		hide = hide || f.HideOnFound
	}
	if hide && galleryID > 0 {
		if err := p.store.SetGalleryHidden(ctx, galleryID, true); err != nil {
			return err
		}
	}
	return nil
}

func wantedReason(filters []wanted.Filter) string {
	for _, f := range filters {
		if reason := strings.TrimSpace(f.Reason); reason != "" {
			return reason
		}
	}
	return ""
}

func downloaderHint(err error) string {
	switch {
	case errors.Is(err, provider.ErrConfiguration):
		return "check the provider credentials in the config"
	case errors.Is(err, provider.ErrNoResponse):
		return "provider unreachable after retries; check network"
	case errors.Is(err, provider.ErrNotFound):
		return "gallery no longer available from this downloader"
	default:
		return "see error for details"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
