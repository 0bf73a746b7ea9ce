package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"galleryvault/internal/catalog"
	"galleryvault/internal/config"
	"galleryvault/internal/download"
	"galleryvault/internal/gallery"
	"galleryvault/internal/logging"
	"galleryvault/internal/metrics"
	"galleryvault/internal/provider"
	"galleryvault/internal/wanted"
)

// Discard codes label why a gallery was not forwarded.
const (
	DiscardDenied     = "denied"
	DiscardFailed     = "failed"
	DiscardDownloaded = "downloaded"
	DiscardTag        = "tag"
	DiscardNotWanted  = "not_wanted"
	DiscardDuplicate  = "duplicate"
)

// Parsers resolves provider parsers for URLs.
type Parsers interface {
	ParserFor(url string) (provider.Parser, bool)
	CheckConfig(name string) error
}

// Processor consumes the records that survive a crawl.
type Processor interface {
	Process(ctx context.Context, records []gallery.Record, matches wanted.Matches, opts download.Options) ([]download.Outcome, error)
}

// Options tunes one crawl.
type Options struct {
	// WantedOnly drops records no wanted filter matched.
	WantedOnly bool
	// ForceRetry bypasses the catalog pre-check.
	ForceRetry bool
	// Downloader restricts the download chain to one type.
	Downloader string
}

// Discard records a gallery that was not forwarded.
type Discard struct {
	URL    string      `json:"url,omitempty"`
	Key    gallery.Key `json:"key"`
	Code   string      `json:"code"`
	Reason string      `json:"reason"`
}

// Summary aggregates one crawl across providers.
type Summary struct {
	Submitted  int       `json:"submitted"`
	Rejected   []string  `json:"rejected,omitempty"`
	Skipped    []string  `json:"skipped,omitempty"`
	Discarded  []Discard `json:"discarded,omitempty"`
	Fetched    int       `json:"fetched"`
	Forwarded  int       `json:"forwarded"`
	Downloaded int       `json:"downloaded"`
	Failed     int       `json:"failed"`
	Wanted     int       `json:"wanted"`
}

func (s *Summary) merge(other Summary) {
	s.Skipped = append(s.Skipped, other.Skipped...)
	s.Discarded = append(s.Discarded, other.Discarded...)
	s.Fetched += other.Fetched
	s.Forwarded += other.Forwarded
	s.Downloaded += other.Downloaded
	s.Failed += other.Failed
	s.Wanted += other.Wanted
}

// Dispatcher runs crawls.
type Dispatcher struct {
	cfg       *config.Config
	store     *catalog.Store
	parsers   Parsers
	processor Processor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	discard   map[string]struct{}
	sleep     func(context.Context, time.Duration) error
}

// New builds a dispatcher. m may be nil.
func New(cfg *config.Config, store *catalog.Store, parsers Parsers, processor Processor, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return &Dispatcher{
		cfg:       cfg,
		store:     store,
		parsers:   parsers,
		processor: processor,
		metrics:   m,
		logger:    logging.NewComponentLogger(logger, "crawler"),
		discard:   gallery.TagSet(cfg.Crawl.DiscardTags),
		sleep:     sleepContext,
	}
}

type providerBatch struct {
	parser provider.Parser
	urls   []string
}

// Crawl processes urls against filters. Provider failures are logged and do
// not fail the crawl; cancellation and catalog errors do.
func (d *Dispatcher) Crawl(ctx context.Context, urls []string, filters []wanted.Filter, opts Options) (Summary, error) {
	summary := Summary{Submitted: len(urls)}
	set, err := wanted.NewSet(filters)
	if err != nil {
		return summary, fmt.Errorf("compile wanted filters: %w", err)
	}

	var order []string
	groups := make(map[string]*providerBatch)
	for _, url := range urls {
		parser, ok := d.parsers.ParserFor(url)
		if !ok {
			summary.Rejected = append(summary.Rejected, url)
			d.logger.Info("url rejected by every provider",
				logging.URL("url", url),
				logging.String(logging.FieldEventType, "url_rejected"),
			)
			continue
		}
		name := parser.Provider()
		group, ok := groups[name]
		if !ok {
			group = &providerBatch{parser: parser}
			groups[name] = group
			order = append(order, name)
		}
		group.urls = append(group.urls, url)
	}

	var mu sync.Mutex
	run := func(ctx context.Context, name string) error {
		part, err := d.crawlProvider(ctx, groups[name], set, opts)
		mu.Lock()
		summary.merge(part)
		mu.Unlock()
		return err
	}

	if d.cfg.Crawl.ParallelProviders && d.store.SupportsConcurrentWriters() && len(order) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range order {
			g.Go(func() error { return run(gctx, name) })
		}
		err = g.Wait()
	} else {
		for _, name := range order {
			if err = run(ctx, name); err != nil {
				break
			}
		}
	}

	d.logger.Info("crawl finished",
		logging.Int("submitted", summary.Submitted),
		logging.Int("rejected", len(summary.Rejected)),
		logging.Int("discarded", len(summary.Discarded)),
		logging.Int("forwarded", summary.Forwarded),
		logging.Int("downloaded", summary.Downloaded),
		logging.String(logging.FieldEventType, "crawl_finished"),
	)
	return summary, err
}

func (d *Dispatcher) crawlProvider(ctx context.Context, batch *providerBatch, set *wanted.Set, opts Options) (Summary, error) {
	var summary Summary
	name := batch.parser.Provider()
	ctx = logging.ContextWithProvider(ctx, name)
	logger := logging.WithContext(ctx, d.logger)
	d.metrics.ObserveCrawlURLs(name, len(batch.urls))

	if err := d.parsers.CheckConfig(name); err != nil {
		summary.Skipped = append(summary.Skipped, name)
		logging.WarnWithContext(logger, "provider skipped: invalid configuration", "provider_config_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the provider section of the config"),
			logging.String(logging.FieldImpact, fmt.Sprintf("%d urls not crawled", len(batch.urls))),
		)
		return summary, nil
	}

	pending, discards, err := d.precheck(ctx, batch.parser, batch.urls, opts)
	if err != nil {
		return summary, err
	}
	d.recordDiscards(&summary, discards)

	records, err := d.fetch(ctx, logger, batch.parser, pending)
	if err != nil {
		return summary, err
	}
	summary.Fetched = len(records)

	survivors := make([]gallery.Record, 0, len(records))
	for _, rec := range records {
		if tag, hit := gallery.FirstIntersecting(rec.Tags, d.discard); hit {
			d.recordDiscards(&summary, []Discard{{URL: rec.Link, Key: rec.Key(), Code: DiscardTag, Reason: "discarded tag " + tag}})
			continue
		}
		survivors = append(survivors, rec)
	}

	matches := set.Match(survivors)
	summary.Wanted = len(matches)
	if opts.WantedOnly {
		kept := survivors[:0]
		for _, rec := range survivors {
			if _, ok := matches[rec.Key()]; !ok {
				d.recordDiscards(&summary, []Discard{{URL: rec.Link, Key: rec.Key(), Code: DiscardNotWanted, Reason: "not wanted"}})
				continue
			}
			kept = append(kept, rec)
		}
		survivors = kept
	}

	summary.Forwarded = len(survivors)
	if len(survivors) == 0 {
		return summary, nil
	}
	outcomes, err := d.processor.Process(ctx, survivors, matches, download.Options{Downloader: opts.Downloader})
	for _, outcome := range outcomes {
		if outcome.Succeeded {
			summary.Downloaded++
		} else {
			summary.Failed++
		}
	}
	if err != nil {
		return summary, fmt.Errorf("%s: download: %w", name, err)
	}
	return summary, nil
}

// precheck drops URLs whose gallery the catalog already settles.
func (d *Dispatcher) precheck(ctx context.Context, parser provider.Parser, urls []string, opts Options) ([]string, []Discard, error) {
	seen := make(map[gallery.Key]struct{}, len(urls))
	pending := make([]string, 0, len(urls))
	var discards []Discard
	for _, url := range urls {
		key, ok := parser.Key(url)
		if !ok {
			pending = append(pending, url)
			continue
		}
		if _, dup := seen[key]; dup {
			discards = append(discards, Discard{URL: url, Key: key, Code: DiscardDuplicate, Reason: "duplicate url"})
			continue
		}
		seen[key] = struct{}{}

		code, reason, err := d.discardReason(ctx, key, opts)
		if err != nil {
			return nil, nil, err
		}
		if code != "" {
			discards = append(discards, Discard{URL: url, Key: key, Code: code, Reason: reason})
			continue
		}
		pending = append(pending, url)
	}
	return pending, discards, nil
}

// discardReason applies the catalog policy table; first hit wins.
func (d *Dispatcher) discardReason(ctx context.Context, key gallery.Key, opts Options) (string, string, error) {
	g, err := d.store.FindGallery(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("precheck %s: %w", key, err)
	}
	switch {
	case g == nil:
		return "", "", nil
	case g.Status == catalog.GalleryDenied:
		return DiscardDenied, "gallery is denied", nil
	case g.Reprocess, opts.ForceRetry:
		return "", "", nil
	case g.DLType == gallery.DLTypeFailed && !d.cfg.Crawl.RetryFailed:
		return DiscardFailed, "previously failed, retry disabled", nil
	}
	archives, err := d.store.ArchivesForGallery(ctx, g.ID)
	if err != nil {
		return "", "", fmt.Errorf("precheck %s: %w", key, err)
	}
	if len(archives) > 0 && !d.cfg.Crawl.Redownload {
		return DiscardDownloaded, "already downloaded", nil
	}
	return "", "", nil
}

// fetch retrieves metadata in batches with the provider wait between calls.
// Failed batches are logged and skipped.
func (d *Dispatcher) fetch(ctx context.Context, logger *slog.Logger, parser provider.Parser, urls []string) ([]gallery.Record, error) {
	name := parser.Provider()
	size := d.cfg.BatchSizeFor(name, parser.BatchSize())
	wait := d.cfg.WaitFor(name)

	var records []gallery.Record
	for start := 0; start < len(urls); start += size {
		if start > 0 && wait > 0 {
			if err := d.sleep(ctx, wait); err != nil {
				return records, err
			}
		}
		end := min(start+size, len(urls))
		batch, err := parser.FetchMany(ctx, urls[start:end])
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return records, ctxErr
			}
			impact := fmt.Sprintf("%d urls skipped", end-start)
			if errors.Is(err, provider.ErrConfiguration) {
				impact = "remaining batches skipped"
			}
			logging.WarnWithContext(logger, "metadata batch failed", "metadata_fetch_failed",
				logging.Int("batch_start", start),
				logging.Int("batch_size", end-start),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check provider availability and credentials"),
				logging.String(logging.FieldImpact, impact),
			)
			if errors.Is(err, provider.ErrConfiguration) {
				return records, nil
			}
			continue
		}
		records = append(records, batch...)
	}
	return records, nil
}

func (d *Dispatcher) recordDiscards(summary *Summary, discards []Discard) {
	for _, discard := range discards {
		d.metrics.ObserveDiscard(discard.Code)
		d.logger.Debug("gallery discarded",
			logging.String(logging.FieldProvider, discard.Key.Provider),
			logging.String(logging.FieldGID, discard.Key.GID),
			logging.String("reason", discard.Reason),
		)
	}
	summary.Discarded = append(summary.Discarded, discards...)
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
