// Package matcher runs provider match strategies and decides whether a title
// or local file corresponds to a provider gallery.
//
// An attempt formats the search and comparison keys, searches, optionally
// waits, fetches candidates, drops candidates carrying a discarded tag, then
// ranks what is left. Exact strategies accept every candidate with score 1;
// fuzzy strategies rank candidate titles against the comparison key. Every
// attempt builds fresh state, so one Engine may serve concurrent callers.
package matcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"galleryvault/internal/config"
	"galleryvault/internal/fuzzy"
	"galleryvault/internal/gallery"
	"galleryvault/internal/logging"
	"galleryvault/internal/metrics"
	"galleryvault/internal/provider"
)

// Result is a populated match. A nil *Result means no match.
type Result struct {
	Title       string
	Link        string
	Record      gallery.Record
	Count       int
	Score       float64
	MatcherType string
	Provider    string
}

// Ranked is one entry of a multi-match result.
type Ranked struct {
	Title  string
	Record gallery.Record
	Score  float64
}

// Engine executes match attempts.
type Engine struct {
	cfg     *config.Config
	discard map[string]struct{}
	metrics *metrics.Metrics
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewEngine builds an engine using the global discard tags of cfg.
func NewEngine(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	return &Engine{
		cfg:     cfg,
		discard: gallery.TagSet(cfg.Crawl.DiscardTags),
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "matcher"),
		sleep:   sleepContext,
	}
}

type candidatePool struct {
	compareKey string
	records    []gallery.Record
}

// Match returns the single best candidate passing the strategy's cutoff.
func (e *Engine) Match(ctx context.Context, m provider.Matcher, q provider.Query) (*Result, error) {
	pool, err := e.candidates(ctx, m, q)
	if err != nil || pool == nil {
		e.observe(m, "no_match")
		return nil, err
	}

	if m.Exact() {
		rec := pool.records[0]
		e.observe(m, "match")
		return e.result(m, rec, 1.0, len(pool.records)), nil
	}

	cutoff := e.cfg.CutoffFor(m.Provider(), m.Type(), m.DefaultCutoff())
	records := pool.records
	titles := e.compareTitles(m, records)
	best, ok := fuzzy.BestMatch(pool.compareKey, titles, cutoff)
	if !ok {
		e.observe(m, "below_cutoff")
		e.logger.Debug("no candidate passed cutoff",
			logging.String(logging.FieldProvider, m.Provider()),
			logging.String("matcher", m.Type()),
			logging.Float64("cutoff", cutoff),
			logging.Int("candidates", len(titles)),
		)
		return nil, nil
	}
	e.observe(m, "match")
	return e.result(m, records[best.Index], best.Score, len(records)), nil
}

// MatchRanked returns up to limit candidates passing cutoff, best first. A
// limit below one or a cutoff outside [0,1] fails with
// fuzzy.ErrInvalidArgument before any search is made.
func (e *Engine) MatchRanked(ctx context.Context, m provider.Matcher, q provider.Query, cutoff float64, limit int) ([]Ranked, error) {
	if limit <= 0 || cutoff < 0 || cutoff > 1 {
		return nil, fuzzy.ErrInvalidArgument
	}
	pool, err := e.candidates(ctx, m, q)
	if err != nil || pool == nil {
		return nil, err
	}

	records := pool.records
	if m.Exact() {
		out := make([]Ranked, 0, min(limit, len(records)))
		for i := range records {
			if len(out) == limit {
				break
			}
			out = append(out, Ranked{Title: records[i].DisplayTitle(), Record: records[i], Score: 1.0})
		}
		return out, nil
	}

	matches, err := fuzzy.CloseMatches(pool.compareKey, e.compareTitles(m, records), cutoff, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Ranked, 0, len(matches))
	for _, match := range matches {
		rec := records[match.Index]
		out = append(out, Ranked{Title: rec.DisplayTitle(), Record: rec, Score: match.Score})
	}
	return out, nil
}

// candidates runs format, search, wait, fetch and discard filtering. A nil
// pool with a nil error means no match.
func (e *Engine) candidates(ctx context.Context, m provider.Matcher, q provider.Query) (*candidatePool, error) {
	logger := e.logger.With(
		logging.String(logging.FieldProvider, m.Provider()),
		logging.String("matcher", m.Type()),
	)

	searchKey, err := m.FormatSearchKey(q)
	if err != nil {
		logger.Debug("query not supported by matcher", logging.Error(err))
		return nil, nil
	}
	compareKey := m.FormatCompareKey(q)

	links, err := m.Search(ctx, searchKey)
	if err != nil {
		return nil, e.degrade(ctx, logger, "search", err)
	}
	if len(links) == 0 {
		logger.Debug("search returned no candidates", logging.String("search_key", searchKey))
		return nil, nil
	}

	if wait := m.Wait(); wait > 0 {
		if err := e.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	records, err := m.Fetch(ctx, links)
	if err != nil {
		return nil, e.degrade(ctx, logger, "fetch", err)
	}

	kept := records[:0:0]
	for _, rec := range records {
		if tag, hit := gallery.FirstIntersecting(rec.Tags, e.discard); hit {
			logger.Debug("candidate discarded by tag",
				logging.String(logging.FieldGID, rec.GID),
				logging.String("tag", tag),
			)
			continue
		}
		if rec.DisplayTitle() == "" {
			continue
		}
		kept = append(kept, rec)
	}
	if len(kept) == 0 {
		return nil, nil
	}
	return &candidatePool{compareKey: compareKey, records: kept}, nil
}

// degrade turns transport failures into "no match". Cancellation and
// configuration errors still propagate.
func (e *Engine) degrade(ctx context.Context, logger *slog.Logger, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, provider.ErrConfiguration) {
		return err
	}
	logging.WarnWithContext(logger, "matcher "+step+" failed", "matcher_"+step+"_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check provider availability and credentials"),
		logging.String(logging.FieldImpact, "treated as no match"),
	)
	return nil
}

func (e *Engine) compareTitles(m provider.Matcher, records []gallery.Record) []string {
	titles := make([]string, len(records))
	for i, rec := range records {
		titles[i] = m.FormatCompareKey(provider.Query{Title: rec.DisplayTitle()})
	}
	return titles
}

func (e *Engine) result(m provider.Matcher, rec gallery.Record, score float64, count int) *Result {
	return &Result{
		Title:       rec.DisplayTitle(),
		Link:        rec.Link,
		Record:      rec,
		Count:       count,
		Score:       score,
		MatcherType: m.Type(),
		Provider:    m.Provider(),
	}
}

func (e *Engine) observe(m provider.Matcher, outcome string) {
	e.metrics.ObserveMatch(m.Provider(), m.Type(), outcome)
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
