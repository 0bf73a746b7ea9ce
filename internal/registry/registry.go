// Package registry holds provider registrations and answers priority-ordered
// strategy lookups.
//
// Registration is idempotent per (provider, kind, type): registering the same
// matcher or downloader type twice keeps the first descriptor. Lookups read
// priorities from the provider's config tables. Entries without a configured
// priority use the descriptor's default, entries with a negative priority are
// disabled, and the rest are returned in ascending order with ties kept in
// registration order.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"galleryvault/internal/config"
	"galleryvault/internal/gallery"
	"galleryvault/internal/logging"
	"galleryvault/internal/provider"
)

// forcedPriority is assigned to every downloader in force mode.
const forcedPriority = 1

// Query narrows a strategy lookup. Provider matches as a substring of the
// provider name; Type must match exactly when set.
type Query struct {
	Provider string
	Type     string
	// Force ignores downloader priority tables, including disabled entries.
	Force bool
}

// MatcherEntry is a matcher instance with its effective priority.
type MatcherEntry struct {
	Provider string
	Type     string
	Priority int
	Matcher  provider.Matcher
}

// DownloaderEntry is a downloader instance with its flags and effective priority.
type DownloaderEntry struct {
	Provider   string
	Type       string
	Priority   int
	Spec       provider.DownloaderSpec
	Downloader provider.Downloader
}

// Generator produces feed URLs for one provider.
type Generator struct {
	Provider string
	Generate func(ctx context.Context) ([]string, error)
}

type entry struct {
	reg         provider.Registration
	matchers    []provider.MatcherSpec
	downloaders []provider.DownloaderSpec
}

// Registry maps provider names to their registrations.
type Registry struct {
	mu        sync.RWMutex
	cfg       *config.Config
	base      provider.Context
	logger    *slog.Logger
	order     []string
	providers map[string]*entry
}

// New creates an empty registry. base supplies the shared services handed to
// every provider factory.
func New(cfg *config.Config, base provider.Context) *Registry {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	base.Config = cfg
	return &Registry{
		cfg:       cfg,
		base:      base,
		logger:    logging.NewComponentLogger(base.Logger, "registry"),
		providers: make(map[string]*entry),
	}
}

// Register adds a provider's capabilities. Re-registering a known
// (provider, kind, type) pair is a no-op; new types are appended.
func (r *Registry) Register(reg provider.Registration) error {
	name := strings.ToLower(strings.TrimSpace(reg.Name))
	if name == "" {
		return errors.New("registry: provider name is required")
	}
	reg.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.providers[name]
	if !ok {
		e = &entry{reg: provider.Registration{Name: name}}
		r.providers[name] = e
		r.order = append(r.order, name)
	}
	if e.reg.NewParser == nil {
		e.reg.NewParser = reg.NewParser
	}
	if e.reg.Resolve == nil {
		e.reg.Resolve = reg.Resolve
	}
	if e.reg.CheckConfig == nil {
		e.reg.CheckConfig = reg.CheckConfig
	}
	if e.reg.Generate == nil {
		e.reg.Generate = reg.Generate
	}
	for _, spec := range reg.Matchers {
		if spec.Type == "" || spec.New == nil {
			return fmt.Errorf("registry: %s matcher needs a type and factory", name)
		}
		if hasMatcher(e.matchers, spec.Type) {
			continue
		}
		e.matchers = append(e.matchers, spec)
	}
	for _, spec := range reg.Downloaders {
		if spec.Type == "" || spec.New == nil {
			return fmt.Errorf("registry: %s downloader needs a type and factory", name)
		}
		if hasDownloader(e.downloaders, spec.Type) {
			continue
		}
		e.downloaders = append(e.downloaders, spec)
	}
	return nil
}

func hasMatcher(specs []provider.MatcherSpec, typ string) bool {
	for _, spec := range specs {
		if spec.Type == typ {
			return true
		}
	}
	return false
}

func hasDownloader(specs []provider.DownloaderSpec, typ string) bool {
	for _, spec := range specs {
		if spec.Type == typ {
			return true
		}
	}
	return false
}

// Providers lists registered provider names in registration order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Context returns the factory context for a provider.
func (r *Registry) Context(name string) provider.Context {
	pc := r.base
	pc.Name = name
	pc.Settings = r.cfg.ProviderSettings(name)
	pc.Logger = logging.NewComponentLogger(r.base.Logger, "provider").With(logging.String(logging.FieldProvider, name))
	return pc
}

// snapshot returns the enabled entries matching a provider substring.
func (r *Registry) snapshot(providerFilter string) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providerFilter = strings.ToLower(strings.TrimSpace(providerFilter))
	out := make([]*entry, 0, len(r.order))
	for _, name := range r.order {
		if providerFilter != "" && !strings.Contains(name, providerFilter) {
			continue
		}
		if !r.cfg.ProviderEnabled(name) {
			continue
		}
		e := r.providers[name]
		out = append(out, &entry{
			reg:         e.reg,
			matchers:    append([]provider.MatcherSpec(nil), e.matchers...),
			downloaders: append([]provider.DownloaderSpec(nil), e.downloaders...),
		})
	}
	return out
}

// Matchers returns matcher instances sorted by ascending priority.
func (r *Registry) Matchers(q Query) []MatcherEntry {
	var out []MatcherEntry
	for _, e := range r.snapshot(q.Provider) {
		name := e.reg.Name
		for _, spec := range e.matchers {
			if q.Type != "" && spec.Type != q.Type {
				continue
			}
			priority, ok := r.cfg.MatcherPriority(name, spec.Type)
			if !ok {
				priority = spec.DefaultPriority
			}
			if priority < 0 {
				continue
			}
			m, err := spec.New(r.Context(name))
			if err != nil {
				r.warnFactory(name, "matcher", spec.Type, err)
				continue
			}
			out = append(out, MatcherEntry{Provider: name, Type: spec.Type, Priority: priority, Matcher: m})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Downloaders returns downloader instances sorted by ascending priority. In
// force mode every matching downloader is returned at the same priority.
func (r *Registry) Downloaders(q Query) []DownloaderEntry {
	var out []DownloaderEntry
	for _, e := range r.snapshot(q.Provider) {
		name := e.reg.Name
		for _, spec := range e.downloaders {
			if q.Type != "" && spec.Type != q.Type {
				continue
			}
			priority := forcedPriority
			if !q.Force {
				configured, ok := r.cfg.DownloaderPriority(name, spec.Type)
				if !ok {
					configured = spec.DefaultPriority
				}
				if configured < 0 {
					continue
				}
				priority = configured
			}
			d, err := spec.New(r.Context(name))
			if err != nil {
				r.warnFactory(name, "downloader", spec.Type, err)
				continue
			}
			out = append(out, DownloaderEntry{Provider: name, Type: spec.Type, Priority: priority, Spec: spec, Downloader: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Redownloader returns the provider's downloader flagged for forced
// single-backend retries, ignoring priority tables.
func (r *Registry) Redownloader(name string) (DownloaderEntry, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, candidate := range r.Downloaders(Query{Provider: name, Force: true}) {
		if candidate.Provider == name && candidate.Spec.Redownload {
			return candidate, true
		}
	}
	return DownloaderEntry{}, false
}

// Parsers returns one parser per enabled provider.
func (r *Registry) Parsers() []provider.Parser {
	var out []provider.Parser
	for _, e := range r.snapshot("") {
		if e.reg.NewParser == nil {
			continue
		}
		p, err := e.reg.NewParser(r.Context(e.reg.Name))
		if err != nil {
			r.warnFactory(e.reg.Name, "parser", "", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

// ParserFor returns the first enabled provider parser accepting url.
func (r *Registry) ParserFor(url string) (provider.Parser, bool) {
	for _, p := range r.Parsers() {
		if p.Accepts(url) {
			return p, true
		}
	}
	return nil, false
}

// ResolveURL returns the canonical URL of a record, falling back to its link.
func (r *Registry) ResolveURL(rec gallery.Record) string {
	r.mu.RLock()
	e, ok := r.providers[strings.ToLower(rec.Provider)]
	r.mu.RUnlock()
	if ok && e.reg.Resolve != nil {
		if resolved := e.reg.Resolve(rec); resolved != "" {
			return resolved
		}
	}
	return rec.Link
}

// CheckConfig validates a provider's settings. Unknown providers and
// providers without a checker pass.
func (r *Registry) CheckConfig(name string) error {
	r.mu.RLock()
	e, ok := r.providers[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok || e.reg.CheckConfig == nil {
		return nil
	}
	if err := e.reg.CheckConfig(r.cfg.ProviderSettings(name)); err != nil {
		return provider.Wrap(provider.ErrConfiguration, name, "check config", "", err)
	}
	return nil
}

// Generators returns the feed generators of enabled providers.
func (r *Registry) Generators() []Generator {
	var out []Generator
	for _, e := range r.snapshot("") {
		if e.reg.Generate == nil {
			continue
		}
		generate := e.reg.Generate
		pc := r.Context(e.reg.Name)
		out = append(out, Generator{
			Provider: e.reg.Name,
			Generate: func(ctx context.Context) ([]string, error) { return generate(ctx, pc) },
		})
	}
	return out
}

func (r *Registry) warnFactory(name, kind, typ string, err error) {
	logging.WarnWithContext(r.logger, "provider factory failed", "provider_factory_failed",
		logging.String(logging.FieldProvider, name),
		logging.String("kind", kind),
		logging.String("type", typ),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the provider section of the config"),
		logging.String(logging.FieldImpact, "strategy skipped"),
	)
}
