package registry_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"galleryvault/internal/config"
	"galleryvault/internal/gallery"
	"galleryvault/internal/provider"
	"galleryvault/internal/registry"
)

type stubMatcher struct{ name, typ string }

func (m stubMatcher) Provider() string                         { return m.name }
func (m stubMatcher) Type() string                             { return m.typ }
func (m stubMatcher) Exact() bool                              { return false }
func (m stubMatcher) DefaultCutoff() float64                   { return 0.4 }
func (m stubMatcher) Wait() time.Duration                      { return 0 }
func (m stubMatcher) FormatCompareKey(q provider.Query) string { return q.Text() }
func (m stubMatcher) FormatSearchKey(q provider.Query) (string, error) {
	return q.Text(), nil
}
func (m stubMatcher) Search(context.Context, string) ([]string, error) { return nil, nil }
func (m stubMatcher) Fetch(context.Context, []string) ([]gallery.Record, error) {
	return nil, nil
}

type stubDownloader struct{ name, typ string }

func (d stubDownloader) Provider() string { return d.name }
func (d stubDownloader) Type() string     { return d.typ }
func (d stubDownloader) Download(context.Context, gallery.Record) (provider.Attempt, error) {
	return provider.Attempt{}, nil
}

func matcherSpec(name, typ string, priority int) provider.MatcherSpec {
	return provider.MatcherSpec{
		Type:            typ,
		DefaultPriority: priority,
		New: func(pc provider.Context) (provider.Matcher, error) {
			return stubMatcher{name: pc.Name, typ: typ}, nil
		},
	}
}

func downloaderSpec(typ string, priority int, redownload bool) provider.DownloaderSpec {
	return provider.DownloaderSpec{
		Type:            typ,
		DefaultPriority: priority,
		Redownload:      redownload,
		New: func(pc provider.Context) (provider.Downloader, error) {
			return stubDownloader{name: pc.Name, typ: typ}, nil
		},
	}
}

func sampleRegistration() provider.Registration {
	return provider.Registration{
		Name: "panda",
		Matchers: []provider.MatcherSpec{
			matcherSpec("panda", "title", 2),
			matcherSpec("panda", "hash", 1),
		},
		Downloaders: []provider.DownloaderSpec{
			downloaderSpec("archive", 1, true),
			downloaderSpec("torrent", 2, false),
			downloaderSpec("info", 3, false),
		},
	}
}

func types[E any](entries []E, typ func(E) string) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, typ(e))
	}
	return strings.Join(parts, ",")
}

func matcherTypes(entries []registry.MatcherEntry) string {
	return types(entries, func(e registry.MatcherEntry) string { return e.Provider + "/" + e.Type })
}

func downloaderTypes(entries []registry.DownloaderEntry) string {
	return types(entries, func(e registry.DownloaderEntry) string { return e.Provider + "/" + e.Type })
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := registry.New(nil, provider.Context{})
	if err := reg.Register(sampleRegistration()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	firstMatchers := matcherTypes(reg.Matchers(registry.Query{}))
	firstDownloaders := downloaderTypes(reg.Downloaders(registry.Query{}))

	if err := reg.Register(sampleRegistration()); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if got := matcherTypes(reg.Matchers(registry.Query{})); got != firstMatchers {
		t.Fatalf("matchers changed after re-registration: %q vs %q", got, firstMatchers)
	}
	if got := downloaderTypes(reg.Downloaders(registry.Query{})); got != firstDownloaders {
		t.Fatalf("downloaders changed after re-registration: %q vs %q", got, firstDownloaders)
	}
	if len(reg.Providers()) != 1 {
		t.Fatalf("expected a single provider, got %v", reg.Providers())
	}
}

func TestLookupsSortByPriorityAndSkipDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Providers["panda"] = config.Provider{
		Matchers:    map[string]int{"title": 0},
		Downloaders: map[string]int{"archive": 5, "torrent": -1},
	}
	reg := registry.New(&cfg, provider.Context{})
	if err := reg.Register(sampleRegistration()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	other := provider.Registration{
		Name:        "direct",
		Downloaders: []provider.DownloaderSpec{downloaderSpec("archive", 3, false)},
	}
	if err := reg.Register(other); err != nil {
		t.Fatalf("Register direct: %v", err)
	}

	if got := matcherTypes(reg.Matchers(registry.Query{})); got != "panda/title,panda/hash" {
		t.Fatalf("unexpected matcher order %q", got)
	}
	downloaders := reg.Downloaders(registry.Query{})
	if got := downloaderTypes(downloaders); got != "panda/info,direct/archive,panda/archive" {
		t.Fatalf("unexpected downloader order %q", got)
	}
	for i := 1; i < len(downloaders); i++ {
		if downloaders[i-1].Priority > downloaders[i].Priority {
			t.Fatalf("downloaders not ascending: %#v", downloaders)
		}
	}
	for _, d := range downloaders {
		if d.Priority < 0 {
			t.Fatalf("disabled downloader returned: %#v", d)
		}
	}

	forced := reg.Downloaders(registry.Query{Provider: "pan", Force: true})
	if got := downloaderTypes(forced); got != "panda/archive,panda/torrent,panda/info" {
		t.Fatalf("force mode should return every panda downloader in registration order, got %q", got)
	}
	for _, d := range forced {
		if d.Priority != 1 {
			t.Fatalf("force mode priority should be 1, got %d", d.Priority)
		}
	}

	if got := downloaderTypes(reg.Downloaders(registry.Query{Type: "archive"})); got != "direct/archive,panda/archive" {
		t.Fatalf("unexpected type-filtered order %q", got)
	}
}

func TestRedownloaderAndDisabledProviders(t *testing.T) {
	cfg := config.Default()
	disabled := false
	cfg.Providers["direct"] = config.Provider{Enabled: &disabled}
	reg := registry.New(&cfg, provider.Context{})
	_ = reg.Register(sampleRegistration())
	_ = reg.Register(provider.Registration{
		Name:        "direct",
		Downloaders: []provider.DownloaderSpec{downloaderSpec("archive", 1, true)},
	})

	entry, ok := reg.Redownloader("panda")
	if !ok || entry.Type != "archive" {
		t.Fatalf("expected panda archive redownloader, got %#v %v", entry, ok)
	}
	if _, ok := reg.Redownloader("direct"); ok {
		t.Fatal("disabled provider should not offer a redownloader")
	}
}

func TestRegisterRejectsIncompleteDescriptors(t *testing.T) {
	reg := registry.New(nil, provider.Context{})
	if err := reg.Register(provider.Registration{}); err == nil {
		t.Fatal("expected error for missing provider name")
	}
	bad := provider.Registration{Name: "x", Matchers: []provider.MatcherSpec{{Type: "title"}}}
	if err := reg.Register(bad); err == nil {
		t.Fatal("expected error for missing factory")
	}
}

type fakeParser struct{ prefix string }

func (p fakeParser) Provider() string               { return "panda" }
func (p fakeParser) Accepts(url string) bool        { return strings.HasPrefix(url, p.prefix) }
func (p fakeParser) Key(string) (gallery.Key, bool) { return gallery.Key{}, false }
func (p fakeParser) BatchSize() int                 { return 25 }
func (p fakeParser) FetchOne(context.Context, string) (*gallery.Record, error) {
	return nil, nil
}
func (p fakeParser) FetchMany(context.Context, []string) ([]gallery.Record, error) {
	return nil, nil
}

func TestParserResolveAndConfigChecks(t *testing.T) {
	reg := registry.New(nil, provider.Context{})
	registration := sampleRegistration()
	registration.NewParser = func(provider.Context) (provider.Parser, error) {
		return fakeParser{prefix: "https://panda.example/"}, nil
	}
	registration.Resolve = func(rec gallery.Record) string {
		return "https://panda.example/g/" + rec.GID + "/" + rec.Token + "/"
	}
	registration.CheckConfig = func(settings config.Provider) error {
		if settings.Cookies["pass_hash"] == "" {
			return errors.New("pass_hash cookie missing")
		}
		return nil
	}
	if err := reg.Register(registration); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, ok := reg.ParserFor("https://panda.example/g/1/abc/"); !ok {
		t.Fatal("expected parser for panda url")
	}
	if _, ok := reg.ParserFor("https://elsewhere.example/"); ok {
		t.Fatal("unexpected parser for foreign url")
	}
	rec := gallery.Record{GID: "1", Token: "abcdef0123", Provider: "panda", Link: "fallback"}
	if got := reg.ResolveURL(rec); got != "https://panda.example/g/1/abcdef0123/" {
		t.Fatalf("unexpected resolved url %q", got)
	}
	rec.Provider = "unknown"
	if got := reg.ResolveURL(rec); got != "fallback" {
		t.Fatalf("expected link fallback, got %q", got)
	}
	if err := reg.CheckConfig("panda"); !errors.Is(err, provider.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
