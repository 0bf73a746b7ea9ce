package testsupport

import (
	"context"
	"path"
	"strings"
	"sync"

	"galleryvault/internal/gallery"
	"galleryvault/internal/provider"
)

// StubProvider is an in-memory provider serving fixed records under
// https://<name>.test/g/<gid>. Its only downloader stores metadata.
type StubProvider struct {
	name    string
	mu      sync.Mutex
	records map[string]gallery.Record
	feed    []string
	fetched int
}

// NewStubProvider builds a stub provider holding recs.
func NewStubProvider(name string, recs ...gallery.Record) *StubProvider {
	p := &StubProvider{name: name, records: make(map[string]gallery.Record)}
	for _, rec := range recs {
		p.Add(rec)
	}
	return p
}

// Add stores rec and returns its URL.
func (p *StubProvider) Add(rec gallery.Record) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec.Provider = p.name
	rec.Link = p.URL(rec.GID)
	p.records[rec.Link] = rec
	return rec.Link
}

// URL returns the gallery URL of gid.
func (p *StubProvider) URL(gid string) string {
	return "https://" + p.name + ".test/g/" + gid
}

// SetFeed makes the provider generate urls for feed crawls.
func (p *StubProvider) SetFeed(urls ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feed = append([]string(nil), urls...)
}

// Fetched reports how many records were served.
func (p *StubProvider) Fetched() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetched
}

// Registration describes the stub to a registry.
func (p *StubProvider) Registration() provider.Registration {
	return provider.Registration{
		Name:      p.name,
		NewParser: func(provider.Context) (provider.Parser, error) { return stubParser{p}, nil },
		Downloaders: []provider.DownloaderSpec{{
			Type:            "info",
			InfoOnly:        true,
			DefaultPriority: 1,
			New: func(provider.Context) (provider.Downloader, error) {
				return stubDownloader{name: p.name}, nil
			},
		}},
		Resolve: func(rec gallery.Record) string { return p.URL(rec.GID) },
		Generate: func(context.Context, provider.Context) ([]string, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			return append([]string(nil), p.feed...), nil
		},
	}
}

type stubParser struct{ p *StubProvider }

func (s stubParser) Provider() string { return s.p.name }
func (s stubParser) BatchSize() int   { return 0 }
func (s stubParser) Accepts(url string) bool {
	return strings.HasPrefix(url, "https://"+s.p.name+".test/g/")
}
func (s stubParser) Key(url string) (gallery.Key, bool) {
	if !s.Accepts(url) {
		return gallery.Key{}, false
	}
	return gallery.Key{GID: path.Base(url), Provider: s.p.name}, true
}

func (s stubParser) FetchOne(ctx context.Context, url string) (*gallery.Record, error) {
	records, err := s.FetchMany(ctx, []string{url})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, provider.ErrNotFound
	}
	return &records[0], nil
}

func (s stubParser) FetchMany(_ context.Context, urls []string) ([]gallery.Record, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	var out []gallery.Record
	for _, url := range urls {
		if rec, ok := s.p.records[url]; ok {
			out = append(out, rec)
			s.p.fetched++
		}
	}
	return out, nil
}

type stubDownloader struct{ name string }

func (d stubDownloader) Provider() string { return d.name }
func (d stubDownloader) Type() string     { return "info" }
func (d stubDownloader) Download(context.Context, gallery.Record) (provider.Attempt, error) {
	return provider.Attempt{Succeeded: true}, nil
}
