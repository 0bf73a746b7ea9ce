// Package direct accepts raw archive URLs. It has no metadata source: a
// record is built from the URL alone and the only downloader stores the
// archive without creating a gallery.
package direct

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"galleryvault/internal/fileutil"
	"galleryvault/internal/gallery"
	"galleryvault/internal/provider"
	"galleryvault/internal/textutil"
)

// Name is the provider identifier.
const Name = "direct"

var archiveExtensions = map[string]bool{".zip": true, ".cbz": true}

// Registration returns the provider descriptor.
func Registration() provider.Registration {
	return provider.Registration{
		Name:      Name,
		NewParser: func(provider.Context) (provider.Parser, error) { return parser{}, nil },
		Downloaders: []provider.DownloaderSpec{
			{Type: "archive", ArchiveOnly: true, DefaultPriority: 1, New: newDownloader},
		},
		Resolve: func(rec gallery.Record) string { return rec.Link },
	}
}

type parser struct{}

func (parser) Provider() string { return Name }

func (parser) BatchSize() int { return 0 }

func (parser) Accepts(raw string) bool {
	_, ok := archiveURL(raw)
	return ok
}

// Key derives a stable id from the URL so the same link is recognised on
// later crawls.
func (parser) Key(raw string) (gallery.Key, bool) {
	u, ok := archiveURL(raw)
	if !ok {
		return gallery.Key{}, false
	}
	return gallery.Key{GID: urlID(u), Provider: Name}, true
}

func (parser) FetchOne(_ context.Context, raw string) (*gallery.Record, error) {
	u, ok := archiveURL(raw)
	if !ok {
		return nil, provider.Wrap(provider.ErrUnsupported, Name, "fetch", raw, nil)
	}
	rec := record(u)
	return &rec, nil
}

func (parser) FetchMany(_ context.Context, urls []string) ([]gallery.Record, error) {
	out := make([]gallery.Record, 0, len(urls))
	for _, raw := range urls {
		if u, ok := archiveURL(raw); ok {
			out = append(out, record(u))
		}
	}
	return out, nil
}

func archiveURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	if !archiveExtensions[strings.ToLower(path.Ext(u.Path))] {
		return nil, false
	}
	return u, true
}

func urlID(u *url.URL) string {
	sum := sha1.Sum([]byte(u.String()))
	return hex.EncodeToString(sum[:8])
}

func record(u *url.URL) gallery.Record {
	base := path.Base(u.Path)
	return gallery.Record{
		GID:      urlID(u),
		Provider: Name,
		Link:     u.String(),
		Title:    strings.TrimSuffix(base, path.Ext(base)),
		Root:     u.Scheme + "://" + u.Host,
		Public:   true,
	}
}

type downloader struct {
	pc  provider.Context
	dir string
}

func newDownloader(pc provider.Context) (provider.Downloader, error) {
	if pc.HTTP == nil {
		return nil, provider.Wrap(provider.ErrConfiguration, Name, "init", "http client missing", nil)
	}
	if pc.Config == nil || pc.Config.Paths.ArchiveDir == "" {
		return nil, provider.Wrap(provider.ErrConfiguration, Name, "init", "archive directory not configured", nil)
	}
	return &downloader{pc: pc, dir: pc.Config.Paths.ArchiveDir}, nil
}

func (d *downloader) Provider() string { return Name }
func (d *downloader) Type() string     { return "archive" }

func (d *downloader) Download(ctx context.Context, rec gallery.Record) (provider.Attempt, error) {
	u, ok := archiveURL(rec.Link)
	if !ok {
		return provider.Attempt{}, nil
	}
	name := textutil.SanitizeFileName(path.Base(u.Path))
	if name == "" {
		name = rec.GID + ".zip"
	}
	dest := fileutil.UniquePath(filepath.Join(d.dir, name))
	if _, err := d.pc.HTTP.Download(ctx, u.String(), dest, d.pc.Settings.Cookies); err != nil {
		return provider.Attempt{}, provider.Wrap(provider.ErrTransient, Name, "download", "", err)
	}
	return provider.FileAttempt(Name, dest)
}
