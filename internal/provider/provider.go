package provider

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"galleryvault/internal/config"
	"galleryvault/internal/gallery"
	"galleryvault/internal/transport"
)

// Query is the input of a match attempt: a remote title or a local file.
type Query struct {
	Title string
	Path  string
}

// Text returns the title, or the file name without extension for file queries.
func (q Query) Text() string {
	if title := strings.TrimSpace(q.Title); title != "" {
		return title
	}
	if q.Path == "" {
		return ""
	}
	base := filepath.Base(q.Path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Parser turns provider URLs into gallery records.
type Parser interface {
	Provider() string
	Accepts(url string) bool
	// Key extracts the gallery identity from a URL without network access.
	Key(url string) (gallery.Key, bool)
	FetchOne(ctx context.Context, url string) (*gallery.Record, error)
	FetchMany(ctx context.Context, urls []string) ([]gallery.Record, error)
	// BatchSize is the backend's own limit per metadata call; 0 means none.
	BatchSize() int
}

// Matcher is one lookup strategy of a provider.
type Matcher interface {
	Provider() string
	Type() string
	// Exact strategies (hash, size) accept every candidate with score 1.
	Exact() bool
	DefaultCutoff() float64
	// Wait is the cooldown required between Search and Fetch.
	Wait() time.Duration
	FormatSearchKey(q Query) (string, error)
	FormatCompareKey(q Query) string
	Search(ctx context.Context, key string) ([]string, error)
	Fetch(ctx context.Context, links []string) ([]gallery.Record, error)
}

// Downloader is one acquisition strategy of a provider. Implementations never
// touch the catalog; they report what they produced through Attempt.
type Downloader interface {
	Provider() string
	Type() string
	Download(ctx context.Context, rec gallery.Record) (Attempt, error)
}

// Attempt is the outcome of one downloader run.
type Attempt struct {
	Succeeded      bool
	FileDownloaded bool
	// Filename is the produced file, or the expected destination when Ticket is set.
	Filename  string
	Checksum  string
	Filesize  int64
	Filecount int
	Ticket    *Ticket
}

// Ticket tracks a download handed to an asynchronous transport.
type Ticket struct {
	Method       string
	TransferID   string
	Destination  string
	ExpectedSize int64
}

// Context carries the shared services a provider factory may use.
type Context struct {
	Name      string
	Config    *config.Config
	Settings  config.Provider
	HTTP      *transport.Client
	Transfers map[string]transport.Transfer
	Logger    *slog.Logger
}

// Transfer returns the named asynchronous transport.
func (c Context) Transfer(name string) (transport.Transfer, bool) {
	t, ok := c.Transfers[name]
	return t, ok && t != nil
}

// Wait returns the configured backend cooldown for this provider.
func (c Context) Wait() time.Duration {
	if c.Config == nil {
		return 0
	}
	return c.Config.WaitFor(c.Name)
}

// MatcherSpec registers a matcher type.
type MatcherSpec struct {
	Type            string
	DefaultPriority int
	New             func(Context) (Matcher, error)
}

// DownloaderSpec registers a downloader type with its static behaviour flags.
type DownloaderSpec struct {
	Type string
	// ArchiveOnly downloaders produce an archive row but no gallery row.
	ArchiveOnly bool
	// SkipIfHidden downloaders are not attempted for hidden galleries.
	SkipIfHidden bool
	// InfoOnly downloaders fetch metadata only; no wait follows them.
	InfoOnly bool
	// Redownload marks the downloader used for forced single-backend retries.
	Redownload      bool
	DefaultPriority int
	New             func(Context) (Downloader, error)
}

// Registration describes everything a provider contributes.
type Registration struct {
	Name        string
	NewParser   func(Context) (Parser, error)
	Matchers    []MatcherSpec
	Downloaders []DownloaderSpec
	// Resolve returns the canonical URL of a record.
	Resolve func(rec gallery.Record) string
	// CheckConfig validates provider settings before a crawl.
	CheckConfig func(settings config.Provider) error
	// Generate lists gallery URLs for periodic feed crawls.
	Generate func(ctx context.Context, pc Context) ([]string, error)
}
