package testsupport

import (
	"path/filepath"
	"testing"

	"galleryvault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Waits and the free-space floor are zeroed so tests never sleep or depend on
// the host disk.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archives")
	cfgVal.Paths.TorrentDir = filepath.Join(base, "torrents")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Paths.MinFreeGiB = 0
	cfgVal.Crawl.WaitSeconds = 0
	cfgVal.Transmission.DownloadDir = cfgVal.Paths.TorrentDir

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDiscardTags sets the global discard tag list.
func WithDiscardTags(tags ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Crawl.DiscardTags = tags
	}
}

// WithProvider installs a provider settings block.
func WithProvider(name string, settings config.Provider) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers[name] = settings
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
