package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"galleryvault/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, "galleries"); cfg.Paths.ArchiveDir != want {
		t.Fatalf("unexpected archive dir: got %q want %q", cfg.Paths.ArchiveDir, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "galleryvault", "catalog.db"); cfg.CatalogPath() != want {
		t.Fatalf("unexpected catalog path: got %q want %q", cfg.CatalogPath(), want)
	}
	if cfg.Crawl.BatchSize != 900 {
		t.Fatalf("expected default batch size 900, got %d", cfg.Crawl.BatchSize)
	}
	if cfg.Workflow.HTTPRetries != 3 {
		t.Fatalf("expected default retry budget 3, got %d", cfg.Workflow.HTTPRetries)
	}
	if cfg.Workflow.PoolSize != 4 {
		t.Fatalf("expected default pool size 4, got %d", cfg.Workflow.PoolSize)
	}
	if cfg.Transmission.DownloadDir != cfg.Paths.TorrentDir {
		t.Fatalf("expected transmission download dir to default to torrent dir, got %q", cfg.Transmission.DownloadDir)
	}
}

func TestLoadCustomConfigNormalizesProviders(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("GALLERYVAULT_PANDA_PASS_HASH", "from-env")

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
archive_dir = "~/archive"

[crawl]
discard_tags = [" Language:Korean ", "language:korean", ""]
wait_seconds = 1.5

[providers.Panda]
wait_seconds = 3.0
batch_size = 25

[providers.Panda.matchers]
title = 1
hash = -1

[providers.Panda.cutoffs]
title = 0.6

[providers.Panda.cookies]
member_id = "42"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.ArchiveDir != filepath.Join(tempHome, "archive") {
		t.Fatalf("unexpected archive dir: %q", cfg.Paths.ArchiveDir)
	}
	if len(cfg.Crawl.DiscardTags) != 1 || cfg.Crawl.DiscardTags[0] != "language:korean" {
		t.Fatalf("unexpected discard tags: %#v", cfg.Crawl.DiscardTags)
	}
	panda := cfg.ProviderSettings("panda")
	if panda.Cookies["member_id"] != "42" || panda.Cookies["pass_hash"] != "from-env" {
		t.Fatalf("unexpected cookies: %#v", panda.Cookies)
	}
	if got := cfg.WaitFor("panda"); got != 3*time.Second {
		t.Fatalf("expected provider wait 3s, got %v", got)
	}
	if got := cfg.WaitFor("direct"); got != 1500*time.Millisecond {
		t.Fatalf("expected global wait 1.5s, got %v", got)
	}
	if got := cfg.BatchSizeFor("panda", 50); got != 25 {
		t.Fatalf("expected configured batch size 25, got %d", got)
	}
	if got := cfg.BatchSizeFor("direct", 0); got != 900 {
		t.Fatalf("expected global batch size 900, got %d", got)
	}
	if got := cfg.CutoffFor("panda", "title", 0.4); got != 0.6 {
		t.Fatalf("expected cutoff override 0.6, got %v", got)
	}
	if got := cfg.CutoffFor("panda", "hash", 0); got != cfg.Matching.DefaultCutoff {
		t.Fatalf("expected default cutoff, got %v", got)
	}
	if priority, ok := cfg.MatcherPriority("panda", "hash"); !ok || priority != -1 {
		t.Fatalf("expected disabled hash matcher, got %d %v", priority, ok)
	}
	if _, ok := cfg.DownloaderPriority("panda", "archive"); ok {
		t.Fatal("expected no downloader priority entry")
	}
}

func TestValidateRejectsBadCutoff(t *testing.T) {
	cfg := config.Default()
	cfg.Providers["panda"] = config.Provider{Cutoffs: map[string]float64{"title": 1.2}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "providers.panda.cutoffs.title") {
		t.Fatalf("expected cutoff validation error, got %v", err)
	}
}

func TestValidateRequiresTransmissionURL(t *testing.T) {
	cfg := config.Default()
	cfg.Transmission.Enabled = true
	cfg.Transmission.URL = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected transmission validation error")
	}
}

func TestSampleConfigParses(t *testing.T) {
	var cfg config.Config
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config should parse: %v", err)
	}
	if priority := cfg.Providers["panda"].Downloaders["torrent"]; priority != 2 {
		t.Fatalf("expected torrent priority 2 in sample, got %d", priority)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[providers.panda.downloaders]") {
		t.Fatalf("sample missing provider section")
	}
}
