package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ArchiveDir string  `toml:"archive_dir"`
	TorrentDir string  `toml:"torrent_dir"`
	StateDir   string  `toml:"state_dir"`
	LogDir     string  `toml:"log_dir"`
	APIBind    string  `toml:"api_bind"`
	APIToken   string  `toml:"api_token"`
	MinFreeGiB float64 `toml:"min_free_gib"`
}

// Crawl contains the global discard and retry policy applied to every provider.
type Crawl struct {
	DiscardTags       []string `toml:"discard_tags"`
	ReplaceMetadata   bool     `toml:"replace_metadata"`
	Redownload        bool     `toml:"redownload"`
	RetryFailed       bool     `toml:"retry_failed"`
	WaitSeconds       float64  `toml:"wait_seconds"`
	BatchSize         int      `toml:"batch_size"`
	ParallelProviders bool     `toml:"parallel_providers"`
}

// Matching contains fuzzy matching defaults.
type Matching struct {
	DefaultCutoff float64 `toml:"default_cutoff"`
	MaxMatches    int     `toml:"max_matches"`
}

// Workflow contains daemon timing, pool sizing and HTTP retry settings.
type Workflow struct {
	TransferPollSeconds   int    `toml:"transfer_poll_seconds"`
	RedownloadPollSeconds int    `toml:"redownload_poll_seconds"`
	VerifyCron            string `toml:"verify_cron"`
	FeedCron              string `toml:"feed_cron"`
	PoolSize              int    `toml:"pool_size"`
	HTTPRetries           int    `toml:"http_retries"`
	HTTPTimeoutSeconds    int    `toml:"http_timeout_seconds"`
	UserAgent             string `toml:"user_agent"`
}

// Transmission contains connection settings for the torrent transport.
type Transmission struct {
	Enabled     bool   `toml:"enabled"`
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	DownloadDir string `toml:"download_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
	RetentionDays      int               `toml:"retention_days"`
}

// Metrics contains Prometheus exposition settings.
type Metrics struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Notifications contains ntfy delivery settings.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Provider contains per-provider tuning. Zero values fall back to the global
// crawl settings or the provider's built-in defaults.
type Provider struct {
	Enabled     *bool              `toml:"enabled"`
	WaitSeconds *float64           `toml:"wait_seconds"`
	BatchSize   int                `toml:"batch_size"`
	Cutoffs     map[string]float64 `toml:"cutoffs"`
	Matchers    map[string]int     `toml:"matchers"`
	Downloaders map[string]int     `toml:"downloaders"`
	Cookies     map[string]string  `toml:"cookies"`
	Options     map[string]string  `toml:"options"`
}

// Config encapsulates all configuration values for galleryvault.
//
// Configuration sections by subsystem:
//   - Paths: archive, torrent, state and log directories plus the API bind
//   - Crawl: discard tags, redownload and retry policy, batch sizing
//   - Matching: fuzzy cutoff and result cap defaults
//   - Workflow: scheduler intervals, pool size and HTTP retries
//   - Transmission: torrent transport connection
//   - Logging: log format and level
//   - Metrics: Prometheus exposition
//   - Notifications: ntfy topic for daemon outcomes
//   - Providers: per-provider priorities, cutoffs, waits and credentials
type Config struct {
	Paths         Paths               `toml:"paths"`
	Crawl         Crawl               `toml:"crawl"`
	Matching      Matching            `toml:"matching"`
	Workflow      Workflow            `toml:"workflow"`
	Transmission  Transmission        `toml:"transmission"`
	Logging       Logging             `toml:"logging"`
	Metrics       Metrics             `toml:"metrics"`
	Notifications Notifications       `toml:"notifications"`
	Providers     map[string]Provider `toml:"providers"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/galleryvault/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("galleryvault.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ArchiveDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.TorrentDir) != "" {
		if err := os.MkdirAll(c.Paths.TorrentDir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", c.Paths.TorrentDir, err)
		}
	}
	return nil
}

// CatalogPath returns the SQLite catalog location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.StateDir, "catalog.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "galleryvault.lock")
}

// HTTPTimeout returns the per-request timeout for provider HTTP calls.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Workflow.HTTPTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
