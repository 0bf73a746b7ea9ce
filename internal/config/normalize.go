package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCrawl()
	c.normalizeMatching()
	c.normalizeWorkflow()
	c.normalizeTransmission()
	c.normalizeProviders()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("GALLERYVAULT_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if c.Paths.TorrentDir, err = expandPath(c.Paths.TorrentDir); err != nil {
		return fmt.Errorf("paths.torrent_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("GALLERYVAULT_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Paths.MinFreeGiB < 0 {
		c.Paths.MinFreeGiB = 0
	}
	return nil
}

func (c *Config) normalizeCrawl() {
	tags := make([]string, 0, len(c.Crawl.DiscardTags))
	seen := make(map[string]struct{}, len(c.Crawl.DiscardTags))
	for _, tag := range c.Crawl.DiscardTags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		tags = append(tags, normalized)
	}
	c.Crawl.DiscardTags = tags
	if c.Crawl.BatchSize <= 0 {
		c.Crawl.BatchSize = defaultBatchSize
	}
}

func (c *Config) normalizeMatching() {
	if c.Matching.MaxMatches <= 0 {
		c.Matching.MaxMatches = defaultMaxMatches
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.TransferPollSeconds <= 0 {
		c.Workflow.TransferPollSeconds = defaultTransferPollSeconds
	}
	if c.Workflow.RedownloadPollSeconds <= 0 {
		c.Workflow.RedownloadPollSeconds = defaultRedownloadPollSeconds
	}
	if c.Workflow.PoolSize <= 0 {
		c.Workflow.PoolSize = defaultPoolSize
	}
	if c.Workflow.HTTPRetries <= 0 {
		c.Workflow.HTTPRetries = defaultHTTPRetries
	}
	if c.Workflow.HTTPTimeoutSeconds <= 0 {
		c.Workflow.HTTPTimeoutSeconds = defaultHTTPTimeoutSeconds
	}
	c.Workflow.UserAgent = strings.TrimSpace(c.Workflow.UserAgent)
	if c.Workflow.UserAgent == "" {
		c.Workflow.UserAgent = defaultUserAgent
	}
	c.Workflow.VerifyCron = strings.TrimSpace(c.Workflow.VerifyCron)
	c.Workflow.FeedCron = strings.TrimSpace(c.Workflow.FeedCron)
}

func (c *Config) normalizeTransmission() {
	c.Transmission.URL = strings.TrimSpace(c.Transmission.URL)
	if c.Transmission.URL == "" {
		c.Transmission.URL = defaultTransmissionURL
	}
	if c.Transmission.Password == "" {
		if value, ok := os.LookupEnv("GALLERYVAULT_TRANSMISSION_PASSWORD"); ok {
			c.Transmission.Password = strings.TrimSpace(value)
		}
	}
	c.Transmission.DownloadDir = strings.TrimSpace(c.Transmission.DownloadDir)
	if c.Transmission.DownloadDir == "" {
		c.Transmission.DownloadDir = c.Paths.TorrentDir
	}
}

func (c *Config) normalizeProviders() {
	if c.Providers == nil {
		c.Providers = map[string]Provider{}
	}
	normalized := make(map[string]Provider, len(c.Providers))
	for name, settings := range c.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if settings.Cookies == nil {
			settings.Cookies = map[string]string{}
		}
		envPrefix := "GALLERYVAULT_" + strings.ToUpper(key) + "_"
		for _, cookie := range []string{"member_id", "pass_hash"} {
			if strings.TrimSpace(settings.Cookies[cookie]) != "" {
				continue
			}
			if value, ok := os.LookupEnv(envPrefix + strings.ToUpper(cookie)); ok {
				settings.Cookies[cookie] = strings.TrimSpace(value)
			}
		}
		normalized[key] = settings
	}
	c.Providers = normalized
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.ComponentOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.ComponentOverrides))
		for component, level := range c.Logging.ComponentOverrides {
			component = strings.TrimSpace(component)
			if component == "" {
				continue
			}
			overrides[component] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentOverrides = overrides
	}
}
