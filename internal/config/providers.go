package config

import (
	"strings"
	"time"
)

// ProviderSettings returns the settings block for a provider, or an empty block.
func (c *Config) ProviderSettings(name string) Provider {
	if c == nil || c.Providers == nil {
		return Provider{}
	}
	return c.Providers[strings.ToLower(strings.TrimSpace(name))]
}

// ProviderEnabled reports whether a provider may be crawled. Providers are
// enabled unless explicitly switched off.
func (c *Config) ProviderEnabled(name string) bool {
	settings := c.ProviderSettings(name)
	return settings.Enabled == nil || *settings.Enabled
}

// WaitFor returns the cooldown between calls to a provider's backend.
func (c *Config) WaitFor(name string) time.Duration {
	seconds := c.Crawl.WaitSeconds
	if settings := c.ProviderSettings(name); settings.WaitSeconds != nil {
		seconds = *settings.WaitSeconds
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// BatchSizeFor returns the metadata batch size for a provider. An explicit
// provider setting wins over the provider's built-in limit, which wins over the
// global crawl batch size.
func (c *Config) BatchSizeFor(name string, builtin int) int {
	if settings := c.ProviderSettings(name); settings.BatchSize > 0 {
		return settings.BatchSize
	}
	if builtin > 0 {
		return builtin
	}
	if c.Crawl.BatchSize > 0 {
		return c.Crawl.BatchSize
	}
	return defaultBatchSize
}

// CutoffFor returns the fuzzy cutoff for a provider's matcher type.
func (c *Config) CutoffFor(name, matcherType string, builtin float64) float64 {
	if cutoff, ok := c.ProviderSettings(name).Cutoffs[matcherType]; ok {
		return cutoff
	}
	if builtin > 0 {
		return builtin
	}
	return c.Matching.DefaultCutoff
}

// MatcherPriority returns the configured priority for a provider's matcher type.
func (c *Config) MatcherPriority(name, matcherType string) (int, bool) {
	priority, ok := c.ProviderSettings(name).Matchers[matcherType]
	return priority, ok
}

// DownloaderPriority returns the configured priority for a provider's downloader type.
func (c *Config) DownloaderPriority(name, downloaderType string) (int, bool) {
	priority, ok := c.ProviderSettings(name).Downloaders[downloaderType]
	return priority, ok
}

// Option returns a free-form provider option, trimmed.
func (c *Config) Option(name, key string) string {
	return strings.TrimSpace(c.ProviderSettings(name).Options[key])
}
