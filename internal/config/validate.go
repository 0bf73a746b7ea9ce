package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateCrawl(); err != nil {
		return err
	}
	if err := c.validateTransmission(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		return errors.New("paths.archive_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.DefaultCutoff < 0 || c.Matching.DefaultCutoff > 1 {
		return errors.New("matching.default_cutoff must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateCrawl() error {
	if c.Crawl.WaitSeconds < 0 {
		return errors.New("crawl.wait_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateTransmission() error {
	if !c.Transmission.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Transmission.URL) == "" {
		return errors.New("transmission.url must be set when transmission.enabled is true")
	}
	return nil
}

func (c *Config) validateProviders() error {
	for name, settings := range c.Providers {
		if settings.WaitSeconds != nil && *settings.WaitSeconds < 0 {
			return fmt.Errorf("providers.%s.wait_seconds must be >= 0", name)
		}
		if settings.BatchSize < 0 {
			return fmt.Errorf("providers.%s.batch_size must be >= 0", name)
		}
		for matcher, cutoff := range settings.Cutoffs {
			if cutoff < 0 || cutoff > 1 {
				return fmt.Errorf("providers.%s.cutoffs.%s must be between 0 and 1", name, matcher)
			}
		}
	}
	return nil
}
