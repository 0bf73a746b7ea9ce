// Package logging assembles structured slog loggers and formatting helpers used
// across galleryvault.
//
// It owns the configurable console/JSON handlers, per-component level
// overrides, and context-aware helpers so crawl jobs can automatically tag log
// lines with job ids and provider names. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
//
// Both handlers mask attributes whose keys look like credentials (provider
// cookies, API tokens, Transmission passwords), and URL strips query strings
// from gallery links before they are logged.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
