// Package config loads, normalizes, and validates galleryvault configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GALLERYVAULT_PANDA_PASS_HASH. The Config type centralizes every knob the
// daemon and CLI need: the global discard policy, per-provider matcher and
// downloader priority tables, cutoffs, wait timers and credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
