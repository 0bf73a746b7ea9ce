// Package provider defines the contracts every content source implements and
// the error markers shared by the engine.
//
// Key responsibilities:
//   - Parser, Matcher and Downloader interfaces that the registry dispatches
//     to by provider name and strategy type.
//   - Registration descriptors carrying factories plus static flags
//     (archive-only, info-only, redownload capable, default priority).
//   - Attempt and Ticket values describing what a downloader produced, so
//     the pipeline alone decides what reaches the catalog.
//   - Error markers plus the Wrap helper that keep provider failures
//     classifiable after wrapping.
//
// Providers are built from a Context holding the shared HTTP client, the
// transfer transports and the provider's own settings.
package provider
