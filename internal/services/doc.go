// Package services assembles the galleryvault runtime from configuration.
//
// New opens the catalog, builds the shared HTTP client and the configured
// asynchronous transports, registers the built-in providers and wires the
// matcher, download pipeline, crawler and reconciliation components around
// them. The CLI builds one Services per command invocation; the daemon owns a
// single long-lived instance.
package services
