// Package transport moves bytes between providers and the archive directory.
//
// Client performs synchronous HTTP requests with a fixed retry budget and a
// per-request timeout. Every failed attempt is logged as a warning and
// exhaustion surfaces as ErrNoResponse so callers can degrade to "no match"
// instead of aborting a crawl.
//
// Transfer describes asynchronous backends (torrent clients) that accept a
// job, hand back an identifier and report progress until the payload lands in
// a destination directory. Implementations live in subpackages.
package transport
