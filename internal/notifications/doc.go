// Package notifications pushes daemon outcomes to an ntfy topic.
//
// The daemon publishes crawl results, finished transfers, verification
// problems and scheduler errors. Without a configured topic NewService returns
// a no-op, so callers never check whether notifications are enabled.
package notifications
