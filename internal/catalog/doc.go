// Package catalog persists galleries, archives, wanted filters, asynchronous
// transfers and pending redownloads in SQLite.
//
// Every write is an atomic create-or-update keyed by identity: (gid, provider)
// for galleries, the file path for archives, the pending gallery id for
// redownloads. Concurrent crawlers touching different rows never conflict and
// no caller needs an in-process lock around a catalog call. Busy errors from
// concurrent writers are retried with a short backoff.
//
// Schema changes are appended to the migrations list in schema.go and applied
// in order when a catalog is opened.
package catalog
