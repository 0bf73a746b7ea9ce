// Package daemon coordinates the long-running galleryvault process.
//
// It wires the shared services into a single lifecycle guarded by a flock
// lock: the web queue that serializes crawl submissions, the schedulers that
// poll transfers, drain redownload requests, verify archives and crawl
// provider feeds, and the HTTP API exposing all of them.
//
// Keep orchestration logic here. Crawling, downloading and reconciliation
// live in their own packages; the daemon only starts, stops and reports.
package daemon
