// Package download runs records through their provider's prioritized
// downloader chain and commits the first success to the catalog.
//
// Downloaders only report what they produced; every catalog write happens
// here, after the chain settles. A failed attempt therefore leaves no trace
// beyond a log line, and an exhausted chain records the gallery with
// dl_type "failed" so later crawls can apply the retry policy.
package download
