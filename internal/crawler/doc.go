// Package crawler turns submitted gallery URLs into download work.
//
// Dispatcher.Crawl partitions URLs by provider parser, drops galleries the
// catalog already settles (see Discard codes), fetches metadata in batches,
// applies the global discard tags and the wanted filters, then hands the
// survivors to the download pipeline. Folder.Scan covers the local case:
// archives found on disk are matched against providers and catalogued.
package crawler
