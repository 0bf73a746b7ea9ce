// Package reconcile keeps stored archives consistent with the catalog.
//
// Verifier checks archive integrity and recomputes checksum, image size and
// image count; corrupt archives and size mismatches queue a forced
// redownload through the provider's redownload-capable downloader. Tracker
// follows asynchronous transfers until the payload lands in the archive
// directory. Redownloads drains the queued redownload rows.
package reconcile
