package preflight

import (
	"context"

	"galleryvault/internal/config"
	"galleryvault/internal/transport"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// transfers lists the asynchronous transports that are configured.
func RunAll(ctx context.Context, cfg *config.Config, transfers ...transport.Transfer) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Paths.TorrentDir != "" {
		results = append(results, CheckDirectoryAccess("Torrent directory", cfg.Paths.TorrentDir))
	}
	if cfg.Paths.MinFreeGiB > 0 {
		results = append(results, CheckFreeSpace("Archive free space", cfg.Paths.ArchiveDir, cfg.Paths.MinFreeGiB))
	}
	for _, t := range transfers {
		if t == nil {
			continue
		}
		results = append(results, CheckTransport(ctx, t))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
