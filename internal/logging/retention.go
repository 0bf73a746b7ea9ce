package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// RetentionPolicy selects the run logs PruneLogs may delete.
type RetentionPolicy struct {
	Dir     string
	Pattern string
	// MaxAge disables pruning when zero.
	MaxAge time.Duration
	// KeepNewest matching files are kept regardless of age.
	KeepNewest int
	Exclude    []string
}

type logFile struct {
	path    string
	modTime time.Time
}

// PruneLogs deletes files in policy.Dir older than policy.MaxAge and returns
// how many were removed.
func PruneLogs(logger *slog.Logger, policy RetentionPolicy) int {
	dir := strings.TrimSpace(policy.Dir)
	if policy.MaxAge <= 0 || dir == "" {
		return 0
	}
	files := matchingLogs(dir, policy.Pattern, policy.Exclude)
	slices.SortFunc(files, func(a, b logFile) int { return b.modTime.Compare(a.modTime) })
	if policy.KeepNewest > 0 {
		files = files[min(policy.KeepNewest, len(files)):]
	}

	cutoff := time.Now().Add(-policy.MaxAge)
	removed := 0
	for _, f := range files {
		if !f.modTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			WarnWithContext(logger, "log retention remove failed", "log_retention_failed",
				String("path", f.path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "old log file stays on disk"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Info("old logs pruned",
			Int("removed", removed),
			String("dir", dir),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}

func matchingLogs(dir, pattern string, exclude []string) []logFile {
	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		if abs, err := filepath.Abs(strings.TrimSpace(p)); err == nil {
			skip[abs] = true
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []logFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil || skip[path] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{path: path, modTime: info.ModTime()})
	}
	return files
}
