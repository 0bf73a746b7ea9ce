package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"galleryvault/internal/logging"
)

const pollInterval = 250 * time.Millisecond

// Filter selects log lines by structured field. Empty fields match anything.
type Filter struct {
	Component string
	JobID     string
	Provider  string
	Level     string
}

func (f Filter) empty() bool {
	return f.Component == "" && f.JobID == "" && f.Provider == "" && f.Level == ""
}

// Match reports whether line satisfies every non-empty field of f.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return f.matchText(line)
	}
	checks := []struct{ key, want string }{
		{logging.FieldComponent, f.Component},
		{logging.FieldJobID, f.JobID},
		{logging.FieldProvider, f.Provider},
		{"level", f.Level},
	}
	for _, c := range checks {
		if c.want == "" {
			continue
		}
		got, _ := entry[c.key].(string)
		if !strings.EqualFold(got, c.want) {
			return false
		}
	}
	return true
}

func (f Filter) matchText(line string) bool {
	lower := strings.ToLower(line)
	for _, want := range []string{f.Component, f.JobID, f.Provider, f.Level} {
		if want != "" && !strings.Contains(lower, strings.ToLower(want)) {
			return false
		}
	}
	return true
}

// TailOptions controls one Tail call. A negative Offset returns the last
// Limit lines; otherwise lines after Offset are returned.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Filter Filter
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from the log at path. A missing file yields no lines.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}
	opts.Wait = max(opts.Wait, 0)

	var result TailResult
	if opts.Offset < 0 {
		result, err = lastLines(path, opts.Limit, opts.Filter)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Rotated or truncated.
			offset = 0
		}
		result, err = linesAfter(path, offset, opts.Filter)
	}
	if err != nil {
		return result, err
	}
	if opts.Follow && opts.Wait > 0 && len(result.Lines) == 0 {
		return waitForLines(ctx, path, result.Offset, opts.Wait, opts.Filter)
	}
	return result, nil
}

// Follow emits matching lines to onLine until ctx is done, starting with the
// last limit lines.
func Follow(ctx context.Context, path string, limit int, filter Filter, onLine func(string)) error {
	opts := TailOptions{Offset: -1, Limit: limit, Filter: filter}
	for {
		result, err := Tail(ctx, path, opts)
		for _, line := range result.Lines {
			onLine(line)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		opts = TailOptions{Offset: result.Offset, Follow: true, Wait: 5 * time.Second, Filter: filter}
		if len(result.Lines) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pollInterval):
		}
	}
}

func lastLines(path string, limit int, filter Filter) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	}

	ring := make([]string, 0, limit)
	start := 0
	end, err := scanLines(file, func(line string) {
		if !filter.Match(line) {
			return
		}
		if len(ring) < limit {
			ring = append(ring, line)
			return
		}
		ring[start] = line
		start = (start + 1) % limit
	})
	if err != nil {
		return TailResult{}, err
	}
	lines := append(append([]string(nil), ring[start:]...), ring[:start]...)
	return TailResult{Lines: lines, Offset: end}, nil
}

func linesAfter(path string, offset int64, filter Filter) (TailResult, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	end, err := scanLines(file, func(line string) {
		if filter.Match(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: end}, nil
}

// scanLines feeds every line of file from its current position to fn and
// returns the position reached.
func scanLines(file *os.File, fn func(string)) (int64, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	return pos, nil
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, filter Filter) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		next, err := linesAfter(path, result.Offset, filter)
		if err != nil {
			return result, err
		}
		result.Offset = next.Offset
		if len(next.Lines) > 0 {
			result.Lines = next.Lines
			return result, nil
		}
		if time.Now().After(deadline) {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
