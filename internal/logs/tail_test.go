package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"galleryvault/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "galleryvault.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "c"}, result.Lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil || len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %#v, %v", result, err)
	}
}

func TestTailFiltersJSONLines(t *testing.T) {
	path := writeLog(t, strings.Join([]string{
		`{"level":"INFO","component":"crawler","job_id":"j1","msg":"one"}`,
		`{"level":"WARN","component":"download","job_id":"j1","msg":"two"}`,
		`{"level":"INFO","component":"crawler","job_id":"j2","msg":"three"}`,
		`plain crawler line`,
	}, "\n")+"\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{
		Offset: -1,
		Limit:  10,
		Filter: logs.Filter{Component: "crawler"},
	})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 3 {
		t.Fatalf("expected 2 json lines and 1 console line, got %#v", result.Lines)
	}

	result, err = logs.Tail(context.Background(), path, logs.TailOptions{
		Offset: 0,
		Filter: logs.Filter{JobID: "j1", Level: "warn"},
	})
	if err != nil {
		t.Fatalf("tail from offset: %v", err)
	}
	if len(result.Lines) != 1 || !strings.Contains(result.Lines[0], `"two"`) {
		t.Fatalf("unexpected filtered lines %#v", result.Lines)
	}
}

func TestTailResetsOffsetAfterTruncation(t *testing.T) {
	path := writeLog(t, "x\n")
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 1000})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if diff := cmp.Diff([]string{"x"}, result.Lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.TailResult, 1)
	go func(offset int64) {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		done <- res
	}(result.Offset)

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, "later\n")

	select {
	case res := <-done:
		if diff := cmp.Diff([]string{"later"}, res.Lines); diff != "" {
			t.Fatalf("follow lines mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestFollowStopsOnCancel(t *testing.T) {
	path := writeLog(t, "first\n")
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var seen []string
	errCh := make(chan error, 1)
	go func() {
		errCh <- logs.Follow(ctx, path, 5, logs.Filter{}, func(line string) {
			mu.Lock()
			seen = append(seen, line)
			mu.Unlock()
		})
	}()

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, "second\n")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Follow: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"first", "second"}, seen); diff != "" {
		t.Fatalf("followed lines mismatch (-want +got):\n%s", diff)
	}
}
