package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"galleryvault/internal/config"
	"galleryvault/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon ready")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon ready") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without source")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no source information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with source")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected source in debug logs, got %q", buf.String())
	}
}

func TestConsoleHeaderCarriesComponentAndSubject(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "crawler")
	logger.Info("gallery added",
		logging.String(logging.FieldProvider, "panda"),
		logging.String(logging.FieldGID, "123"),
		logging.Int("filecount", 20),
	)

	out := buf.String()
	if !strings.Contains(out, "INFO [crawler] panda/123: gallery added") {
		t.Fatalf("unexpected header in %q", out)
	}
	if !strings.Contains(out, "    - filecount: 20") {
		t.Fatalf("expected indented field in %q", out)
	}
	if strings.Contains(out, "- gid:") {
		t.Fatalf("expected gid folded into header, got %q", out)
	}
}

func TestComponentOverrideRaisesVerbosity(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{
		Format:          "console",
		Level:           "info",
		Writer:          &buf,
		ComponentLevels: map[string]string{"matcher": "debug"},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "crawler").Debug("crawler detail")
	logging.NewComponentLogger(logger, "matcher").Debug("matcher detail")

	out := buf.String()
	if strings.Contains(out, "crawler detail") {
		t.Fatalf("expected crawler debug suppressed, got %q", out)
	}
	if !strings.Contains(out, "matcher detail") {
		t.Fatalf("expected matcher debug emitted, got %q", out)
	}
}

func TestJSONLoggerShape(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.ContextWithJobID(context.Background(), "job-1")
	logging.WithContext(ctx, logger).Info("queued")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if entry["level"] != "info" || entry["msg"] != "queued" || entry[logging.FieldJobID] != "job-1" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "provider slow", "provider_slow")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry[logging.FieldEventType] != "provider_slow" || entry[logging.FieldErrorHint] == nil || entry[logging.FieldImpact] == nil {
		t.Fatalf("missing injected fields in %#v", entry)
	}
}

func TestPruneLogsKeepsNewestAndExcluded(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, age time.Duration) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		stamp := time.Now().Add(-age)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
		return path
	}
	day := 24 * time.Hour
	current := write("galleryvault-current.log", 40*day)
	newest := write("galleryvault-a.log", 20*day)
	oldest := write("galleryvault-b.log", 30*day)
	recent := write("galleryvault-c.log", day)
	other := write("notes.txt", 90*day)

	removed := logging.PruneLogs(logging.NewNop(), logging.RetentionPolicy{
		Dir:        dir,
		Pattern:    "galleryvault-*.log",
		MaxAge:     7 * day,
		KeepNewest: 2,
		Exclude:    []string{current},
	})
	if removed != 1 {
		t.Fatalf("expected one log removed, got %d", removed)
	}
	if _, err := os.Stat(oldest); !os.IsNotExist(err) {
		t.Fatalf("expected oldest log removed, stat err=%v", err)
	}
	for _, path := range []string{current, newest, recent, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", filepath.Base(path), err)
		}
	}
}

func TestPruneLogsDisabledWithoutMaxAge(t *testing.T) {
	if got := logging.PruneLogs(nil, logging.RetentionPolicy{Dir: t.TempDir()}); got != 0 {
		t.Fatalf("expected no pruning, got %d", got)
	}
}
