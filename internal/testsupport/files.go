package testsupport

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// WriteFile writes size filler bytes to path, creating parent directories.
// Sizes below one write a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	mustMkdirParent(t, path)
	if err := os.WriteFile(path, bytes.Repeat([]byte{'g'}, int(max(size, 1))), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteZip builds a stored (uncompressed) archive at path. members maps entry
// names to their size in bytes; entries are written in name order so two
// calls with the same members produce identical checksums.
func WriteZip(t testing.TB, path string, members map[string]int) {
	t.Helper()
	mustMkdirParent(t, path)
	if err := os.WriteFile(path, ZipBytes(t, members), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ZipBytes returns the archive WriteZip would write, for serving from fake
// HTTP handlers.
func ZipBytes(t testing.TB, members map[string]int) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write(imageBytes(members[name])); err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("finish zip: %v", err)
	}
	return buf.Bytes()
}

func imageBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func mustMkdirParent(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
}
