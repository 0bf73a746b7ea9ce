package direct_test

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"galleryvault/internal/provider"
	"galleryvault/internal/providers/direct"
	"galleryvault/internal/testsupport"
	"galleryvault/internal/transport"
)

func TestParserAcceptsArchiveURLs(t *testing.T) {
	p, err := direct.Registration().NewParser(provider.Context{})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	for _, ok := range []string{"https://files.example/a/Book One.zip", "http://files.example/b.CBZ"} {
		if !p.Accepts(ok) {
			t.Fatalf("expected %q accepted", ok)
		}
	}
	for _, bad := range []string{"ftp://files.example/a.zip", "https://files.example/a.rar", "not a url"} {
		if p.Accepts(bad) {
			t.Fatalf("expected %q rejected", bad)
		}
	}

	first, _ := p.Key("https://files.example/a/book.zip")
	second, _ := p.Key("https://files.example/a/book.zip")
	other, _ := p.Key("https://files.example/b/book.zip")
	if first != second || first == other || first.Provider != direct.Name {
		t.Fatalf("expected stable per-url keys, got %v %v %v", first, second, other)
	}

	rec, err := p.FetchOne(context.Background(), "https://files.example/a/book.zip")
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if rec.Title != "book" || rec.GID != first.GID || rec.Link != "https://files.example/a/book.zip" {
		t.Fatalf("unexpected record %#v", rec)
	}
	if got := direct.Registration().Resolve(*rec); got != rec.Link {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestDownloaderStoresArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/broken.zip" {
			_, _ = w.Write([]byte("archive-body"))
			return
		}
		_, _ = w.Write(testsupport.ZipBytes(t, map[string]int{"01.jpg": 300, "02.png": 200, "readme.txt": 40}))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	reg := direct.Registration()
	desc := reg.Downloaders[0]
	if !desc.ArchiveOnly {
		t.Fatal("expected archive-only downloader")
	}
	d, err := desc.New(provider.Context{
		Name:   direct.Name,
		Config: cfg,
		HTTP:   transport.NewClient(transport.Options{Retries: 1, RetryDelay: -1, Timeout: 5 * time.Second}),
	})
	if err != nil {
		t.Fatalf("new downloader: %v", err)
	}

	p, _ := reg.NewParser(provider.Context{})
	rec, _ := p.FetchOne(context.Background(), srv.URL+"/files/book.zip")
	attempt, err := d.Download(context.Background(), *rec)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	want := filepath.Join(cfg.Paths.ArchiveDir, "book.zip")
	if !attempt.FileDownloaded || attempt.Filename != want || attempt.Checksum == "" {
		t.Fatalf("unexpected attempt %#v", attempt)
	}
	if attempt.Filesize != 500 || attempt.Filecount != 2 {
		t.Fatalf("expected image size 500 over 2 files, got %d over %d", attempt.Filesize, attempt.Filecount)
	}

	again, err := d.Download(context.Background(), *rec)
	if err != nil || again.Filename != filepath.Join(cfg.Paths.ArchiveDir, "book (2).zip") {
		t.Fatalf("expected a unique second file, got %#v (%v)", again, err)
	}

	broken, _ := p.FetchOne(context.Background(), srv.URL+"/files/broken.zip")
	if _, err := d.Download(context.Background(), *broken); !errors.Is(err, provider.ErrCorruptArchive) {
		t.Fatalf("expected corrupt archive error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ArchiveDir, "broken.zip")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected unreadable download removed, stat err %v", err)
	}
}
