package reconcile_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"galleryvault/internal/catalog"
	"galleryvault/internal/download"
	"galleryvault/internal/gallery"
	"galleryvault/internal/provider"
	"galleryvault/internal/reconcile"
	"galleryvault/internal/registry"
	"galleryvault/internal/testsupport"
)

// galleryMembers holds 2000 bytes of images plus a text file, so the zip on
// disk is larger than the image payload providers report.
var galleryMembers = map[string]int{
	"001.jpg":  1000,
	"002.jpg":  1000,
	"info.txt": 230,
}

// zipDownloader writes a fresh archive per call, using write for the bytes.
type zipDownloader struct {
	dir   string
	write func(t testing.TB, path string)
	t     testing.TB
	calls *int
}

func (d zipDownloader) Provider() string { return "panda" }
func (d zipDownloader) Type() string     { return "archive" }

func (d zipDownloader) Download(_ context.Context, rec gallery.Record) (provider.Attempt, error) {
	*d.calls++
	path := filepath.Join(d.dir, fmt.Sprintf("%s-%d.zip", rec.GID, *d.calls))
	d.write(d.t, path)
	return provider.FileAttempt("panda", path)
}

func writeGallery(t testing.TB, path string) {
	testsupport.WriteZip(t, path, galleryMembers)
}

func writeJunk(t testing.TB, path string) {
	testsupport.WriteFile(t, path, 512)
}

type repairHarness struct {
	store       *catalog.Store
	pipeline    *download.Pipeline
	verifier    *reconcile.Verifier
	redownloads *reconcile.Redownloads
	dir         string
	calls       int
}

func newRepairHarness(t *testing.T, write func(testing.TB, string)) *repairHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	h := &repairHarness{store: store, dir: cfg.Paths.ArchiveDir}

	reg := registry.New(cfg, provider.Context{})
	err := reg.Register(provider.Registration{Name: "panda", Downloaders: []provider.DownloaderSpec{{
		Type:       "archive",
		Redownload: true,
		New: func(provider.Context) (provider.Downloader, error) {
			return zipDownloader{dir: h.dir, write: write, t: t, calls: &h.calls}, nil
		},
	}}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	h.pipeline = download.New(cfg, store, reg, nil, nil)
	h.verifier = reconcile.NewVerifier(cfg, store, reg, nil, nil)
	h.pipeline.SetVerifier(func(ctx context.Context, archiveID int64) error {
		_, err := h.verifier.VerifyArchive(ctx, archiveID)
		return err
	})
	h.redownloads = reconcile.NewRedownloads(store, h.pipeline, nil)
	return h
}

// maintain runs the scheduled verify and redownload jobs once each.
func (h *repairHarness) maintain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.verifier.VerifyAll(ctx, catalog.ArchiveOK, catalog.ArchiveCorrupt); err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if _, _, err := h.redownloads.Process(ctx); err != nil {
		t.Fatalf("Redownloads.Process: %v", err)
	}
}

func (h *repairHarness) pending(t *testing.T) int {
	t.Helper()
	pending, err := h.store.PendingRedownloads(context.Background())
	if err != nil {
		t.Fatalf("PendingRedownloads: %v", err)
	}
	return len(pending)
}

func TestDownloadedArchiveMatchesGallerySize(t *testing.T) {
	ctx := context.Background()
	h := newRepairHarness(t, writeGallery)
	rec := gallery.Record{GID: "100", Provider: "panda", Title: "Sized Gallery", Filesize: 2000, Filecount: 2}

	outcomes, err := h.pipeline.Process(ctx, []gallery.Record{rec}, nil, download.Options{})
	if err != nil || len(outcomes) != 1 || !outcomes[0].Succeeded {
		t.Fatalf("Process = %#v, %v", outcomes, err)
	}

	for pass := 1; pass <= 3; pass++ {
		h.maintain(t)
		if n := h.pending(t); n != 0 {
			t.Fatalf("pass %d: expected no pending redownloads, got %d", pass, n)
		}
	}
	if h.calls != 1 {
		t.Fatalf("expected a single download, got %d", h.calls)
	}

	g, err := h.store.FindGallery(ctx, rec.Key())
	if err != nil || g == nil {
		t.Fatalf("FindGallery = %v, %v", g, err)
	}
	archives, err := h.store.ArchivesForGallery(ctx, g.ID)
	if err != nil || len(archives) != 1 {
		t.Fatalf("ArchivesForGallery = %d, %v", len(archives), err)
	}
	info, err := os.Stat(archives[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if g.Filesize != 2000 || archives[0].Filesize != 2000 || archives[0].Filecount != 2 {
		t.Fatalf("gallery size %d, archive size %d/%d files, want 2000", g.Filesize, archives[0].Filesize, archives[0].Filecount)
	}
	if info.Size() == archives[0].Filesize {
		t.Fatal("archive row should carry the image size, not the zip size")
	}
}

func TestCorruptArchiveIsRepairedOnce(t *testing.T) {
	cases := []struct {
		name        string
		write       func(testing.TB, string)
		wantStatus  catalog.ArchiveStatus
		wantReason  string
		wantHealthy int
	}{
		{name: "replacement verifies", write: writeGallery, wantStatus: catalog.ArchiveFailed, wantReason: "replaced by archive", wantHealthy: 1},
		{name: "replacement also broken", write: writeJunk, wantStatus: catalog.ArchiveCorrupt, wantHealthy: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			h := newRepairHarness(t, tc.write)
			g := testsupport.MustUpsertGallery(t, h.store, gallery.Record{GID: "200", Provider: "panda", Title: "Damaged", Filesize: 2000})
			broken := filepath.Join(h.dir, "damaged.zip")
			writeJunk(t, broken)
			old, err := h.store.UpsertArchive(ctx, catalog.Archive{Path: broken, GalleryID: g.ID})
			if err != nil {
				t.Fatalf("UpsertArchive: %v", err)
			}

			for pass := 1; pass <= 3; pass++ {
				h.maintain(t)
				if n := h.pending(t); n != 0 {
					t.Fatalf("pass %d: expected no pending redownloads, got %d", pass, n)
				}
			}
			if h.calls != 1 {
				t.Fatalf("expected one repair download, got %d", h.calls)
			}

			stored, err := h.store.GetArchive(ctx, old.ID)
			if err != nil || stored == nil {
				t.Fatalf("GetArchive = %v, %v", stored, err)
			}
			if stored.Status != tc.wantStatus || !strings.Contains(stored.Reason, tc.wantReason) {
				t.Fatalf("old archive status %q reason %q, want %q containing %q", stored.Status, stored.Reason, tc.wantStatus, tc.wantReason)
			}
			archives, err := h.store.ArchivesForGallery(ctx, g.ID)
			if err != nil {
				t.Fatalf("ArchivesForGallery: %v", err)
			}
			healthy := 0
			for _, a := range archives {
				if a.Status == catalog.ArchiveOK {
					healthy++
				}
			}
			if healthy != tc.wantHealthy || len(archives) != 1+tc.wantHealthy {
				t.Fatalf("expected %d healthy of %d archives, got %d of %d", tc.wantHealthy, 1+tc.wantHealthy, healthy, len(archives))
			}
		})
	}
}

func TestCorruptArchiveWithHealthySiblingIsNotRequeued(t *testing.T) {
	ctx := context.Background()
	h := newVerifierHarness(t, fakeRedownloaders{"panda": "archive"})
	g := testsupport.MustUpsertGallery(t, h.store, gallery.Record{GID: "300", Provider: "panda", Filesize: 150})
	h.archive(t, "good.zip", g.ID, sampleMembers)
	if _, err := h.verifier.VerifyAll(ctx); err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}

	bad := h.archive(t, "bad.zip", g.ID, nil)
	writeJunk(t, bad.Path)
	report, err := h.verifier.VerifyArchive(ctx, bad.ID)
	if err != nil {
		t.Fatalf("VerifyArchive: %v", err)
	}
	if !report.Corrupt || report.RedownloadQueued {
		t.Fatalf("expected corrupt archive left alone beside a healthy copy, got %#v", report)
	}
	if pending, _ := h.store.PendingRedownloads(ctx); len(pending) != 0 {
		t.Fatalf("expected no pending redownloads, got %d", len(pending))
	}
}
