package reconcile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"galleryvault/internal/catalog"
	"galleryvault/internal/gallery"
	"galleryvault/internal/reconcile"
	"galleryvault/internal/registry"
	"galleryvault/internal/testsupport"
)

type fakeRedownloaders map[string]string

func (f fakeRedownloaders) Redownloader(name string) (registry.DownloaderEntry, bool) {
	typ, ok := f[name]
	if !ok {
		return registry.DownloaderEntry{}, false
	}
	return registry.DownloaderEntry{Provider: name, Type: typ}, true
}

var sampleMembers = map[string]int{
	"01.jpg":          100,
	"02.PNG":          50,
	"__MACOSX/01.jpg": 10,
	"sub/.thumb.jpg":  5,
	"info.txt":        7,
}

type verifierHarness struct {
	store    *catalog.Store
	verifier *reconcile.Verifier
	dir      string
}

func newVerifierHarness(t *testing.T, redl reconcile.Redownloaders) *verifierHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return &verifierHarness{
		store:    store,
		verifier: reconcile.NewVerifier(cfg, store, redl, nil, nil),
		dir:      cfg.Paths.ArchiveDir,
	}
}

func (h *verifierHarness) archive(t *testing.T, name string, galleryID int64, members map[string]int) *catalog.Archive {
	t.Helper()
	path := filepath.Join(h.dir, name)
	if members != nil {
		testsupport.WriteZip(t, path, members)
	}
	a, err := h.store.UpsertArchive(context.Background(), catalog.Archive{Path: path, GalleryID: galleryID})
	if err != nil {
		t.Fatalf("UpsertArchive: %v", err)
	}
	return a
}

func TestVerifyArchiveRecomputesContents(t *testing.T) {
	h := newVerifierHarness(t, fakeRedownloaders{"panda": "archive"})
	g := testsupport.MustUpsertGallery(t, h.store, gallery.Record{GID: "1", Provider: "panda", Filesize: 150})
	a := h.archive(t, "ok.zip", g.ID, sampleMembers)

	report, err := h.verifier.VerifyArchive(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("VerifyArchive: %v", err)
	}
	if report.ImageSize != 150 || report.ImageCount != 2 || report.Checksum == "" {
		t.Fatalf("unexpected report %#v", report)
	}
	if report.SizeMismatch || report.RedownloadQueued {
		t.Fatalf("expected matching size, got %#v", report)
	}
	stored, _ := h.store.GetArchive(context.Background(), a.ID)
	if stored.Status != catalog.ArchiveOK || stored.Filesize != 150 || stored.Filecount != 2 || stored.Checksum != report.Checksum {
		t.Fatalf("unexpected stored archive %#v", stored)
	}
}

func TestSizeMismatchQueuesRedownloadOnce(t *testing.T) {
	ctx := context.Background()
	h := newVerifierHarness(t, fakeRedownloaders{"panda": "archive"})
	g := testsupport.MustUpsertGallery(t, h.store, gallery.Record{GID: "1", Provider: "panda", Filesize: 999})
	a := h.archive(t, "short.zip", g.ID, sampleMembers)

	first, err := h.verifier.VerifyArchive(ctx, a.ID)
	if err != nil {
		t.Fatalf("VerifyArchive: %v", err)
	}
	if !first.SizeMismatch || !first.RedownloadQueued {
		t.Fatalf("expected mismatch to queue a redownload, got %#v", first)
	}
	second, err := h.verifier.VerifyArchive(ctx, a.ID)
	if err != nil {
		t.Fatalf("VerifyArchive: %v", err)
	}
	if !second.SizeMismatch || second.RedownloadQueued {
		t.Fatalf("expected second pass to find the queued request, got %#v", second)
	}
	pending, err := h.store.PendingRedownloads(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected exactly one pending redownload, got %d (%v)", len(pending), err)
	}
	if pending[0].GalleryID != g.ID || pending[0].Downloader != "archive" || pending[0].Reason != "size mismatch" {
		t.Fatalf("unexpected redownload %#v", pending[0])
	}
}

func TestSizeMismatchWithMatchingSiblingIsIgnored(t *testing.T) {
	ctx := context.Background()
	h := newVerifierHarness(t, fakeRedownloaders{"panda": "archive"})
	g := testsupport.MustUpsertGallery(t, h.store, gallery.Record{GID: "1", Provider: "panda", Filesize: 999})
	if _, err := h.store.UpsertArchive(ctx, catalog.Archive{Path: filepath.Join(h.dir, "full.zip"), GalleryID: g.ID, Filesize: 999}); err != nil {
		t.Fatalf("UpsertArchive: %v", err)
	}
	a := h.archive(t, "short.zip", g.ID, sampleMembers)

	report, err := h.verifier.VerifyArchive(ctx, a.ID)
	if err != nil {
		t.Fatalf("VerifyArchive: %v", err)
	}
	if report.SizeMismatch || report.RedownloadQueued {
		t.Fatalf("expected sibling to satisfy the gallery size, got %#v", report)
	}
}

func TestSizeMismatchWithoutRedownloaderOnlyWarns(t *testing.T) {
	ctx := context.Background()
	h := newVerifierHarness(t, fakeRedownloaders{})
	g := testsupport.MustUpsertGallery(t, h.store, gallery.Record{GID: "1", Provider: "direct", Filesize: 999})
	a := h.archive(t, "short.zip", g.ID, sampleMembers)

	report, err := h.verifier.VerifyArchive(ctx, a.ID)
	if err != nil {
		t.Fatalf("VerifyArchive: %v", err)
	}
	if !report.SizeMismatch || report.RedownloadQueued {
		t.Fatalf("unexpected report %#v", report)
	}
	if pending, _ := h.store.PendingRedownloads(ctx); len(pending) != 0 {
		t.Fatalf("expected no redownloads, got %d", len(pending))
	}
}

func TestCorruptAndMissingArchives(t *testing.T) {
	ctx := context.Background()
	h := newVerifierHarness(t, fakeRedownloaders{"panda": "archive"})
	g := testsupport.MustUpsertGallery(t, h.store, gallery.Record{GID: "1", Provider: "panda"})

	badPath := filepath.Join(h.dir, "bad.zip")
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(badPath, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	bad := h.archive(t, "bad.zip", g.ID, nil)
	report, err := h.verifier.VerifyArchive(ctx, bad.ID)
	if err != nil {
		t.Fatalf("VerifyArchive: %v", err)
	}
	if !report.Corrupt || !report.RedownloadQueued {
		t.Fatalf("expected corrupt archive queued for redownload, got %#v", report)
	}
	stored, _ := h.store.GetArchive(ctx, bad.ID)
	if stored.Status != catalog.ArchiveCorrupt {
		t.Fatalf("expected corrupt status, got %s", stored.Status)
	}

	missing := h.archive(t, "gone.zip", g.ID, nil)
	report, err = h.verifier.VerifyArchive(ctx, missing.ID)
	if err != nil {
		t.Fatalf("VerifyArchive: %v", err)
	}
	if !report.Missing {
		t.Fatalf("expected missing report, got %#v", report)
	}
	stored, _ = h.store.GetArchive(ctx, missing.ID)
	if stored.Status != catalog.ArchiveFailed {
		t.Fatalf("expected failed status, got %s", stored.Status)
	}
}

func TestVerifyAllCoversRequestedStatuses(t *testing.T) {
	ctx := context.Background()
	h := newVerifierHarness(t, fakeRedownloaders{})
	first := h.archive(t, "a.zip", 0, map[string]int{"1.jpg": 4})
	second := h.archive(t, "b.zip", 0, map[string]int{"1.jpg": 8, "2.jpg": 8})
	if err := h.store.SetArchiveStatus(ctx, second.ID, catalog.ArchiveCorrupt, "suspect"); err != nil {
		t.Fatalf("SetArchiveStatus: %v", err)
	}

	reports, err := h.verifier.VerifyAll(ctx, catalog.ArchiveCorrupt)
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if len(reports) != 1 || reports[0].ArchiveID != second.ID || reports[0].ImageSize != 16 {
		t.Fatalf("unexpected reports %#v", reports)
	}
	all, err := h.verifier.VerifyAll(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("VerifyAll(all) = %d, %v", len(all), err)
	}
	stored, _ := h.store.GetArchive(ctx, first.ID)
	if stored.Filecount != 1 {
		t.Fatalf("expected first archive verified, got %#v", stored)
	}
}
