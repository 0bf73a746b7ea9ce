package testsupport

import (
	"context"
	"testing"

	"galleryvault/internal/catalog"
	"galleryvault/internal/config"
	"galleryvault/internal/gallery"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustUpsertGallery stores rec and returns the persisted row.
func MustUpsertGallery(t testing.TB, store *catalog.Store, rec gallery.Record) *catalog.Gallery {
	t.Helper()

	g, err := store.UpsertGallery(context.Background(), rec, true)
	if err != nil {
		t.Fatalf("store.UpsertGallery: %v", err)
	}
	return g
}
