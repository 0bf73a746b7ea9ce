package services_test

import (
	"context"
	"testing"

	"galleryvault/internal/crawler"
	"galleryvault/internal/gallery"
	"galleryvault/internal/services"
	"galleryvault/internal/testsupport"
	"galleryvault/internal/transport"
	"galleryvault/internal/wanted"
)

func TestNewRegistersBuiltinProviders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, err := services.New(cfg, nil)
	if err != nil {
		t.Fatalf("services.New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	if got := svc.Registry.Providers(); len(got) != 2 {
		t.Fatalf("expected built-in providers, got %v", got)
	}
	if len(svc.Transfers) != 0 || len(svc.TransferList()) != 0 {
		t.Fatalf("expected no transports without transmission, got %v", svc.Transfers)
	}
	if svc.Metrics == nil {
		t.Fatal("expected metrics built from config")
	}
}

func TestNewBuildsTransmissionWhenEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transmission.Enabled = true
	cfg.Metrics.Enabled = false
	svc, err := services.New(cfg, nil)
	if err != nil {
		t.Fatalf("services.New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	list := svc.TransferList()
	if len(list) != 1 || list[0].Name() != "transmission" {
		t.Fatalf("expected transmission transport, got %v", list)
	}
	if svc.Metrics != nil {
		t.Fatal("expected metrics disabled")
	}
}

func TestCrawlUsesStoredWantedFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stub := testsupport.NewStubProvider("stub")
	wantedURL := stub.Add(gallery.Record{GID: "1", Title: "Wanted", Tags: []string{"artist:someone"}})
	otherURL := stub.Add(gallery.Record{GID: "2", Title: "Other"})

	svc, err := services.New(cfg, nil,
		services.WithProviders(stub.Registration()),
		services.WithTransfers(map[string]transport.Transfer{}),
	)
	if err != nil {
		t.Fatalf("services.New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	ctx := context.Background()
	if _, err := svc.Store.CreateWanted(ctx, wanted.Filter{Name: "someone", WantedTags: []string{"artist:someone"}}); err != nil {
		t.Fatalf("CreateWanted: %v", err)
	}

	summary, err := svc.Crawl(ctx, []string{wantedURL, otherURL}, crawler.Options{WantedOnly: true})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if summary.Fetched != 2 || summary.Forwarded != 1 || summary.Downloaded != 1 || summary.Wanted != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	stored, err := svc.Store.FindGallery(ctx, gallery.Key{GID: "1", Provider: "stub"})
	if err != nil || stored == nil {
		t.Fatalf("expected wanted gallery stored, got %#v %v", stored, err)
	}
}
