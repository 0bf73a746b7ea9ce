package provider_test

import (
	"testing"
	"time"

	"galleryvault/internal/config"
	"galleryvault/internal/provider"
)

func TestQueryText(t *testing.T) {
	cases := []struct {
		query provider.Query
		want  string
	}{
		{provider.Query{Title: " A Title "}, "A Title"},
		{provider.Query{Path: "/archives/[Artist] Some Gallery.zip"}, "[Artist] Some Gallery"},
		{provider.Query{Title: "wins", Path: "/x/loses.zip"}, "wins"},
		{provider.Query{}, ""},
	}
	for _, tc := range cases {
		if got := tc.query.Text(); got != tc.want {
			t.Fatalf("Text(%#v) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestContextWaitUsesProviderSettings(t *testing.T) {
	cfg := config.Default()
	wait := 2.0
	cfg.Providers["panda"] = config.Provider{WaitSeconds: &wait}

	pc := provider.Context{Name: "panda", Config: &cfg}
	if got := pc.Wait(); got != 2*time.Second {
		t.Fatalf("expected 2s wait, got %v", got)
	}
	if got := (provider.Context{Name: "panda"}).Wait(); got != 0 {
		t.Fatalf("expected zero wait without config, got %v", got)
	}
	if _, ok := pc.Transfer("transmission"); ok {
		t.Fatal("expected no transfer backend")
	}
}
