package textutil_test

import (
	"testing"

	"galleryvault/internal/textutil"
)

func TestFoldTitle(t *testing.T) {
	cases := map[string]string{
		"  Sample   Gallery ": "sample gallery",
		"ＦＵＬＬ　ＷＩＤＴＨ":        "full width",
		"東方 Project":         "東方 project",
	}
	for input, want := range cases {
		if got := textutil.FoldTitle(input); got != want {
			t.Fatalf("FoldTitle(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSearchTitleStripsAnnotations(t *testing.T) {
	cases := map[string]string{
		"(C99) [Circle (Artist)] Gallery Name! [English]": "gallery name",
		"[Only Brackets]": "[only brackets]",
		"Plain Title":     "plain title",
	}
	for input, want := range cases {
		if got := textutil.SearchTitle(input); got != want {
			t.Fatalf("SearchTitle(%q) = %q, want %q", input, got, want)
		}
	}
}
