package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"galleryvault/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{` a/b:c*d?"<>| `, "a-b-c-d"},
		{"[Circle]  Title\t(English)", "[Circle] Title (English)"},
		{"bell\x07name.zip", "bellname.zip"},
		{"trailing dots...", "trailing dots"},
		{"   ", ""},
	}
	for _, tc := range tests {
		if got := textutil.SanitizeFileName(tc.in); got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFileNameTruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("あ", 120) + ".zip"
	got := textutil.SanitizeFileName(long)
	if len(got) > textutil.MaxFileNameBytes {
		t.Fatalf("expected at most %d bytes, got %d", textutil.MaxFileNameBytes, len(got))
	}
	if !strings.HasSuffix(got, ".zip") || !utf8.ValidString(got) {
		t.Fatalf("expected valid name ending in .zip, got %q", got)
	}
}
