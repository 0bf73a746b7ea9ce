package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameBytes bounds sanitized names below the common 255-byte limit,
// leaving room for a duplicate suffix.
const MaxFileNameBytes = 200

// SanitizeFileName turns a gallery title or remote file name into a single
// path element. Path separators and reserved punctuation become dashes or
// are dropped, control characters and repeated whitespace are removed, and
// the result is cut to MaxFileNameBytes on a rune boundary with the
// extension kept.
func SanitizeFileName(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			r = '-'
		case r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			continue
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), " .")
	return truncateName(out, MaxFileNameBytes)
}

func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > limit/4 {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	cut := limit - len(ext)
	for cut > 0 && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return strings.TrimRight(stem[:cut], " .") + ext
}
