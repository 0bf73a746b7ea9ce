package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// bracketPattern matches one bracketed annotation such as "[Artist]",
// "(Event)", "{Group}" or the full-width variants after folding.
var bracketPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)

var folder = cases.Fold()

// FoldTitle returns a comparison key: NFKC normalized, full-width characters
// narrowed, case folded and whitespace collapsed.
func FoldTitle(title string) string {
	folded := norm.NFKC.String(title)
	folded = width.Fold.String(folded)
	folded = folder.String(folded)
	return CollapseSpaces(folded)
}

// SearchTitle returns a search key: the folded title without bracketed
// annotations or punctuation. If stripping leaves nothing, the folded title
// is returned instead.
func SearchTitle(title string) string {
	folded := FoldTitle(title)
	stripped := bracketPattern.ReplaceAllString(folded, " ")
	stripped = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, stripped)
	if stripped = CollapseSpaces(stripped); stripped != "" {
		return stripped
	}
	return folded
}

// CollapseSpaces trims and replaces runs of whitespace with a single space.
func CollapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
