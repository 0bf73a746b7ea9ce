package gallery

import "strings"

// SplitTag separates a "scope:value" tag. Bare tags return an empty scope.
func SplitTag(tag string) (scope, value string) {
	tag = strings.TrimSpace(tag)
	if idx := strings.Index(tag, ":"); idx > 0 {
		return tag[:idx], tag[idx+1:]
	}
	return "", tag
}

// NormalizeTag lowercases a tag and trims whitespace around scope and value.
func NormalizeTag(tag string) string {
	scope, value := SplitTag(strings.ToLower(tag))
	scope = strings.TrimSpace(scope)
	value = strings.TrimSpace(value)
	if scope == "" {
		return value
	}
	return scope + ":" + value
}

// TagSet builds a lookup set from normalized tags.
func TagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if normalized := NormalizeTag(tag); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

// FirstIntersecting returns the first tag of tags present in set.
func FirstIntersecting(tags []string, set map[string]struct{}) (string, bool) {
	if len(set) == 0 {
		return "", false
	}
	for _, tag := range tags {
		if _, ok := set[NormalizeTag(tag)]; ok {
			return tag, true
		}
	}
	return "", false
}

// ScopeCounts counts the tags of each scope. Bare tags are counted under "".
func ScopeCounts(tags []string) map[string]int {
	counts := make(map[string]int)
	for _, tag := range tags {
		scope, _ := SplitTag(NormalizeTag(tag))
		counts[scope]++
	}
	return counts
}
