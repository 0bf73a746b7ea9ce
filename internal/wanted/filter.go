// Package wanted evaluates standing user-defined predicates over gallery
// records so crawls can flag (or keep only) galleries of interest.
//
// A filter matches when every configured predicate holds: title substring or
// regular expression, required tags, the exclusive-scope rule, unwanted tags,
// page bounds, category and provider. Empty predicates always hold.
package wanted

import (
	"fmt"
	"regexp"
	"strings"

	"galleryvault/internal/gallery"
	"galleryvault/internal/textutil"
)

// Filter is one wanted-gallery predicate.
type Filter struct {
	ID             int64
	Name           string
	SearchTitle    string
	TitleRegexp    string
	WantedTags     []string
	ExclusiveScope bool
	UnwantedTags   []string
	MinPages       int
	MaxPages       int
	Category       string
	Provider       string
	Found          bool
	HideOnFound    bool
	Reason         string
}

// Validate reports malformed predicates.
func (f Filter) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("wanted filter: name is required")
	}
	if f.TitleRegexp != "" {
		if _, err := regexp.Compile(f.TitleRegexp); err != nil {
			return fmt.Errorf("wanted filter %q: title regexp: %w", f.Name, err)
		}
	}
	if f.MinPages < 0 || f.MaxPages < 0 {
		return fmt.Errorf("wanted filter %q: page bounds must be non-negative", f.Name)
	}
	if f.MaxPages > 0 && f.MinPages > f.MaxPages {
		return fmt.Errorf("wanted filter %q: min pages %d exceeds max pages %d", f.Name, f.MinPages, f.MaxPages)
	}
	return nil
}

// Matches maps a gallery identity to the filters it satisfied.
type Matches map[gallery.Key][]Filter

// For returns the filters matched by key.
func (m Matches) For(key gallery.Key) []Filter {
	if m == nil {
		return nil
	}
	return m[key]
}

type compiled struct {
	filter   Filter
	title    string
	pattern  *regexp.Regexp
	wanted   map[string]struct{}
	scopes   map[string]struct{}
	unwanted map[string]struct{}
}

// Set is a compiled, read-only list of filters safe for concurrent use.
type Set struct {
	filters []compiled
}

// NewSet compiles filters. Invalid filters are rejected as a whole.
func NewSet(filters []Filter) (*Set, error) {
	set := &Set{filters: make([]compiled, 0, len(filters))}
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		c := compiled{
			filter:   f,
			title:    textutil.FoldTitle(f.SearchTitle),
			wanted:   gallery.TagSet(f.WantedTags),
			unwanted: gallery.TagSet(f.UnwantedTags),
			scopes:   make(map[string]struct{}),
		}
		if f.TitleRegexp != "" {
			c.pattern = regexp.MustCompile("(?i)" + f.TitleRegexp)
		}
		for tag := range c.wanted {
			if scope, _ := gallery.SplitTag(tag); scope != "" {
				c.scopes[scope] = struct{}{}
			}
		}
		set.filters = append(set.filters, c)
	}
	return set, nil
}

// Len returns the number of filters in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.filters)
}

// Evaluate returns the filters rec satisfies, in set order.
func (s *Set) Evaluate(rec gallery.Record) []Filter {
	if s.Len() == 0 {
		return nil
	}
	tags := gallery.TagSet(rec.Tags)
	var scopeCounts map[string]int
	var out []Filter
	for _, c := range s.filters {
		if !c.matchesTitle(rec) || !c.matchesFields(rec) {
			continue
		}
		if !containsAll(tags, c.wanted) || intersects(tags, c.unwanted) {
			continue
		}
		if c.filter.ExclusiveScope && len(c.scopes) > 0 {
			if scopeCounts == nil {
				scopeCounts = gallery.ScopeCounts(rec.Tags)
			}
			if violatesExclusiveScope(scopeCounts, c.scopes) {
				continue
			}
		}
		out = append(out, c.filter)
	}
	return out
}

// Match evaluates every record and keeps the ones with at least one match.
func (s *Set) Match(records []gallery.Record) Matches {
	matches := make(Matches)
	for _, rec := range records {
		if found := s.Evaluate(rec); len(found) > 0 {
			matches[rec.Key()] = found
		}
	}
	return matches
}

func (c compiled) matchesTitle(rec gallery.Record) bool {
	if c.title == "" && c.pattern == nil {
		return true
	}
	for _, title := range []string{rec.Title, rec.TitleJpn} {
		if title == "" {
			continue
		}
		if c.title != "" && !strings.Contains(textutil.FoldTitle(title), c.title) {
			continue
		}
		if c.pattern != nil && !c.pattern.MatchString(title) {
			continue
		}
		return true
	}
	return false
}

func (c compiled) matchesFields(rec gallery.Record) bool {
	f := c.filter
	if f.MinPages > 0 && rec.Filecount < f.MinPages {
		return false
	}
	if f.MaxPages > 0 && rec.Filecount > f.MaxPages {
		return false
	}
	if f.Category != "" && !strings.EqualFold(strings.TrimSpace(f.Category), strings.TrimSpace(rec.Category)) {
		return false
	}
	if f.Provider != "" && !strings.EqualFold(strings.TrimSpace(f.Provider), rec.Provider) {
		return false
	}
	return true
}

func containsAll(tags, required map[string]struct{}) bool {
	for tag := range required {
		if _, ok := tags[tag]; !ok {
			return false
		}
	}
	return true
}

func intersects(tags, excluded map[string]struct{}) bool {
	for tag := range excluded {
		if _, ok := tags[tag]; ok {
			return true
		}
	}
	return false
}

// violatesExclusiveScope reports whether the gallery carries two or more tags
// in any scope the filter asks for.
func violatesExclusiveScope(counts map[string]int, scopes map[string]struct{}) bool {
	for scope := range scopes {
		if counts[scope] > 1 {
			return true
		}
	}
	return false
}
