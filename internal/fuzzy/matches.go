package fuzzy

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidArgument reports a precondition violation by the caller.
var ErrInvalidArgument = errors.New("fuzzy: invalid argument")

// Match is a scored candidate. Index points into the candidate slice given
// to the selector.
type Match struct {
	Index int
	Value string
	Score float64
}

// CloseMatches returns up to n candidates whose similarity to query passes
// cutoff on the length, multiset and exact estimators. Results are sorted by
// descending score; equal scores keep input order.
func CloseMatches(query string, candidates []string, cutoff float64, n int) ([]Match, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidArgument, n)
	}
	if cutoff < 0 || cutoff > 1 {
		return nil, fmt.Errorf("%w: cutoff must be within [0, 1], got %v", ErrInvalidArgument, cutoff)
	}
	if len(candidates) == 0 {
		return []Match{}, nil
	}

	m := &SequenceMatcher{}
	m.SetSeq2(query)
	results := make([]Match, 0, len(candidates))
	for i, candidate := range candidates {
		m.SetSeq1(candidate)
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		score := m.Ratio()
		if score < cutoff {
			continue
		}
		results = append(results, Match{Index: i, Value: candidate, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// BestMatch returns the highest scoring candidate passing cutoff. The cutoff
// is clamped into [0, 1]. ok is false when nothing passes.
func BestMatch(query string, candidates []string, cutoff float64) (Match, bool) {
	cutoff = min(max(cutoff, 0), 1)
	matches, err := CloseMatches(query, candidates, cutoff, 1)
	if err != nil || len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

// Ratio scores two strings directly.
func Ratio(a, b string) float64 {
	return NewSequenceMatcher(a, b).Ratio()
}
