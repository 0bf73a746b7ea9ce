package fuzzy_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"galleryvault/internal/fuzzy"
)

var sampleCandidates = []string{
	"sample non public gallery 1",
	"sample non public gallery 2",
}

func TestCloseMatchesRanksSampleGalleries(t *testing.T) {
	matches, err := fuzzy.CloseMatches("public gallery 1", sampleCandidates, 0.4, 10)
	if err != nil {
		t.Fatalf("CloseMatches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %#v", len(matches), matches)
	}
	top := matches[0]
	if top.Index != 0 || top.Value != "sample non public gallery 1" {
		t.Fatalf("unexpected top match %#v", top)
	}
	if math.Abs(top.Score-32.0/43.0) > 1e-9 {
		t.Fatalf("top score = %v, want ~0.744", top.Score)
	}
	if math.Abs(matches[1].Score-30.0/43.0) > 1e-9 {
		t.Fatalf("second score = %v, want ~0.698", matches[1].Score)
	}
}

func TestCloseMatchesRejectsDissimilarQuery(t *testing.T) {
	matches, err := fuzzy.CloseMatches("my title", sampleCandidates, 0.4, 10)
	if err != nil {
		t.Fatalf("CloseMatches: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %#v", matches)
	}
}

func TestCloseMatchesIsDeterministic(t *testing.T) {
	candidates := []string{"abc", "abd", "xbc", "abc", "zzz", "ab"}
	first, err := fuzzy.CloseMatches("abc", candidates, 0.3, 4)
	if err != nil {
		t.Fatalf("CloseMatches: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := fuzzy.CloseMatches("abc", candidates, 0.3, 4)
		if err != nil {
			t.Fatalf("CloseMatches: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("results differ on run %d (-first +again):\n%s", i, diff)
		}
	}
	if first[0].Index != 0 || first[1].Index != 3 {
		t.Fatalf("equal scores should keep input order, got %#v", first[:2])
	}
}

func TestCloseMatchesCutoffMonotonic(t *testing.T) {
	candidates := []string{
		"the quick brown fox",
		"quick brown dog",
		"a slow red fox",
		"brown fox jumps",
		"unrelated words",
	}
	prev := math.MaxInt
	for cutoff := 0.0; cutoff <= 1.0; cutoff += 0.05 {
		matches, err := fuzzy.CloseMatches("quick brown fox", candidates, cutoff, 10)
		if err != nil {
			t.Fatalf("CloseMatches(%v): %v", cutoff, err)
		}
		if len(matches) > prev {
			t.Fatalf("cutoff %v returned %d results, more than %d at a lower cutoff", cutoff, len(matches), prev)
		}
		prev = len(matches)
	}
}

func TestCloseMatchesCapsResults(t *testing.T) {
	candidates := []string{"aaaa", "aaab", "aaba", "abaa", "baaa", "aaaa"}
	for n := 1; n <= len(candidates)+2; n++ {
		matches, err := fuzzy.CloseMatches("aaaa", candidates, 0, n)
		if err != nil {
			t.Fatalf("CloseMatches: %v", err)
		}
		if len(matches) > n {
			t.Fatalf("n=%d returned %d results", n, len(matches))
		}
	}
}

func TestCloseMatchesValidatesArguments(t *testing.T) {
	if _, err := fuzzy.CloseMatches("a", []string{"a"}, 0.5, 0); !errors.Is(err, fuzzy.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for n=0, got %v", err)
	}
	if _, err := fuzzy.CloseMatches("a", []string{"a"}, 1.5, 1); !errors.Is(err, fuzzy.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for cutoff 1.5, got %v", err)
	}
	matches, err := fuzzy.CloseMatches("a", nil, 0.5, 3)
	if err != nil || len(matches) != 0 {
		t.Fatalf("empty candidates should yield empty result, got %#v %v", matches, err)
	}
}

func TestBestMatchClampsCutoff(t *testing.T) {
	match, ok := fuzzy.BestMatch("gallery", []string{"galery", "gallery"}, -2)
	if !ok || match.Index != 1 || match.Score != 1 {
		t.Fatalf("unexpected best match %#v %v", match, ok)
	}
	if _, ok := fuzzy.BestMatch("gallery", []string{"galery"}, 5); ok {
		t.Fatal("cutoff above 1 should only accept identical strings")
	}
}

func TestRatioHandlesMultibyteTitles(t *testing.T) {
	if got := fuzzy.Ratio("東方", "東方"); got != 1 {
		t.Fatalf("Ratio of identical CJK titles = %v", got)
	}
	if got := fuzzy.Ratio("", ""); got != 1 {
		t.Fatalf("Ratio of empty strings = %v", got)
	}
	if got := fuzzy.Ratio("東方", "西方"); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("Ratio(東方, 西方) = %v, want 0.5", got)
	}
}

func TestMatchingBlocksCollapseAdjacentRuns(t *testing.T) {
	m := fuzzy.NewSequenceMatcher("abxcd", "abcd")
	want := []fuzzy.Block{{A: 0, B: 0, Size: 2}, {A: 3, B: 2, Size: 2}, {A: 5, B: 4, Size: 0}}
	if diff := cmp.Diff(want, m.MatchingBlocks()); diff != "" {
		t.Fatalf("MatchingBlocks mismatch (-want +got):\n%s", diff)
	}
}
