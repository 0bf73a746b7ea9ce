// Package fuzzy scores title similarity with a longest-matching-block sequence
// matcher and selects ranked candidates.
//
// Candidates are screened by three estimators of increasing cost: a length
// ratio upper bound, a character multiset upper bound and the exact ratio.
// A candidate is scored only when it passes all three against the cutoff, so
// obviously dissimilar strings are rejected cheaply. Every function here is
// pure and deterministic; ties keep the candidates' input order.
package fuzzy
