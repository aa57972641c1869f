package analyzer

import "golang.org/x/exp/slices"

// levenshtein returns the edit distance between a and b. Implemented
// locally (SPEC_FULL.md §6.G): no pack example imports a dedicated
// fuzzy-match library, so this is a small classic dynamic-programming
// table rather than an external dependency.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}

	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[m]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// maxSuggestionDistance bounds how different a candidate may be before
// it's no longer worth suggesting — beyond this, "did you mean" would be
// more confusing than silence.
const maxSuggestionDistance = 3

// closestMatch returns the candidate closest to typo by edit distance,
// or "" if none is within maxSuggestionDistance. Ties are broken by
// sorting candidates first so the result is deterministic regardless of
// map iteration order (spec.md §4.G "did you mean" suggestions).
func closestMatch(typo string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	sorted := append([]string(nil), candidates...)
	slices.Sort(sorted)

	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, c := range sorted {
		d := levenshtein(typo, c)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist > maxSuggestionDistance {
		return ""
	}
	return best
}
