// Package scoring computes 0-100 text similarity between a requested service
// and a catalog entry. All functions are pure and safe for concurrent use.
package scoring

import (
	"math"
	"strings"
)

const MaxScore = 100

// Score returns the higher of Ratio and PartialRatio.
func Score(query, candidate string) int {
	a, b := normalize(query), normalize(candidate)
	return max(ratio(a, b), partialRatio(a, b))
}

// Ratio is the whole-string similarity based on insert/delete edit distance:
// 2*LCS / (len(a)+len(b)), scaled to 0-100.
func Ratio(a, b string) int {
	return ratio(normalize(a), normalize(b))
}

// PartialRatio is the best Ratio between the shorter string and any
// same-length window of the longer one, including partial overlaps at both
// edges. It rewards a query that appears inside a longer candidate.
func PartialRatio(a, b string) int {
	return partialRatio(normalize(a), normalize(b))
}

func ratio(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return round(similarity(a, b))
}

func partialRatio(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}

	m, n := len(short), len(long)
	best := 0.0

	for i := 0; i+m <= n; i++ {
		best = math.Max(best, similarity(short, long[i:i+m]))
		if best == MaxScore {
			return MaxScore
		}
	}

	for k := 1; k < m; k++ {
		best = math.Max(best, similarity(short, long[:k]))
		best = math.Max(best, similarity(short, long[n-k:]))
	}

	return round(best)
}

func similarity(a, b []rune) float64 {
	return 2 * MaxScore * float64(lcs(a, b)) / float64(len(a)+len(b))
}

// lcs returns the length of the longest common subsequence.
func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for _, ra := range a {
		for j, rb := range b {
			switch {
			case ra == rb:
				cur[j+1] = prev[j] + 1
			case prev[j+1] >= cur[j]:
				cur[j+1] = prev[j+1]
			default:
				cur[j+1] = cur[j]
			}
		}
		prev, cur = cur, prev
	}

	return prev[len(b)]
}

// normalize lower-cases s and collapses runs of whitespace into single spaces.
func normalize(s string) []rune {
	return []rune(strings.Join(strings.Fields(strings.ToLower(s)), " "))
}

// round is half-up; scores are never negative.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}
