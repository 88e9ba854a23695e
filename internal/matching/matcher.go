package matching

import (
	"github.com/spigell/quote-engine/internal/catalog"
	"github.com/spigell/quote-engine/internal/scoring"
)

// DefaultThreshold is the minimum score accepted as a match.
const DefaultThreshold = 60

// Match is the outcome of scanning the catalog for one query.
type Match struct {
	Entry catalog.Entry
	// Index is the position of Entry in the catalog.
	Index int
	Score int
}

type candidate struct {
	index int
	entry catalog.Entry
	text  string
}

// Matcher finds the catalog entry most similar to a requested service.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	candidates []candidate
	threshold  int
}

// New prepares a matcher over the matchable entries of c.
// The threshold is clamped to [0, 100].
func New(c *catalog.Catalog, threshold int) *Matcher {
	threshold = min(max(threshold, 0), scoring.MaxScore)

	m := &Matcher{threshold: threshold}
	if c == nil {
		return m
	}

	for _, i := range c.MatchableIndexes() {
		entry := c.At(i)
		m.candidates = append(m.candidates, candidate{
			index: i,
			entry: entry,
			text:  entry.SearchText(),
		})
	}

	return m
}

func (m *Matcher) Threshold() int {
	return m.threshold
}

// Match returns the best scoring entry if it reaches the threshold.
func (m *Matcher) Match(query string) (Match, bool) {
	best, ok := m.Best(query)
	if !ok || best.Score < m.threshold {
		return Match{}, false
	}
	return best, true
}

// Best returns the highest scoring entry regardless of the threshold.
// Ties keep the entry that comes first in the catalog.
// ok is false only when the catalog has no matchable entries.
func (m *Matcher) Best(query string) (Match, bool) {
	if len(m.candidates) == 0 {
		return Match{}, false
	}

	bestIdx, bestScore := 0, -1
	for i, c := range m.candidates {
		score := scoring.Score(query, c.text)
		if score > bestScore {
			bestIdx, bestScore = i, score
			if score == scoring.MaxScore {
				break
			}
		}
	}

	c := m.candidates[bestIdx]
	return Match{Entry: c.entry, Index: c.index, Score: bestScore}, true
}
