/*
match.go - Threshold-gated fuzzy name matcher

PURPOSE:
  Resolves one source name to the best candidate of a reference set. This is
  a deliberately narrow matcher: one field, one score, one threshold.

SCORING (token sort ratio):
  1. Drop the Latin-1 range U+0080-U+00FF ("Müller" -> "Mller"), lowercase,
     replace every rune that is not a letter, digit or underscore with a space
  2. Split on whitespace, sort the tokens, join with a single space
  3. ratio = (len(a) + len(b) - indel distance) / (len(a) + len(b))
  4. score = round-half-even(100 * ratio)

  Sorting the tokens makes the score insensitive to name order:
  "Muster Anna" and "Anna Muster" score 100.

SELECTION:
  - Absent/blank name -> ("", 0), candidates are not consulted
  - Empty candidate set -> ("", 0)
  - Highest score wins; ties go to the FIRST candidate in the caller's order
  - score >= threshold -> (candidate, score), else ("", score)

  The threshold only filters. It never changes the score, so a rejection at
  one threshold reports the same score as an acceptance at a lower one.

SEE ALSO:
  - fleet/reconcile.go: runs the matcher for every fleet record
*/
package generic

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Matcher scores names against a candidate list that is processed once and
// then shared read-only, so Best is safe to call from several goroutines.
type Matcher struct {
	candidates []string
	processed  [][]rune
}

// NewMatcher returns a matcher with the candidate list processed once.
// The slice order is the tie-break order.
func NewMatcher(candidates []string) *Matcher {
	m := &Matcher{
		candidates: candidates,
		processed:  make([][]rune, len(candidates)),
	}
	for i, c := range candidates {
		m.processed[i] = []rune(tokenSort(c))
	}
	return m
}

// Candidates returns the candidate list in tie-break order.
func (m *Matcher) Candidates() []string { return m.candidates }

// Best returns the accepted candidate and the best score.
func (m *Matcher) Best(name string, threshold int) (string, int) {
	cleaned, ok := CleanText(name)
	if !ok || len(m.candidates) == 0 {
		return "", 0
	}

	query := []rune(tokenSort(cleaned))
	bestIdx, bestScore := -1, -1
	for i, p := range m.processed {
		score := ratio(query, p)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	if bestScore >= threshold {
		return m.candidates[bestIdx], bestScore
	}
	return "", bestScore
}

// Resolve wraps Best into a MatchResult.
func (m *Matcher) Resolve(name string, threshold int) MatchResult {
	source, _ := CleanText(name)
	matched, score := m.Best(name, threshold)
	return MatchResult{
		Source:    source,
		Matched:   matched,
		Score:     score,
		IsMatched: matched != "",
	}
}

// Match resolves name against candidates in one call.
func Match(name string, candidates []string, threshold int) (string, int) {
	if _, ok := CleanText(name); !ok {
		return "", 0
	}
	return NewMatcher(candidates).Best(name, threshold)
}

// ValidateThreshold rejects thresholds outside 0-100.
func ValidateThreshold(threshold int) error {
	if threshold < 0 || threshold > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, threshold)
	}
	return nil
}

// TokenSortRatio is the 0-100 similarity between two strings.
func TokenSortRatio(a, b string) int {
	return ratio([]rune(tokenSort(a)), []rune(tokenSort(b)))
}

// =============================================================================
// SCORING HELPERS
// =============================================================================

func ratio(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// DefaultOptions charges 2 for a substitution, i.e. indel distance.
	r := levenshtein.RatioForStrings(a, b, levenshtein.DefaultOptions)
	return int(math.RoundToEven(100 * r))
}

// tokenSort processes s and returns its tokens sorted and space-joined.
func tokenSort(s string) string {
	tokens := strings.Fields(processName(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// processName drops U+0080-U+00FF before anything else, so umlauts and
// accented Latin-1 letters don't count: "Jürgen" and "Jurgen" differ by one
// deletion, not one substitution.
func processName(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 0x80 && r <= 0xFF {
			return -1
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
}
