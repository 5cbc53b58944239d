package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-ledger/generic"
)

// =============================================================================
// SCORING
// =============================================================================

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"Anna Muster", "Anna Muster", 100},
		{"Muster Anna", "anna  MUSTER", 100}, // order and case insensitive
		{"Ana Muster", "Anna Muster", 95},    // 20/21
		{"Anna-Maria Muster", "Anna Maria Muster", 100},
		{"Anna Muster", "", 0},
		{"abc", "xyz", 0},
		{"Jürgen Müller", "Jurgen Muller", 92}, // "jrgen mller" vs "jurgen muller", 22/24
		{"Müller", "Muller", 91},               // 10/11
		{"Groß", "Gross", 75},                  // "gro" vs "gross", 6/8
		{"Jürgen Müller", "Jürgen Müller", 100},
		{"Łukasz Nowak", "Łukasz Nowak", 100}, // outside Latin-1, kept
		{"Ö", "Ö", 0},                          // nothing left to score
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, generic.TokenSortRatio(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

// =============================================================================
// SELECTION
// =============================================================================

func TestMatch_UmlautsAgainstPlainSpelling(t *testing.T) {
	got, score := generic.Match("Jürgen Müller", []string{"Anna Muster", "Jurgen Muller"}, 90)
	assert.Equal(t, "Jurgen Muller", got)
	assert.Equal(t, 92, score)
}

func TestMatch_AbsentNameNeverConsultsCandidates(t *testing.T) {
	for _, name := range []string{"", "  ", "nan", "None"} {
		got, score := generic.Match(name, []string{"Anna Muster"}, 0)
		assert.Empty(t, got)
		assert.Zero(t, score)
	}
}

func TestMatch_EmptyCandidates(t *testing.T) {
	got, score := generic.Match("Anna Muster", nil, 0)
	assert.Empty(t, got)
	assert.Zero(t, score)
}

func TestMatch_ThresholdGate(t *testing.T) {
	candidates := []string{"Anna Muster", "Bernd Beispiel"}

	got, score := generic.Match("Ana Muster", candidates, 90)
	assert.Equal(t, "Anna Muster", got)
	assert.Equal(t, 95, score)

	// Rejected, but the score is still reported
	got, score = generic.Match("Ana Muster", candidates, 96)
	assert.Empty(t, got)
	assert.Equal(t, 95, score)

	// Inclusive bound
	got, _ = generic.Match("Ana Muster", candidates, 95)
	assert.Equal(t, "Anna Muster", got)
}

func TestMatch_ThresholdOnlyFilters(t *testing.T) {
	// GIVEN: the same name and candidates under increasing thresholds
	candidates := []string{"Anna Muster", "Anne Mustermann", "Bernd Beispiel"}
	_, base := generic.Match("Ana Musster", candidates, 0)

	// THEN: the reported score never changes; acceptance is monotonic
	accepted := true
	for threshold := 0; threshold <= 100; threshold++ {
		got, score := generic.Match("Ana Musster", candidates, threshold)
		assert.Equal(t, base, score, "threshold %d changed the score", threshold)
		if got != "" {
			assert.True(t, accepted, "accepted again at %d after rejecting", threshold)
		} else {
			accepted = false
		}
	}
}

func TestMatch_TiesGoToFirstCandidate(t *testing.T) {
	// "Muster Anna" and "Anna Muster" sort to the same tokens
	got, score := generic.Match("Anna Muster", []string{"Muster Anna", "Anna Muster"}, 0)
	assert.Equal(t, "Muster Anna", got)
	assert.Equal(t, 100, score)

	got, _ = generic.Match("Anna Muster", []string{"Anna Muster", "Muster Anna"}, 0)
	assert.Equal(t, "Anna Muster", got)
}

func TestMatcher_Resolve(t *testing.T) {
	m := generic.NewMatcher([]string{"Anna Muster"})

	r := m.Resolve("  Ana Muster ", 90)
	assert.Equal(t, generic.MatchResult{Source: "Ana Muster", Matched: "Anna Muster", Score: 95, IsMatched: true}, r)

	r = m.Resolve("Zoe Zufall", 90)
	assert.False(t, r.IsMatched)
	assert.Empty(t, r.Matched)
	assert.Less(t, r.Score, 90)
}

func TestValidateThreshold(t *testing.T) {
	require.NoError(t, generic.ValidateThreshold(0))
	require.NoError(t, generic.ValidateThreshold(100))
	assert.ErrorIs(t, generic.ValidateThreshold(101), generic.ErrInvalidThreshold)
	assert.ErrorIs(t, generic.ValidateThreshold(-1), generic.ErrInvalidThreshold)
}

// =============================================================================
// ORDERED INDEX
// =============================================================================

func TestOrderedIndex_FirstWins(t *testing.T) {
	idx := generic.NewOrderedIndex[string, int](0)
	assert.True(t, idx.InsertIfAbsent("b", 1))
	assert.True(t, idx.InsertIfAbsent("a", 2))
	assert.False(t, idx.InsertIfAbsent("b", 3))

	v, ok := idx.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"b", "a"}, idx.Keys())
	assert.Equal(t, []int{1, 2}, idx.Values())
	assert.Equal(t, 2, idx.Len())
}
