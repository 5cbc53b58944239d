/*
normalize.go - Canonical forms for free-text identity fields

PURPOSE:
  HR, fleet and invoice sources all type names, plates and amounts by hand.
  The normalizer turns those cells into forms that can be compared exactly.
  Mapping keys and invoice-line keys go through the SAME functions, so the
  allocation join is an exact match on one canonical form.

ABSENT VALUES:
  Spreadsheet exports spell "no value" as an empty cell, "nan" or "None".
  All of them are reported as absent (ok=false), never as an empty string
  that could be mistaken for data.

LOCALE CURRENCY:
  Invoice feeds use "." as thousands separator and "," as decimal separator
  ("1.234,56"). Parsing never fails loudly: unparseable input yields NaN
  (float form) or an invalid NullDecimal (decimal form).

SEE ALSO:
  - match.go: consumes BuildFullName output
  - fleet/mapping.go: consumes SplitAssetIDs
  - invoice/allocate.go: consumes NormalizeAssetID and ParseLocaleDecimal
*/
package generic

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// absentMarkers are the literal cell values that mean "no value".
var absentMarkers = map[string]bool{
	"":     true,
	"nan":  true,
	"None": true,
}

// CleanText trims s and reports false for absent markers.
func CleanText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if absentMarkers[s] {
		return "", false
	}
	return s, true
}

// BuildFullName joins the cleaned parts with a single space. Blank results
// are absent.
func BuildFullName(first, last string) (string, bool) {
	f, _ := CleanText(first)
	l, _ := CleanText(last)
	full := strings.TrimSpace(f + " " + l)
	if full == "" {
		return "", false
	}
	return full, true
}

// =============================================================================
// ASSET IDENTIFIERS
// =============================================================================

// HasAssetID reports whether a raw asset field carries anything at all.
func HasAssetID(raw string) bool {
	s := strings.TrimSpace(raw)
	return s != "" && !strings.EqualFold(s, "nan")
}

// NormalizeAssetID strips spaces and hyphens and uppercases:
// "ab-123 xy" and "AB123XY" both become "AB123XY".
func NormalizeAssetID(raw string) (string, bool) {
	if !HasAssetID(raw) {
		return "", false
	}
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ToUpper(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// SplitAssetIDs expands a comma-separated asset field into normalized ids in
// source order. Duplicates are kept; deduplication happens across records in
// the mapping builder.
func SplitAssetIDs(raw string) []string {
	if !HasAssetID(raw) {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id, ok := NormalizeAssetID(part); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// =============================================================================
// NUMBERS
// =============================================================================

// ParseNumber parses standard notation ("27100", "27100.0", "2.71e4").
func ParseNumber(raw string) (decimal.Decimal, bool) {
	s, ok := CleanText(raw)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseLocaleDecimal converts "1.234,56" to 1234.56. Invalid on absent or
// unparseable input.
func ParseLocaleDecimal(raw string) decimal.NullDecimal {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return decimal.NullDecimal{}
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// ParseLocaleCurrency is ParseLocaleDecimal in float form: NaN when unknown.
func ParseLocaleCurrency(raw string) float64 {
	d := ParseLocaleDecimal(raw)
	if !d.Valid {
		return math.NaN()
	}
	return d.Decimal.InexactFloat64()
}
