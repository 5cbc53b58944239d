/*
Package generic provides the source-agnostic core of the reconciliation engine.

PURPOSE:
  This package contains the types and algorithms shared by every data source
  the engine reconciles. Whether the record comes from the HR roster, the
  fleet registry, or an invoice feed, the same normalizer canonicalizes its
  identity fields and the same matcher resolves names against a reference set.

KEY CONCEPTS IN THIS FILE (types.go):
  - PersonIdentity: first/last name pair with a derived full name
  - CostCenter:     raw cost-center cell plus its numeric reading
  - MatchResult:    outcome of resolving one name against a candidate set

DESIGN PRINCIPLES:
  1. Values only: everything is built once per run and never mutated
  2. Absent is not empty: absent values are reported with an ok flag
  3. Precision: numeric comparison uses decimal.Decimal, never strings or floats

USAGE:
  id := generic.PersonIdentity{FirstName: "Anna", LastName: "Muster"}
  name, ok := id.FullName() // "Anna Muster", true

  cc := generic.ParseCostCenter("27100.0")
  cc.Equal(generic.ParseCostCenter("27100")) // true

SEE ALSO:
  - normalize.go: text, asset id and currency canonicalization
  - match.go: token-sort fuzzy matcher
  - ordered.go: first-wins ordered index
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// PERSON IDENTITY
// =============================================================================

// PersonIdentity is a name as recorded by one source.
type PersonIdentity struct {
	FirstName string
	LastName  string
}

// FullName returns the cleaned "first last" form, or false when both parts
// are absent.
func (p PersonIdentity) FullName() (string, bool) {
	return BuildFullName(p.FirstName, p.LastName)
}

// =============================================================================
// COST CENTER - Raw cell with numeric interpretation
// =============================================================================

// CostCenter keeps the value exactly as the source delivered it alongside
// its numeric reading. Sources disagree on formatting ("27100" vs "27100.0"),
// so equality is only ever decided on Value.
type CostCenter struct {
	Raw     string
	Value   decimal.Decimal
	Numeric bool
}

// ParseCostCenter cleans raw and attempts a numeric parse. Non-numeric input
// is kept in Raw with Numeric=false.
func ParseCostCenter(raw string) CostCenter {
	cleaned, ok := CleanText(raw)
	if !ok {
		return CostCenter{}
	}
	v, numeric := ParseNumber(cleaned)
	return CostCenter{Raw: cleaned, Value: v, Numeric: numeric}
}

// CostCenterFromInt builds a numeric cost center.
func CostCenterFromInt(v int64) CostCenter {
	d := decimal.NewFromInt(v)
	return CostCenter{Raw: d.String(), Value: d, Numeric: true}
}

// IsAbsent reports whether the source had no value at all.
func (c CostCenter) IsAbsent() bool { return c.Raw == "" }

// Equal compares numerically. Two non-numeric values are never equal.
func (c CostCenter) Equal(o CostCenter) bool {
	return c.Numeric && o.Numeric && c.Value.Equal(o.Value)
}

// Code renders the cost center the way ledger imports expect it: the
// canonical number when numeric ("27100.0" -> "27100"), the raw text otherwise.
func (c CostCenter) Code() string {
	if c.Numeric {
		return c.Value.String()
	}
	return c.Raw
}

// String implements fmt.Stringer.
func (c CostCenter) String() string { return c.Code() }

// =============================================================================
// MATCH RESULT
// =============================================================================

// MatchResult is computed once per source record and is immutable afterwards.
//
// INVARIANT: IsMatched == (Matched != "") == (Score >= threshold && a candidate existed)
type MatchResult struct {
	Source    string // cleaned source name, empty when absent
	Matched   string // accepted candidate, empty when rejected
	Score     int    // 0-100, returned even on rejection
	IsMatched bool
}
