/*
ledger.go - Asset mapping rows and ledger entries

PURPOSE:
  The two tables the engine hands to the outside world for persistence:
  the canonical asset mapping (one row per normalized asset id) and the
  ledger export (one summary row plus one detail row per invoice line).

CRITICAL INVARIANTS:
  1. MAPPING KEY: AssetID is unique within a mapping; first occurrence wins
  2. BALANCED: the summary amount is the negated sum of the detail amounts
  3. COMPLETE: a ledger is only built when every line has a cost center
  4. APPEND-ONLY: stored ledgers are never updated; a corrected invoice is a
     new export with a new document number

EXAMPLE:
  Invoice with two lines (12.50 and 30.00):

    summary  -42.50  offset 80071244
    detail    12.50  account 4530  cost center 27100  "AB123"
    detail    30.00  account 4530  cost center 27200  "CD456"

SEE ALSO:
  - fleet/mapping.go: builds AssetMapping rows
  - invoice/ledger.go: builds Ledger
  - store.go: persistence
*/
package generic

import "github.com/shopspring/decimal"

// =============================================================================
// ASSET MAPPING - Canonical plate -> cost center -> driver rows
// =============================================================================

// AssetMapping is one canonical row. CostCenter is numeric when the source
// value parsed, otherwise it carries the raw text; DriverFullName is empty
// when the fleet record had no name.
type AssetMapping struct {
	AssetID        string
	CostCenter     CostCenter
	DriverFullName string
}

// =============================================================================
// LEDGER ENTRY
// =============================================================================

// EntryKind distinguishes the summary row from detail rows.
type EntryKind string

const (
	EntrySummary EntryKind = "summary"
	EntryDetail  EntryKind = "detail"
)

// LedgerEntry is one booking row. Amount is invalid when the source amount
// could not be parsed; such rows are exported with an empty amount.
type LedgerEntry struct {
	Kind           EntryKind
	BookingDate    string
	DocumentDate   string
	DocumentNumber string
	OffsetAccount  string
	TaxCode        string
	Account        string
	Description    string
	Amount         decimal.NullDecimal
	CostCenterCode string
}

// Ledger is an ordered export: summary first, then details in line order.
type Ledger struct {
	DocumentNumber string
	DocumentDate   string
	Entries        []LedgerEntry
}

// Summary returns the summary row.
func (l *Ledger) Summary() LedgerEntry {
	if len(l.Entries) == 0 {
		return LedgerEntry{}
	}
	return l.Entries[0]
}

// Details returns the detail rows.
func (l *Ledger) Details() []LedgerEntry {
	if len(l.Entries) <= 1 {
		return nil
	}
	return l.Entries[1:]
}

// DetailTotal sums the known detail amounts.
func (l *Ledger) DetailTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.Details() {
		if e.Amount.Valid {
			total = total.Add(e.Amount.Decimal)
		}
	}
	return total
}
