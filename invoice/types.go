/*
Package invoice allocates fuel/fleet card invoice lines to cost centers and
assembles the ledger import.

PURPOSE:
  The card vendor bills every transaction against a license plate. Finance
  books each line to the cost center of the car's driver. This package joins
  invoice lines to the canonical asset mapping and, only when EVERY line
  resolves, produces the ledger export.

THE ALLOCATION GATE:
  If any plate has no numeric cost center the run stops with a
  *generic.MissingAllocationError listing the plates. No ledger is returned,
  not even a partial one. A ledger that silently drops a charge is worse
  than no ledger.

FLOW:
  vendor CSV --FeedFromTable--> []Line + Header
  []Line + mapping --Allocate--> *generic.Ledger | MissingAllocationError
  *generic.Ledger --WriteLedgerCSV--> booking import file

SEE ALSO:
  - allocate.go: join + gate
  - ledger.go: row assembly and CSV layout
  - feed.go: vendor file parsing
*/
package invoice

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-ledger/generic"
)

// =============================================================================
// INVOICE LINE
// =============================================================================

// Line is one vendor transaction. AssetID is empty when the plate is absent;
// such lines can't be allocated and are dropped before the join.
type Line struct {
	RawAssetID  string
	AssetID     string
	Gross       decimal.NullDecimal // invalid when unparseable
	StandardVAT bool
}

// NewLine builds a line from vendor cells.
func NewLine(rawAssetID, grossText, vatText, standardVATMarker string) Line {
	id, _ := generic.NormalizeAssetID(rawAssetID)
	return Line{
		RawAssetID:  rawAssetID,
		AssetID:     id,
		Gross:       generic.ParseLocaleDecimal(grossText),
		StandardVAT: isStandardVAT(vatText, standardVATMarker),
	}
}

// =============================================================================
// HEADER
// =============================================================================

// Header is the invoice metadata taken from outside the detail lines.
type Header struct {
	Date           time.Time
	HasDate        bool
	DocumentNumber string
}

// DateText renders the date with layout, or "" when unknown.
func (h Header) DateText(layout string) string {
	if !h.HasDate {
		return ""
	}
	return h.Date.Format(layout)
}

// =============================================================================
// LEDGER OPTIONS
// =============================================================================

// LedgerOptions holds the chart-of-accounts constants for the export.
type LedgerOptions struct {
	OffsetAccount     string `yaml:"offset_account"`
	ExpenseAccount    string `yaml:"expense_account"`
	StandardVATMarker string `yaml:"standard_vat_marker"`
	StandardTaxCode   int    `yaml:"standard_tax_code"`
	OtherTaxCode      int    `yaml:"other_tax_code"`
	DateLayout        string `yaml:"date_layout"`
	Title             string `yaml:"title"`
	DescriptionPrefix string `yaml:"description_prefix"`
}

// DefaultLedgerOptions returns the vendor/ledger constants in use today.
func DefaultLedgerOptions() LedgerOptions {
	return LedgerOptions{
		OffsetAccount:     "80071244",
		ExpenseAccount:    "4530",
		StandardVATMarker: "19%",
		StandardTaxCode:   9,
		OtherTaxCode:      50,
		DateLayout:        "02.01.2006",
		Title:             "BearbeitenFibuBuch.BlattDKV",
		DescriptionPrefix: "Fleet invoice",
	}
}

func (o LedgerOptions) taxCode(standardVAT bool) int {
	if standardVAT {
		return o.StandardTaxCode
	}
	return o.OtherTaxCode
}
