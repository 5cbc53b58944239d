package invoice

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/tabular"
)

// BuildLedger assembles the export from fully allocated lines: one summary
// row carrying the negated total, then one detail row per line in order.
// Amounts are rounded to cents with banker's rounding; unknown amounts stay
// unknown and are left out of the total.
func BuildLedger(allocations []Allocation, header Header, opts LedgerOptions) *generic.Ledger {
	date := header.DateText(opts.DateLayout)

	details := make([]generic.LedgerEntry, len(allocations))
	total := decimal.Zero
	for i, a := range allocations {
		amount := a.Line.Gross
		if amount.Valid {
			amount.Decimal = amount.Decimal.RoundBank(2)
			total = total.Add(amount.Decimal)
		}
		details[i] = generic.LedgerEntry{
			Kind:           generic.EntryDetail,
			BookingDate:    date,
			DocumentDate:   date,
			DocumentNumber: header.DocumentNumber,
			OffsetAccount:  opts.OffsetAccount,
			TaxCode:        strconv.Itoa(opts.taxCode(a.Line.StandardVAT)),
			Account:        opts.ExpenseAccount,
			Description:    a.Line.AssetID,
			Amount:         amount,
			CostCenterCode: a.CostCenter.Code(),
		}
	}

	summary := generic.LedgerEntry{
		Kind:           generic.EntrySummary,
		BookingDate:    date,
		DocumentDate:   date,
		DocumentNumber: header.DocumentNumber,
		OffsetAccount:  opts.OffsetAccount,
		Description:    strings.TrimSpace(opts.DescriptionPrefix + " " + date),
		Amount:         decimal.NullDecimal{Decimal: total.Neg(), Valid: true},
	}

	return &generic.Ledger{
		DocumentNumber: header.DocumentNumber,
		DocumentDate:   date,
		Entries:        append([]generic.LedgerEntry{summary}, details...),
	}
}

// =============================================================================
// EXPORT LAYOUT
// =============================================================================

// ledgerColumns is the booking import header. The unnamed column is part of
// the import format.
var ledgerColumns = []string{
	"Buchungsdatum", "Belegdatum", "Belegnr.", "Gegenkonto", "Steuerschlüssel",
	"Kontonr.", "Beschreibung", "", "Betrag", "KostenstelleCode",
}

// LedgerTable renders the ledger in import column order.
func LedgerTable(l *generic.Ledger) *tabular.Table {
	t := tabular.New("invoice_booking_export", ledgerColumns...)
	t.Numeric = map[string]bool{"Betrag": true}
	for _, e := range l.Entries {
		t.Append(e.BookingDate, e.DocumentDate, e.DocumentNumber, e.OffsetAccount,
			e.TaxCode, e.Account, e.Description, "", formatAmount(e.Amount), e.CostCenterCode)
	}
	return t
}

// WriteLedgerCSV writes the import file: title line, ';'-separated table,
// decimal comma, two-decimal amounts.
func WriteLedgerCSV(path string, l *generic.Ledger, opts LedgerOptions, csvOpts tabular.CSVOptions) error {
	csvOpts.Preamble = []string{opts.Title}
	csvOpts.DecimalComma = true
	return tabular.WriteCSVFile(path, LedgerTable(l), csvOpts)
}

// MissingTable renders the gate report.
func MissingTable(ids []string) *tabular.Table {
	t := tabular.New("missing_costcenters", "License Number (standardized)")
	for _, id := range ids {
		t.Append(id)
	}
	return t
}

func formatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
