package invoice_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/invoice"
	"github.com/warp/fleet-ledger/tabular"
	"golang.org/x/text/encoding/charmap"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var march31 = invoice.Header{
	Date:           time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
	HasDate:        true,
	DocumentNumber: "25/123456789",
}

func mappingRow(id, cc string) generic.AssetMapping {
	return generic.AssetMapping{AssetID: id, CostCenter: generic.ParseCostCenter(cc)}
}

func line(plate, gross, vat string) invoice.Line {
	return invoice.NewLine(plate, gross, vat, invoice.DefaultLedgerOptions().StandardVATMarker)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// ALLOCATION
// =============================================================================

func TestAllocate_SingleLine(t *testing.T) {
	// GIVEN: a mapped plate and one invoice line in another spelling
	mapping := []generic.AssetMapping{mappingRow("AB123", "100")}
	lines := []invoice.Line{line("ab-123", "12,50", "19%")}

	// WHEN
	ledger, err := invoice.Allocate(lines, mapping, march31, invoice.DefaultLedgerOptions())
	require.NoError(t, err)

	// THEN: summary plus one detail, balanced
	require.Len(t, ledger.Entries, 2)
	summary := ledger.Summary()
	assert.Equal(t, generic.EntrySummary, summary.Kind)
	assert.True(t, summary.Amount.Decimal.Equal(dec("-12.50")))
	assert.Equal(t, "80071244", summary.OffsetAccount)
	assert.Equal(t, "Fleet invoice 31.03.2025", summary.Description)
	assert.Empty(t, summary.TaxCode)
	assert.Empty(t, summary.Account)

	detail := ledger.Details()[0]
	assert.Equal(t, generic.EntryDetail, detail.Kind)
	assert.Equal(t, "31.03.2025", detail.BookingDate)
	assert.Equal(t, "25/123456789", detail.DocumentNumber)
	assert.Equal(t, "9", detail.TaxCode)
	assert.Equal(t, "4530", detail.Account)
	assert.Equal(t, "AB123", detail.Description)
	assert.Equal(t, "100", detail.CostCenterCode)
	assert.True(t, detail.Amount.Decimal.Equal(dec("12.50")))
	assert.True(t, summary.Amount.Decimal.Equal(ledger.DetailTotal().Neg()))
}

func TestAllocate_GateBlocksWholeLedger(t *testing.T) {
	// GIVEN: one mapped plate and two plates the mapping doesn't know
	mapping := []generic.AssetMapping{mappingRow("AB123", "100")}
	lines := []invoice.Line{
		line("AB-123", "10,00", "19%"),
		line("zz 9", "5,00", "19%"),
		line("YY-1", "5,00", "7%"),
		line("ZZ9", "1,00", "19%"),
	}

	// WHEN
	ledger, err := invoice.Allocate(lines, mapping, march31, invoice.DefaultLedgerOptions())

	// THEN: no ledger at all, distinct ids sorted
	assert.Nil(t, ledger)
	var missing *generic.MissingAllocationError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"YY1", "ZZ9"}, missing.AssetIDs)
	assert.ErrorIs(t, err, generic.ErrMissingAllocation)
	assert.True(t, generic.IsClientError(err))
}

func TestAllocate_NonNumericCostCenterIsUnallocated(t *testing.T) {
	// GIVEN: the first mapping row for AB1 is non-numeric; a later one is numeric
	mapping := []generic.AssetMapping{
		mappingRow("AB-1", "Vertrieb"),
		mappingRow("AB1", "100"),
	}

	// WHEN
	_, err := invoice.Allocate([]invoice.Line{line("AB1", "1,00", "19%")}, mapping, march31, invoice.DefaultLedgerOptions())

	// THEN: the first row wins, so AB1 has no numeric cost center
	var missing *generic.MissingAllocationError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"AB1"}, missing.AssetIDs)
}

func TestAllocate_DropsLinesWithoutPlate(t *testing.T) {
	mapping := []generic.AssetMapping{mappingRow("AB1", "100")}
	lines := []invoice.Line{
		line("", "99,00", "19%"),
		line("nan", "99,00", "19%"),
		line("AB1", "1,00", "19%"),
	}

	ledger, err := invoice.Allocate(lines, mapping, march31, invoice.DefaultLedgerOptions())
	require.NoError(t, err)
	require.Len(t, ledger.Details(), 1)
	assert.True(t, ledger.Summary().Amount.Decimal.Equal(dec("-1")))
}

func TestAllocate_TaxCodesRoundingAndUnknownAmounts(t *testing.T) {
	mapping := []generic.AssetMapping{mappingRow("AB1", "100"), mappingRow("CD2", "27100.0")}
	lines := []invoice.Line{
		line("AB1", "1.234,565", " 19% "),
		line("CD2", "10,00", "7%"),
		line("CD2", "n/a", "19%"),
	}

	ledger, err := invoice.Allocate(lines, mapping, march31, invoice.DefaultLedgerOptions())
	require.NoError(t, err)

	details := ledger.Details()
	require.Len(t, details, 3)
	assert.Equal(t, "9", details[0].TaxCode)
	assert.Equal(t, "50", details[1].TaxCode)
	assert.Equal(t, "27100", details[1].CostCenterCode)

	// Banker's rounding to cents
	assert.True(t, details[0].Amount.Decimal.Equal(dec("1234.56")))
	// Unknown amounts stay unknown and don't count toward the total
	assert.False(t, details[2].Amount.Valid)
	assert.True(t, ledger.Summary().Amount.Decimal.Equal(dec("-1244.56")))
}

func TestAllocate_EmptyInvoice(t *testing.T) {
	ledger, err := invoice.Allocate(nil, nil, march31, invoice.DefaultLedgerOptions())
	require.NoError(t, err)
	require.Len(t, ledger.Entries, 1)
	assert.True(t, ledger.Summary().Amount.Decimal.IsZero())
}

// =============================================================================
// FEED
// =============================================================================

func vendorTable() *tabular.Table {
	t := tabular.New("dkv.csv",
		"Rechnungsnummer", "Rechnungsdatum", "Kennzeichen", "Wert incl. USt", "Wert incl. USt.1", "USt")
	t.Append("RE 1234567890123", "31.03.2025", "", "", "", "")
	t.Append("", "", "", "", "", "")
	t.Append("", "", "", "", "", "")
	t.Append("", "", "", "", "", "")
	t.Append("", "", "AB-123", "10,00", "11,90", "19%")
	t.Append("", "", "CD 456", "5,00", "5,35", "7%")
	return t
}

func TestFeedFromTable(t *testing.T) {
	lines, header, err := invoice.FeedFromTable(vendorTable(), invoice.DefaultFeedColumns(), invoice.DefaultLedgerOptions())
	require.NoError(t, err)

	assert.True(t, header.HasDate)
	assert.Equal(t, "31.03.2025", header.DateText("02.01.2006"))
	assert.Equal(t, "25/123456789", header.DocumentNumber)

	require.Len(t, lines, 2)
	assert.Equal(t, "AB123", lines[0].AssetID)
	assert.True(t, lines[0].Gross.Decimal.Equal(dec("11.90")), "gross comes from the second amount column")
	assert.True(t, lines[0].StandardVAT)
	assert.Equal(t, "CD456", lines[1].AssetID)
	assert.False(t, lines[1].StandardVAT)
}

func TestFeedFromCSV_HeaderAreaOfEmptyCells(t *testing.T) {
	// GIVEN: a vendor export whose header area is padded with empty cells
	raw := "Rechnungsnummer;Rechnungsdatum;Kennzeichen;Wert incl. USt;Wert incl. USt;USt\n" +
		"RE 1234567890123;31.03.2025;;;;\n" +
		";;;;;\n;;;;;\n;;;;;\n" +
		";;AB-123;10,00;11,90;19%\n" +
		";;CD 456;5,00;5,35;7%\n"
	tbl, err := tabular.ReadCSV(strings.NewReader(raw), "dkv.csv", tabular.CSVOptions{Separator: ';', Encoding: "utf-8"})
	require.NoError(t, err)

	// WHEN
	lines, header, err := invoice.FeedFromTable(tbl, invoice.DefaultFeedColumns(), invoice.DefaultLedgerOptions())
	require.NoError(t, err)

	// THEN: both detail lines survive the header cut
	require.Len(t, lines, 2)
	assert.Equal(t, "AB123", lines[0].AssetID)
	assert.Equal(t, "CD456", lines[1].AssetID)
	assert.Equal(t, "25/123456789", header.DocumentNumber)

	// AND: the unmapped plate reaches the gate instead of vanishing
	_, err = invoice.Allocate(lines, []generic.AssetMapping{mappingRow("AB123", "100")}, header, invoice.DefaultLedgerOptions())
	var missing *generic.MissingAllocationError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"CD456"}, missing.AssetIDs)
}

func TestFeedFromTable_InfersColumnsByHint(t *testing.T) {
	tbl := tabular.New("other.csv", "Datum", "KFZ-Kennzeichen", "Bruttowert", "USt-Satz")
	tbl.Append("Kopf", "01.02.2025", "", "")
	for i := 0; i < 3; i++ {
		tbl.Append("", "", "", "")
	}
	tbl.Append("", "AB-1", "2,00", "19%")

	lines, header, err := invoice.FeedFromTable(tbl, invoice.DefaultFeedColumns(), invoice.DefaultLedgerOptions())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "AB1", lines[0].AssetID)
	assert.Empty(t, header.DocumentNumber, "no document column")
	assert.Equal(t, time.February, header.Date.Month())
}

func TestFeedFromTable_MissingColumn(t *testing.T) {
	tbl := tabular.New("broken.csv", "Datum", "Betrag")

	_, _, err := invoice.FeedFromTable(tbl, invoice.DefaultFeedColumns(), invoice.DefaultLedgerOptions())
	assert.ErrorIs(t, err, generic.ErrColumnNotFound)
}

func TestDocumentNumber(t *testing.T) {
	date := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "24/123456789", invoice.DocumentNumber("RE-123456789012", date, true, 9))
	assert.Equal(t, "24/42", invoice.DocumentNumber("Nr. 42", date, true, 9))
	assert.Equal(t, "42", invoice.DocumentNumber("42", time.Time{}, false, 9))
	assert.Empty(t, invoice.DocumentNumber("keine", date, true, 9))

	// Digits outside ASCII count one each
	assert.Equal(t, "24/١٢", invoice.DocumentNumber("Nr. ١٢٣", date, true, 2))
	assert.Equal(t, "٤٥6", invoice.DocumentNumber("٤٥67", time.Time{}, false, 3))
}

func TestParseDayFirst(t *testing.T) {
	for _, in := range []string{"05.03.2025", "5.3.2025", "05.03.25", "05/03/2025", "2025-03-05"} {
		d, ok := invoice.ParseDayFirst(in)
		require.True(t, ok, in)
		assert.Equal(t, time.March, d.Month(), in)
		assert.Equal(t, 5, d.Day(), in)
	}
	_, ok := invoice.ParseDayFirst("nan")
	assert.False(t, ok)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestWriteLedgerCSV_Layout(t *testing.T) {
	// GIVEN
	mapping := []generic.AssetMapping{mappingRow("AB123", "100")}
	ledger, err := invoice.Allocate([]invoice.Line{line("AB-123", "12,50", "19%")}, mapping, march31, invoice.DefaultLedgerOptions())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "out", "booking.csv")

	// WHEN
	err = invoice.WriteLedgerCSV(path, ledger, invoice.DefaultLedgerOptions(), tabular.DefaultCSVOptions())
	require.NoError(t, err)

	// THEN: latin1, title line, ';' and decimal comma
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Steuerschl\xfcssel", "latin1 encoded")

	text, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(text), "\n"), "\n")
	assert.Equal(t, []string{
		"BearbeitenFibuBuch.BlattDKV",
		"Buchungsdatum;Belegdatum;Belegnr.;Gegenkonto;Steuerschlüssel;Kontonr.;Beschreibung;;Betrag;KostenstelleCode",
		"31.03.2025;31.03.2025;25/123456789;80071244;;;Fleet invoice 31.03.2025;;-12,50;",
		"31.03.2025;31.03.2025;25/123456789;80071244;9;4530;AB123;;12,50;100",
	}, lines)
}

func TestMissingTable(t *testing.T) {
	tbl := invoice.MissingTable([]string{"YY1", "ZZ9"})
	assert.Equal(t, []string{"License Number (standardized)"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())
}
