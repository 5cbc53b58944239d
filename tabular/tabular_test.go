package tabular_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/tabular"
)

// =============================================================================
// TABLE
// =============================================================================

func TestTable_AppendFitsHeaderWidth(t *testing.T) {
	tbl := tabular.New("t", "a", "b", "c")
	tbl.Append("1")
	tbl.Append("1", "2", "3", "4")

	assert.Equal(t, []string{"1", "", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, tbl.Rows[1])
	assert.Equal(t, "", tbl.Value(0, "missing"))
	assert.Equal(t, "", tbl.Value(5, "a"))
}

func TestTable_RequireColumns(t *testing.T) {
	tbl := tabular.New("hr.xlsx", "Vorname", "Nachname")

	require.NoError(t, tbl.RequireColumns("Vorname"))

	err := tbl.RequireColumns("Vorname", "Kostenstelle")
	var missing *generic.MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"Kostenstelle"}, missing.Missing)
	assert.ErrorIs(t, err, generic.ErrMissingColumns)
	assert.Contains(t, err.Error(), "available columns: [Vorname, Nachname]")
}

func TestTable_FindColumn(t *testing.T) {
	tbl := tabular.New("feed", "Rechnungs-Nr", "KFZ Kennzeichen", "Wert incl. USt", "Wert incl. USt.1")

	col, err := tbl.FindColumn("Wert incl. USt.1", "wert")
	require.NoError(t, err)
	assert.Equal(t, "Wert incl. USt.1", col)

	col, err = tbl.FindColumn("Kennzeichen", "kennzeichen")
	require.NoError(t, err)
	assert.Equal(t, "KFZ Kennzeichen", col)

	_, err = tbl.FindColumn("Menge", "menge")
	assert.ErrorIs(t, err, generic.ErrColumnNotFound)
}

func TestTable_Slice(t *testing.T) {
	tbl := tabular.New("t", "a")
	for _, v := range []string{"1", "2", "3"} {
		tbl.Append(v)
	}
	assert.Equal(t, 1, tbl.Slice(2).Len())
	assert.Equal(t, 0, tbl.Slice(10).Len())
	assert.Equal(t, 3, tbl.Len(), "slicing leaves the source alone")
}

// =============================================================================
// CSV
// =============================================================================

func TestReadCSV_Latin1AndDuplicateHeaders(t *testing.T) {
	// GIVEN: a latin1 file with a repeated header and a row of empty cells
	raw := []byte("Kennzeichen;Wert;Wert;Stra\xdfe\nAB-1;1,00;1,19;Hauptstra\xdfe\n;;;\nCD-2;2,00\n")

	// WHEN
	tbl, err := tabular.ReadCSV(bytes.NewReader(raw), "feed.csv", tabular.DefaultCSVOptions())
	require.NoError(t, err)

	// THEN
	assert.Equal(t, []string{"Kennzeichen", "Wert", "Wert.1", "Straße"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len(), "rows of empty cells keep their position")
	assert.Equal(t, "1,19", tbl.Value(0, "Wert.1"))
	assert.Equal(t, "Hauptstraße", tbl.Value(0, "Straße"))
	assert.Equal(t, []string{"", "", "", ""}, tbl.Rows[1])
	assert.Equal(t, "CD-2", tbl.Value(2, "Kennzeichen"))
	assert.Equal(t, "", tbl.Value(2, "Wert.1"), "ragged rows are padded")
}

func TestReadCSV_SkipsOnlyEmptyLines(t *testing.T) {
	raw := "A;B\n1;2\n\n3;4\n"

	tbl, err := tabular.ReadCSV(strings.NewReader(raw), "x.csv", tabular.CSVOptions{Separator: ';', Encoding: "utf-8"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, tbl.Rows)
}

func TestReadCSV_UTF8WithBOM(t *testing.T) {
	raw := "\ufeffName;Kostenstelle\nMüller;100\n"
	opts := tabular.CSVOptions{Separator: ';', Encoding: "utf-8"}

	tbl, err := tabular.ReadCSV(strings.NewReader(raw), "hr.csv", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Kostenstelle"}, tbl.Columns)
	assert.Equal(t, "Müller", tbl.Value(0, "Name"))
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := tabular.ReadCSV(strings.NewReader(""), "empty.csv", tabular.DefaultCSVOptions())
	assert.Error(t, err)
}

func TestReadCSV_UnknownEncoding(t *testing.T) {
	_, err := tabular.ReadCSV(strings.NewReader("a\n"), "x.csv", tabular.CSVOptions{Encoding: "ebcdic"})
	assert.Error(t, err)
}

func TestWriteCSV_DecimalCommaOnlyInNumericColumns(t *testing.T) {
	tbl := tabular.New("out", "Beschreibung", "Betrag")
	tbl.Numeric = map[string]bool{"Betrag": true}
	tbl.Append("v1.2", "12.50")

	var buf bytes.Buffer
	opts := tabular.CSVOptions{Separator: ';', Encoding: "utf-8", Preamble: []string{"TITLE"}, DecimalComma: true}
	require.NoError(t, tabular.WriteCSV(&buf, tbl, opts))

	assert.Equal(t, "TITLE\nBeschreibung;Betrag\nv1.2;12,50\n", buf.String())
}

func TestCSV_RoundTripFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hr.csv")
	tbl := tabular.New("hr", "Vorname", "Nachname")
	tbl.Append("Jürgen", "Groß")

	require.NoError(t, tabular.WriteCSVFile(path, tbl, tabular.DefaultCSVOptions()))
	back, err := tabular.ReadCSVFile(path, tabular.DefaultCSVOptions())
	require.NoError(t, err)

	assert.Equal(t, "hr.csv", back.Source)
	assert.Equal(t, tbl.Columns, back.Columns)
	assert.Equal(t, tbl.Rows, back.Rows)
}

// =============================================================================
// XLSX
// =============================================================================

func TestXLSX_RoundTrip(t *testing.T) {
	// GIVEN: a table with a numeric column and a trailing empty cell
	path := filepath.Join(t.TempDir(), "out", "mapping.xlsx")
	tbl := tabular.New("mapping", "License Number", "Cost center", "FullName")
	tbl.Numeric = map[string]bool{"Cost center": true}
	tbl.Append("AB1", "27100", "Anna Muster")
	tbl.Append("CD2", "Vertrieb", "")

	// WHEN
	require.NoError(t, tabular.WriteXLSX(path, tbl))
	back, err := tabular.ReadXLSX(path)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, "mapping.xlsx", back.Source)
	assert.Equal(t, tbl.Columns, back.Columns)
	assert.Equal(t, tbl.Rows, back.Rows)
}
