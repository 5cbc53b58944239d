package invoice

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/tabular"
)

// FeedColumns describes the vendor detail export. Each column is looked up
// by exact name first, then by the first header containing the hint.
type FeedColumns struct {
	AssetID        string `yaml:"asset_id"`
	AssetIDHint    string `yaml:"asset_id_hint"`
	Gross          string `yaml:"gross"`
	GrossHint      string `yaml:"gross_hint"`
	VAT            string `yaml:"vat"`
	VATHint        string `yaml:"vat_hint"`
	DocumentHint   string `yaml:"document_hint"`
	HeaderRows     int    `yaml:"header_rows"`
	DocumentDigits int    `yaml:"document_digits"`
}

// DefaultFeedColumns matches the fuel card vendor's detail CSV. The gross
// amount is the second "Wert incl. USt" column.
func DefaultFeedColumns() FeedColumns {
	return FeedColumns{
		AssetID:        "Kennzeichen",
		AssetIDHint:    "kennzeichen",
		Gross:          "Wert incl. USt.1",
		GrossHint:      "wert",
		VAT:            "USt",
		VATHint:        "ust",
		DocumentHint:   "rechnung",
		HeaderRows:     4,
		DocumentDigits: 9,
	}
}

// FeedFromTable splits a vendor export into header metadata and lines.
// The first HeaderRows data rows are the invoice header area; detail lines
// follow. Missing detail columns are fatal.
func FeedFromTable(t *tabular.Table, c FeedColumns, opts LedgerOptions) ([]Line, Header, error) {
	detail := t.Slice(c.HeaderRows)

	assetCol, err := detail.FindColumn(c.AssetID, c.AssetIDHint)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: asset id column: %w", t.Source, err)
	}
	grossCol, err := detail.FindColumn(c.Gross, c.GrossHint)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: gross amount column: %w", t.Source, err)
	}
	vatCol, err := detail.FindColumn(c.VAT, c.VATHint)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: vat column: %w", t.Source, err)
	}

	lines := make([]Line, detail.Len())
	for i := range detail.Rows {
		lines[i] = NewLine(
			detail.Value(i, assetCol),
			detail.Value(i, grossCol),
			detail.Value(i, vatCol),
			opts.StandardVATMarker,
		)
	}
	return lines, HeaderFromTable(t, c), nil
}

// HeaderFromTable derives the invoice date and document number.
//
//   - date: second cell of the first data row, day-first
//   - document number: digits of the first non-empty value in the first
//     column whose name contains DocumentHint, cut to DocumentDigits and
//     prefixed "YY/" when the date is known
//
// Either value is left empty when it can't be derived.
func HeaderFromTable(t *tabular.Table, c FeedColumns) Header {
	var h Header
	if t.Len() > 0 && len(t.Columns) > 1 {
		h.Date, h.HasDate = ParseDayFirst(t.Rows[0][1])
	}

	col, err := t.FindColumn("", c.DocumentHint)
	if err != nil {
		return h
	}
	for i := range t.Rows {
		raw, ok := generic.CleanText(t.Value(i, col))
		if !ok {
			continue
		}
		h.DocumentNumber = DocumentNumber(raw, h.Date, h.HasDate, c.DocumentDigits)
		break
	}
	return h
}

// DocumentNumber keeps the first maxDigits digits of source and prefixes
// the two-digit year when known: ("RE 123456789012", 2025-03-31) -> "25/123456789".
func DocumentNumber(source string, date time.Time, hasDate bool, maxDigits int) string {
	var b strings.Builder
	n := 0
	for _, r := range source {
		if maxDigits > 0 && n == maxDigits {
			break
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
			n++
		}
	}
	base := b.String()
	if hasDate && base != "" {
		return fmt.Sprintf("%02d/%s", date.Year()%100, base)
	}
	return base
}

// dayFirstLayouts are tried in order.
var dayFirstLayouts = []string{
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDayFirst parses a date written day before month.
func ParseDayFirst(raw string) (time.Time, bool) {
	s, ok := generic.CleanText(raw)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
