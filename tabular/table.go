/*
Package tabular reads and writes the spreadsheets and delimited files the
engine exchanges with fleet management, HR and the fuel card vendor.

PURPOSE:
  The core packages work on typed records. This package is the boundary:
  it loads a sheet or CSV into a Table of strings, checks the schema, and
  writes result tables back out.

SCHEMA CHECKS:
  A source missing a required column is fatal. The error lists both the
  missing columns and the columns that were present, so the person who
  exported the file can see what went wrong.

FORMATS:
  - xlsx: first sheet, first row is the header (excelize)
  - csv:  configurable separator, latin1 or utf-8 (x/text)

SEE ALSO:
  - fleet/table.go, invoice/feed.go: record adapters
*/
package tabular

import (
	"fmt"
	"strings"

	"github.com/warp/fleet-ledger/generic"
)

// Table is a header plus string rows. Every row has len(Columns) cells.
type Table struct {
	Source  string
	Columns []string
	Rows    [][]string

	// Numeric marks columns whose numeric-looking cells are written as
	// numbers to xlsx.
	Numeric map[string]bool
}

// New returns an empty table.
func New(source string, columns ...string) *Table {
	return &Table{Source: source, Columns: columns}
}

// Append adds a row, padding or truncating it to the header width.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, fit(cells, len(t.Columns)))
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name.
func (t *Table) Index(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Has reports whether the table has column name.
func (t *Table) Has(name string) bool {
	_, ok := t.Index(name)
	return ok
}

// Value returns the cell at row/column, or "" when the column is absent.
func (t *Table) Value(row int, column string) string {
	i, ok := t.Index(column)
	if !ok || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][i]
}

// RequireColumns fails with *generic.MissingColumnsError when any column is absent.
func (t *Table) RequireColumns(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	available := make([]string, len(t.Columns))
	copy(available, t.Columns)
	return &generic.MissingColumnsError{
		Source:    t.Source,
		Missing:   missing,
		Available: available,
	}
}

// FindColumn returns exact when present, else the first column whose name
// contains the contains text case-insensitively.
func (t *Table) FindColumn(exact, contains string) (string, error) {
	if exact != "" && t.Has(exact) {
		return exact, nil
	}
	needle := strings.ToLower(contains)
	for _, c := range t.Columns {
		if needle != "" && strings.Contains(strings.ToLower(c), needle) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: no column containing %q in [%s]",
		generic.ErrColumnNotFound, contains, strings.Join(t.Columns, ", "))
}

// Slice returns a table with the rows [from, len).
func (t *Table) Slice(from int) *Table {
	if from > len(t.Rows) {
		from = len(t.Rows)
	}
	return &Table{Source: t.Source, Columns: t.Columns, Rows: t.Rows[from:], Numeric: t.Numeric}
}

// dedupeColumns renames repeated headers X, X -> X, X.1 the way spreadsheet
// tools export them.
func dedupeColumns(columns []string) []string {
	seen := make(map[string]int, len(columns))
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c] = true
	}
	out := make([]string, len(columns))
	for i, c := range columns {
		n, dup := seen[c]
		if !dup {
			seen[c] = 0
			out[i] = c
			continue
		}
		for {
			n++
			candidate := fmt.Sprintf("%s.%d", c, n)
			if !taken[candidate] {
				out[i] = candidate
				taken[candidate] = true
				break
			}
		}
		seen[c] = n
	}
	return out
}

func fit(cells []string, width int) []string {
	row := make([]string, width)
	copy(row, cells)
	return row
}
