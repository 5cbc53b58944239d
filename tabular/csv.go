package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVOptions describes a delimited file.
type CSVOptions struct {
	Separator rune   // default ';'
	Encoding  string // latin1 | cp1252 | utf-8; default latin1

	// Preamble lines are written verbatim before the header.
	Preamble []string
	// Decimal comma replaces '.' in cells of Numeric columns on write.
	DecimalComma bool
}

// DefaultCSVOptions matches the vendor exports: latin1, ';'.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Separator: ';', Encoding: "latin1"}
}

func (o CSVOptions) separator() rune {
	if o.Separator == 0 {
		return ';'
	}
	return o.Separator
}

// Validate rejects encodings the reader and writer can't handle.
func (o CSVOptions) Validate() error {
	_, err := lookupEncoding(o.Encoding)
	return err
}

// lookupEncoding maps an encoding name to a codec. nil means utf-8.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "cp1252", "windows-1252":
		return charmap.Windows1252, nil
	case "utf-8", "utf8":
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, opts CSVOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, filepath.Base(path), opts)
}

// ReadCSV decodes r and parses it. The first record is the header; repeated
// header names are suffixed .1, .2; ragged rows are padded or truncated.
func ReadCSV(r io.Reader, source string, opts CSVOptions) (*Table, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	var decoded io.Reader
	if enc != nil {
		decoded = transform.NewReader(r, enc.NewDecoder())
	} else {
		decoded = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}

	reader := csv.NewReader(decoded)
	reader.Comma = opts.separator()
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file, no header row found", source)
		}
		return nil, fmt.Errorf("%s: read header row: %w", source, err)
	}

	t := New(source, dedupeColumns(trimAll(header))...)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		// Rows of empty cells are kept: callers cut header areas by position.
		t.Append(row...)
	}
	return t, nil
}

// WriteCSVFile writes t to path, creating parent directories.
func WriteCSVFile(path string, t *Table, opts CSVOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, t, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV encodes t. Characters the target encoding cannot represent are
// replaced rather than failing the export.
func WriteCSV(w io.Writer, t *Table, opts CSVOptions) error {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return err
	}
	out := w
	var closer io.Closer
	if enc != nil {
		tw := transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder()))
		out, closer = tw, tw
	}

	for _, line := range opts.Preamble {
		if _, err := io.WriteString(out, line+"\n"); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(out)
	cw.Comma = opts.separator()
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		cells := row
		if opts.DecimalComma {
			cells = make([]string, len(row))
			for i, v := range row {
				if t.Numeric[t.Columns[i]] {
					v = strings.Replace(v, ".", ",", 1)
				}
				cells[i] = v
			}
		}
		if err := cw.Write(cells); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}

// trimSpace trims whitespace and stray BOM runes left in header cells.
func trimSpace(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "\ufeff") {
		_, size := utf8.DecodeRuneInString(s)
		s = strings.TrimSpace(s[size:])
	}
	return s
}
