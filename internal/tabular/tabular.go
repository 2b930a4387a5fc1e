// Package tabular turns uploaded CSV and spreadsheet files into header-keyed
// rows. It knows nothing about courses or grades; the schema package decides
// what the columns mean.
package tabular

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/gradebook/internal/schema"
)

// Format is the file encoding of an upload.
type Format int

const (
	FormatUnknown Format = iota
	// FormatDelimited is delimiter-separated text (comma, semicolon or tab).
	FormatDelimited
	// FormatSpreadsheet is an OOXML workbook.
	FormatSpreadsheet
)

func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatSpreadsheet:
		return "spreadsheet"
	default:
		return "unknown"
	}
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat picks the parser for a file from its extension, falling back
// to the workbook magic bytes when the extension is missing or unknown.
func DetectFormat(fileName string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".tsv", ".txt":
		return FormatDelimited, nil
	case ".xlsx", ".xlsm", ".xls":
		return FormatSpreadsheet, nil
	}
	if bytes.HasPrefix(data, zipMagic) || bytes.HasPrefix(data, oleMagic) {
		return FormatSpreadsheet, nil
	}
	return FormatUnknown, &ParseError{Msg: fmt.Sprintf("unsupported file type %q (use .csv, .xlsx or .xls)", filepath.Ext(fileName))}
}

// ParseError reports a file that cannot be read or holds no data.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse error")
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Cell is one raw value. Spreadsheet numeric cells keep their number so
// serial dates stay distinguishable from text.
type Cell struct {
	Label   string  `json:"label"`
	Text    string  `json:"text"`
	Number  float64 `json:"number,omitempty"`
	Numeric bool    `json:"numeric,omitempty"`
}

// Empty reports whether the cell carries no value.
func (c Cell) Empty() bool {
	return !c.Numeric && strings.TrimSpace(c.Text) == ""
}

// String returns the cell as text; numbers use the shortest exact form.
func (c Cell) String() string {
	if c.Numeric {
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	}
	return strings.TrimSpace(c.Text)
}

// RawRow is one data row keyed by header label. Line is the 1-based line
// in the source file, counting the header.
type RawRow struct {
	Line  int    `json:"line"`
	Cells []Cell `json:"cells"`
}

// Get returns the first non-empty cell whose header is a spelling of f.
func (r RawRow) Get(f schema.Field) (Cell, bool) {
	for _, c := range r.Cells {
		if !c.Empty() && f.Matches(c.Label) {
			return c, true
		}
	}
	return Cell{}, false
}

// Text is Get reduced to trimmed text, "" when absent.
func (r RawRow) Text(f schema.Field) string {
	c, ok := r.Get(f)
	if !ok {
		return ""
	}
	return c.String()
}

// Values returns the row as label -> text, for previews.
func (r RawRow) Values() map[string]string {
	m := make(map[string]string, len(r.Cells))
	for _, c := range r.Cells {
		if _, dup := m[c.Label]; dup && c.Empty() {
			continue
		}
		m[c.Label] = c.String()
	}
	return m
}

// Table is a parsed file: its header labels and data rows.
type Table struct {
	Labels []string `json:"labels"`
	Rows   []RawRow `json:"rows"`
	// Delimiter is the separator chosen for delimited input.
	Delimiter rune `json:"-"`
}

// Parse decodes data in the given format.
func Parse(data []byte, format Format) (*Table, error) {
	switch format {
	case FormatDelimited:
		return parseDelimited(data)
	case FormatSpreadsheet:
		return parseSpreadsheet(data)
	default:
		return nil, &ParseError{Msg: "unknown file format"}
	}
}

// buildTable keys records by the header record. lines holds each record's
// source line.
func buildTable(records [][]string, lines []int, numeric func(rec, col int) (float64, bool)) (*Table, error) {
	header := -1
	for i, rec := range records {
		if !isEmptyRecord(rec) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, &ParseError{Msg: "file contains no data"}
	}

	labels := make([]string, len(records[header]))
	for i, l := range records[header] {
		l = strings.TrimSpace(strings.Trim(l, "\"\r\uFEFF"))
		if l == "" {
			l = "column_" + strconv.Itoa(i+1)
		}
		labels[i] = l
	}

	t := &Table{Labels: labels}
	for i := header + 1; i < len(records); i++ {
		rec := records[i]
		if isEmptyRecord(rec) {
			continue
		}
		row := RawRow{Line: lines[i], Cells: make([]Cell, 0, len(labels))}
		for col, label := range labels {
			var c Cell
			c.Label = label
			if col < len(rec) {
				c.Text = strings.TrimSpace(strings.Trim(rec[col], "\"\r"))
			}
			if numeric != nil {
				if n, ok := numeric(i, col); ok {
					c.Number, c.Numeric = n, true
				}
			}
			row.Cells = append(row.Cells, c)
		}
		t.Rows = append(t.Rows, row)
	}

	if len(t.Rows) == 0 {
		return nil, &ParseError{Line: lines[header], Msg: "file needs a header row and at least one data row"}
	}
	return t, nil
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(strings.Trim(v, "\"\r\uFEFF")) != "" {
			return false
		}
	}
	return true
}
