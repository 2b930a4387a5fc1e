package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Delimiters tried for delimited text, in tie-break order.
var Delimiters = []rune{',', ';', '\t'}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type delimitedParse struct {
	delim   rune
	records [][]string
	lines   []int
	cells   int
}

// parseDelimited parses data under every candidate delimiter and keeps the
// reading that yields the most non-empty cells. Ties keep the earlier
// candidate.
func parseDelimited(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(toUTF8(data), utf8BOM)

	if countLines(data) < 2 {
		return nil, &ParseError{Msg: "file needs a header row and at least one data row"}
	}

	var best *delimitedParse
	var lastErr error
	for _, d := range Delimiters {
		p, err := readDelimited(data, d)
		if err != nil {
			lastErr = err
			continue
		}
		if best == nil || p.cells > best.cells {
			best = p
		}
	}
	if best == nil {
		return nil, &ParseError{Msg: "could not read delimited text", Err: lastErr}
	}
	if best.cells == 0 {
		return nil, &ParseError{Msg: "file contains no data"}
	}

	t, err := buildTable(best.records, best.lines, nil)
	if err != nil {
		return nil, err
	}
	t.Delimiter = best.delim
	return t, nil
}

func readDelimited(data []byte, delim rune) (*delimitedParse, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	if delim != '\t' {
		r.TrimLeadingSpace = true
	}

	p := &delimitedParse{delim: delim}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := r.FieldPos(0)
		p.records = append(p.records, rec)
		p.lines = append(p.lines, line)
		for _, v := range rec {
			if strings.TrimSpace(v) != "" {
				p.cells++
			}
		}
	}
	return p, nil
}

func countLines(data []byte) int {
	n := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

// toUTF8 returns data unchanged when it is valid UTF-8 and otherwise decodes
// it as Windows-1252, the encoding Excel uses for CSV exports in Brazil.
func toUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return bytes.ToValidUTF8(data, []byte("\uFFFD"))
	}
	return out
}
