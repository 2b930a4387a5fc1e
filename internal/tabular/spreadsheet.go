package tabular

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseSpreadsheet reads the first sheet of a workbook. Cells are read raw so
// an unformatted number such as a date serial stays numeric.
func parseSpreadsheet(data []byte) (*Table, error) {
	if bytes.HasPrefix(data, oleMagic) {
		return nil, &ParseError{Msg: "legacy .xls workbooks are not supported; save the file as .xlsx or .csv"}
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Msg: "could not open workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Msg: "workbook has no sheets"}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Msg: "could not read sheet " + strconv.Quote(sheet), Err: err}
	}
	if len(rows) < 2 {
		return nil, &ParseError{Msg: "file needs a header row and at least one data row"}
	}

	// GetRows keeps blank rows in place, so row index i is sheet row i+1.
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}

	numeric := func(rec, col int) (float64, bool) {
		if col >= len(rows[rec]) {
			return 0, false
		}
		raw := strings.TrimSpace(rows[rec][col])
		if raw == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		axis, err := excelize.CoordinatesToCellName(col+1, rec+1)
		if err != nil {
			return 0, false
		}
		typ, err := f.GetCellType(sheet, axis)
		if err != nil {
			return 0, false
		}
		switch typ {
		case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
			return n, true
		}
		return 0, false
	}

	return buildTable(rows, lines, numeric)
}
