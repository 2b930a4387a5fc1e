package tabular

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/gradebook/internal/schema"
)

func TestParseDelimited_PicksDelimiterWithMostCells(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  rune
	}{
		{"comma", "name,code\nMath,M1\nPhysics,P1\n", ','},
		// Valid under both comma and semicolon; semicolon extracts more cells.
		{"semicolon beats comma", "nome;nota;disciplina\nAna;7,5;Math\nBia;8,0;Math\n", ';'},
		{"tab", "name\tcode\nMath\tM1\n", '\t'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Parse([]byte(tt.input), FormatDelimited)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tbl.Delimiter)
		})
	}
}

func TestParseDelimited_SemicolonKeepsDecimalComma(t *testing.T) {
	tbl, err := Parse([]byte("Matricula;Nota\n2024001;7,5\n"), FormatDelimited)
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"Matricula", "Nota"}, tbl.Labels)
	assert.Equal(t, "7,5", tbl.Rows[0].Text(schema.GradeValue))
	assert.Equal(t, "2024001", tbl.Rows[0].Text(schema.StudentID))
}

func TestParseDelimited_LineNumbers(t *testing.T) {
	input := "\xEF\xBB\xBFname,code\nMath,M1\n,\nPhysics,P1\n"
	tbl, err := Parse([]byte(input), FormatDelimited)
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "name", tbl.Labels[0], "BOM must be stripped from the first label")
	assert.Equal(t, 2, tbl.Rows[0].Line)
	assert.Equal(t, 4, tbl.Rows[1].Line, "blank rows still count toward line numbers")
}

func TestParseDelimited_QuotedAndShortRows(t *testing.T) {
	tbl, err := Parse([]byte("name,email,course\r\n\"Souza, Ana\",ana@x.com\r\n"), FormatDelimited)
	require.NoError(t, err)

	row := tbl.Rows[0]
	assert.Equal(t, "Souza, Ana", row.Text(schema.StudentName))
	assert.Equal(t, "", row.Text(schema.StudentCourse))
	_, ok := row.Get(schema.StudentCourse)
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"header only", "name,code\n"},
		{"blank lines", "\n\n  \n"},
		{"header only with BOM", "\xEF\xBB\xBFname\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), FormatDelimited)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %v", err)
		})
	}
}

func TestToUTF8(t *testing.T) {
	got := toUTF8([]byte("Jo\xe3o Concei\xe7\xe3o"))
	assert.Equal(t, "João Conceição", string(got))

	valid := []byte("João")
	assert.Equal(t, valid, toUTF8(valid))
}

func TestParseSpreadsheet_KeepsNumericCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Matricula", "Disciplina", "Nota", "Data"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"2024001", "MAT101", 7.5, 45292}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"2024002", "MAT101", "8", "2024-02-01"}))

	// A second sheet must be ignored.
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Other", "A1", "ignored"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	tbl, err := Parse(buf.Bytes(), FormatSpreadsheet)
	require.NoError(t, err)

	assert.Equal(t, []string{"Matricula", "Disciplina", "Nota", "Data"}, tbl.Labels)
	require.Len(t, tbl.Rows, 2)

	first := tbl.Rows[0]
	assert.Equal(t, 2, first.Line)
	date, ok := first.Get(schema.DateAssigned)
	require.True(t, ok)
	assert.True(t, date.Numeric)
	assert.Equal(t, 45292.0, date.Number)
	grade, _ := first.Get(schema.GradeValue)
	assert.True(t, grade.Numeric)
	assert.Equal(t, 7.5, grade.Number)
	id, _ := first.Get(schema.StudentID)
	assert.False(t, id.Numeric, "text cells stay text even when they look numeric")

	second := tbl.Rows[1]
	assert.Equal(t, 4, second.Line)
	text, _ := second.Get(schema.GradeValue)
	assert.False(t, text.Numeric)
	assert.Equal(t, "8", text.String())
}

func TestParseSpreadsheet_RejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not a workbook"), FormatSpreadsheet)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)

	_, err = Parse(append([]byte{}, oleMagic...), FormatSpreadsheet)
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Msg, ".xls")
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		want Format
		err  bool
	}{
		{"csv", "notas.CSV", nil, FormatDelimited, false},
		{"xlsx", "alunos.xlsx", nil, FormatSpreadsheet, false},
		{"xls", "old.xls", nil, FormatSpreadsheet, false},
		{"zip magic", "upload", []byte("PK\x03\x04rest"), FormatSpreadsheet, false},
		{"unknown", "photo.png", []byte("\x89PNG"), FormatUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.file, tt.data)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.err, err != nil)
		})
	}
}

func TestRawRowValues(t *testing.T) {
	row := RawRow{Line: 2, Cells: []Cell{
		{Label: "Nome", Text: " Ana "},
		{Label: "Nota", Number: 9, Numeric: true},
	}}
	assert.Equal(t, map[string]string{"Nome": "Ana", "Nota": "9"}, row.Values())
}
