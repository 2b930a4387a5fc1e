package core

// normalize.go coerces raw cells into typed values. Numeric fields never fail
// a row: unparseable input falls back to a per-field default. Only required
// text fields are checked, by the validator.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/JonMunkholm/gradebook/internal/tabular"
)

// Spreadsheet serial dates count days from 1899-12-30, which absorbs the
// 1900 leap-year bug of the original spreadsheet format.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const (
	minSerial = 1
	// 9999-12-31
	maxSerial = 2958465
)

// Defaults for numeric fields left blank or unparseable.
const (
	DefaultGrade          = 0.0
	DefaultMaxGrade       = 10.0
	DefaultTotalSemesters = 8
)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future go to the previous
// century.
var TwoDigitYearPivot = 20

var (
	isoDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dayFirst    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	nonDigits   = regexp.MustCompile(`\D+`)
	isoDateTime = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[T ]`)

	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006", "2 January 2006",
		"20060102",
	}
)

// Normalizer coerces cells. Now supplies the fallback date and defaults to
// time.Now.
type Normalizer struct {
	Now func() time.Time
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n Normalizer) today() string { return n.now().Format(time.DateOnly) }

func (n Normalizer) year() int { return n.now().Year() }

// Text trims the cell. An empty result is left for the validator to reject.
func (Normalizer) Text(c tabular.Cell) string {
	return c.String()
}

// OptionalText trims the cell and returns nil when nothing is left.
func (Normalizer) OptionalText(c tabular.Cell) *string {
	s := c.String()
	if s == "" {
		return nil
	}
	return &s
}

// Decimal parses a number written with either decimal separator. Only the
// first comma is read as the separator. Blank or unparseable input yields def.
func (Normalizer) Decimal(c tabular.Cell, def float64) float64 {
	if c.Numeric {
		return c.Number
	}
	s := strings.TrimSpace(c.Text)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return def
	}
	return f
}

// OptionalDecimal is Decimal without a default: blank, zero or unparseable
// input yields nil.
func (n Normalizer) OptionalDecimal(c tabular.Cell) *float64 {
	f := n.Decimal(c, 0)
	if f == 0 {
		return nil
	}
	return &f
}

// Count reads the digits of a cell such as "8 semestres". Zero or no
// digits yields def.
func (Normalizer) Count(c tabular.Cell, def int) int {
	if c.Numeric {
		if v := int(c.Number); v > 0 {
			return v
		}
		return def
	}
	v, err := strconv.Atoi(nonDigits.ReplaceAllString(c.Text, ""))
	if err != nil || v == 0 {
		return def
	}
	return v
}

// Date returns an ISO date. It accepts valid YYYY-MM-DD unchanged, DD/MM/YYYY,
// spreadsheet serial numbers and a list of common layouts, and falls back
// to today.
func (n Normalizer) Date(c tabular.Cell) string {
	if c.Numeric {
		if d, ok := fromSerial(c.Number); ok {
			return d
		}
		return n.today()
	}

	s := strings.TrimSpace(c.Text)
	if s == "" {
		return n.today()
	}
	if isoDate.MatchString(s) && validISO(s) {
		return s
	}
	if m := isoDateTime.FindStringSubmatch(s); m != nil && validISO(m[1]) {
		return m[1]
	}
	if m := dayFirst.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() == day && int(t.Month()) == month {
			return t.Format(time.DateOnly)
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if d, ok := fromSerial(f); ok {
			return d
		}
	}
	if t, ok := parseLayouts(s); ok {
		return t.Format(time.DateOnly)
	}
	return n.today()
}

func validISO(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func fromSerial(serial float64) (string, bool) {
	if serial < minSerial || serial > maxSerial {
		return "", false
	}
	return serialEpoch.AddDate(0, 0, int(serial)).Format(time.DateOnly), true
}

func parseLayouts(s string) (time.Time, bool) {
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// Capitalize upper-cases the first letter and lower-cases the rest, so
// "FEMININO" and "feminino" are stored alike. Blank input yields nil.
func (Normalizer) Capitalize(c tabular.Cell) *string {
	s := c.String()
	if s == "" {
		return nil
	}
	r, size := utf8.DecodeRuneInString(s)
	out := string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
	return &out
}
