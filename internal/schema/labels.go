// Package schema holds the column-label vocabulary for spreadsheet imports
// and the classifier that decides which record kind a batch represents.
package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind is the record kind a batch of rows represents.
type Kind string

const (
	KindCourse       Kind = "courses"
	KindStudent      Kind = "students"
	KindGrade        Kind = "grades"
	KindSubject      Kind = "subjects"
	KindUnrecognized Kind = "unrecognized"
)

// ParseKind accepts the plural kind names plus their singular forms.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "courses", "course", "cursos":
		return KindCourse, true
	case "students", "student", "alunos":
		return KindStudent, true
	case "grades", "grade", "notas":
		return KindGrade, true
	case "subjects", "subject", "disciplinas":
		return KindSubject, true
	}
	return "", false
}

// NormalizeLabel folds a header label for synonym comparison: lower-cased,
// trimmed, accents removed, and `_`, `-`, `.` and spaces stripped.
// "Matrícula", "matricula" and "MATRICULA_" all normalize to "matricula".
func NormalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))

	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(folder, s); err == nil {
		s = folded
	}

	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', ' ', '\t':
			return -1
		}
		return r
	}, s)
}
