package schema

import (
	"fmt"
	"strings"
)

// Classification is the classifier's verdict for a batch.
type Classification struct {
	Kind      Kind     `json:"kind"`
	Rationale string   `json:"rationale"`
	Matched   []string `json:"matched"`
	Forced    bool     `json:"forced"`
}

// signal is a column family the classifier looks for.
type signal struct {
	field Field
	label string
}

var (
	sigCode      = signal{CourseCode, "code"}
	sigSemesters = signal{TotalSemesters, "total semesters"}
	sigStart     = signal{StartDate, "start date"}
	sigName      = signal{CourseName, "name"}
	sigStudentID = signal{StudentID, "student ID"}
	sigGrade     = signal{GradeValue, "grade"}
	sigSubject   = signal{GradeSubject, "subject"}
	sigAssess    = signal{assessmentTypeSignal, "assessment type"}
)

var allSignals = []signal{sigCode, sigSemesters, sigStart, sigName, sigStudentID, sigGrade, sigSubject, sigAssess}

// Classify decides which record kind a set of column labels represents.
//
// Rules are checked in order because the signals overlap:
//  1. courses: code or total semesters, with no student ID and no grade
//  2. grades: grade, student ID and subject
//  3. students: name or student ID, with no grade and no total semesters
//
// Anything else is KindUnrecognized and the rationale names each unmet rule.
func Classify(labels []string) Classification {
	has := make(map[string]bool, len(allSignals))
	var matched []string
	for _, s := range allSignals {
		if s.field.In(labels) {
			has[s.label] = true
			matched = append(matched, s.label)
		}
	}

	code, semesters := has[sigCode.label], has[sigSemesters.label]
	studentID, grade := has[sigStudentID.label], has[sigGrade.label]
	subject, name := has[sigSubject.label], has[sigName.label]

	var kind Kind
	switch {
	case (code || semesters) && !studentID && !grade:
		kind = KindCourse
	case grade && studentID && subject:
		kind = KindGrade
	case (name || studentID) && !grade && !semesters:
		kind = KindStudent
	default:
		kind = KindUnrecognized
	}

	c := Classification{Kind: kind, Matched: matched}
	if kind == KindUnrecognized {
		c.Rationale = unrecognizedRationale(labels, matched, has)
	} else {
		c.Rationale = fmt.Sprintf("detected %s; columns: %s; matched: %s",
			kind, strings.Join(labels, ", "), joinOrNone(matched))
	}
	return c
}

// Force overrides classification with a caller-chosen kind.
func Force(labels []string, kind Kind) Classification {
	c := Classify(labels)
	c.Kind = kind
	c.Forced = true
	c.Rationale = fmt.Sprintf("kind forced to %s by the user; columns: %s", kind, strings.Join(labels, ", "))
	return c
}

func unrecognizedRationale(labels, matched []string, has map[string]bool) string {
	var missing []string

	switch {
	case !has[sigCode.label] && !has[sigSemesters.label]:
		missing = append(missing, "courses need a code or total semesters column")
	case has[sigStudentID.label] || has[sigGrade.label]:
		missing = append(missing, "courses must not have student ID or grade columns")
	}

	var need []string
	for _, s := range []signal{sigGrade, sigStudentID, sigSubject} {
		if !has[s.label] {
			need = append(need, s.label)
		}
	}
	if len(need) > 0 {
		missing = append(missing, "grades need "+strings.Join(need, ", ")+" columns")
	}

	switch {
	case !has[sigName.label] && !has[sigStudentID.label]:
		missing = append(missing, "students need a name or student ID column")
	case has[sigGrade.label] || has[sigSemesters.label]:
		missing = append(missing, "students must not have grade or total semesters columns")
	}

	return fmt.Sprintf("unrecognized layout; columns: %s; matched: %s; %s",
		strings.Join(labels, ", "), joinOrNone(matched), strings.Join(missing, "; "))
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}
