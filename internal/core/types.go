package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/gradebook/internal/schema"
)

// RecordKind is the kind of record an import batch holds.
type RecordKind = schema.Kind

const (
	KindCourse       = schema.KindCourse
	KindStudent      = schema.KindStudent
	KindGrade        = schema.KindGrade
	KindSubject      = schema.KindSubject
	KindUnrecognized = schema.KindUnrecognized
)

// Course is a degree program owned by a professor. Code is unique per owner,
// compared case-insensitively.
type Course struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	Name           string `json:"name" validate:"required" label:"name"`
	Code           string `json:"code" validate:"required" label:"code"`
	TotalSemesters int    `json:"total_semesters"`
	// StartDate is an ISO date (YYYY-MM-DD).
	StartDate string `json:"start_date"`
}

// Subject is a class taught by the owner, optionally attached to a course.
type Subject struct {
	ID       string  `json:"id"`
	OwnerID  string  `json:"owner_id"`
	CourseID *string `json:"course_id,omitempty"`
	Name     string  `json:"name" validate:"required" label:"name"`
	Code     string  `json:"code" validate:"required" label:"code"`
	Semester int     `json:"semester" validate:"min=1" label:"semester"`
	Year     int     `json:"year" validate:"min=1900,max=2999" label:"year"`
}

// Student is enrolled in one course. StudentID is the institutional
// registration number and is unique across all owners.
type Student struct {
	ID            string   `json:"id"`
	Name          string   `json:"name" validate:"required" label:"name"`
	StudentID     string   `json:"student_id" validate:"required" label:"student ID"`
	Email         *string  `json:"email,omitempty"`
	CourseID      string   `json:"course_id"`
	Gender        *string  `json:"gender,omitempty"`
	Ethnicity     *string  `json:"ethnicity,omitempty"`
	AverageIncome *float64 `json:"average_income,omitempty"`
}

// Grade is one assessment result. StudentID and SubjectID are internal IDs.
type Grade struct {
	ID             string  `json:"id"`
	StudentID      string  `json:"student_id"`
	SubjectID      string  `json:"subject_id"`
	Grade          float64 `json:"grade"`
	MaxGrade       float64 `json:"max_grade"`
	AssessmentType string  `json:"assessment_type"`
	AssessmentName string  `json:"assessment_name"`
	// DateAssigned is an ISO date (YYYY-MM-DD).
	DateAssigned string `json:"date_assigned"`
}

// LogicalKey is the reconciliation identity of a grade.
func (g Grade) LogicalKey() string {
	return strings.Join([]string{
		g.StudentID,
		g.SubjectID,
		strings.ToLower(strings.TrimSpace(g.AssessmentName)),
		strings.ToLower(strings.TrimSpace(g.AssessmentType)),
		g.DateAssigned,
	}, "\x1f")
}

// GradeView is a grade joined with the names shown in listings.
type GradeView struct {
	Grade
	StudentName   string `json:"student_name"`
	StudentNumber string `json:"student_number"`
	SubjectName   string `json:"subject_name"`
	SubjectCode   string `json:"subject_code"`
	CourseID      string `json:"course_id"`
}

// GradeFilter narrows grade and student listings. Empty fields match all.
type GradeFilter struct {
	CourseID  string
	SubjectID string
}

// RowErrorKind classifies a row that did not make it to the store.
type RowErrorKind string

const (
	// RowValidation is a blank required field.
	RowValidation RowErrorKind = "validation"
	// RowResolution is a reference that matched nothing.
	RowResolution RowErrorKind = "resolution"
	// RowPersistence is a row the store rejected.
	RowPersistence RowErrorKind = "persistence"
)

// RowError is one excluded row: where it was, what it was and why.
type RowError struct {
	Line   int          `json:"line"`
	Record string       `json:"record"`
	Reason string       `json:"reason"`
	Kind   RowErrorKind `json:"kind"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Text renders the error the way the error report lists it.
func (e RowError) Text() string {
	return fmt.Sprintf("Line %d: %s - %s", e.Line, e.Record, e.Reason)
}

// ImportOutcome is the report of one import run.
type ImportOutcome struct {
	Kind      RecordKind    `json:"kind"`
	Total     int           `json:"total"`
	Inserted  int           `json:"inserted"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Errors    []RowError    `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

func (o *ImportOutcome) addError(line int, record, reason string, kind RowErrorKind) {
	o.Errors = append(o.Errors, RowError{Line: line, Record: record, Reason: reason, Kind: kind})
	o.Failed = len(o.Errors)
}

// Summary is the one-line notification text. It always includes the
// failure count when any row failed.
func (o *ImportOutcome) Summary() string {
	s := fmt.Sprintf("%d new, %d updated", o.Inserted, o.Updated)
	if o.Unchanged > 0 {
		s += fmt.Sprintf(", %d unchanged", o.Unchanged)
	}
	if o.Failed > 0 {
		s += fmt.Sprintf(", %d error(s)", o.Failed)
	}
	return s
}

// ErrorsText is the plain-text error report, one line per failed row.
func (o *ImportOutcome) ErrorsText() string {
	var b strings.Builder
	for _, e := range o.Errors {
		b.WriteString(e.Text())
		b.WriteByte('\n')
	}
	return b.String()
}

// ImportState is a step of an import run.
type ImportState string

const (
	StateParsed      ImportState = "parsed"
	StateValidated   ImportState = "validated"
	StateResolved    ImportState = "resolved"
	StatePartitioned ImportState = "partitioned"
	StatePersisted   ImportState = "persisted"
	StateReported    ImportState = "reported"
	StateFailed      ImportState = "failed"
)

// Terminal reports whether no further transitions follow.
func (s ImportState) Terminal() bool {
	return s == StateReported || s == StateFailed
}

// ImportProgress is published on every state transition.
type ImportProgress struct {
	RunID     string      `json:"run_id"`
	Kind      RecordKind  `json:"kind"`
	State     ImportState `json:"state"`
	FileName  string      `json:"file_name,omitempty"`
	Total     int         `json:"total"`
	Pending   int         `json:"pending"`
	Inserted  int         `json:"inserted"`
	Updated   int         `json:"updated"`
	Unchanged int         `json:"unchanged"`
	Failed    int         `json:"failed"`
	Error     string      `json:"error,omitempty"`
}

// ImportRun is a finished run as kept in history.
type ImportRun struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	Kind        RecordKind  `json:"kind"`
	FileName    string      `json:"file_name"`
	State       ImportState `json:"state"`
	Inserted    int         `json:"inserted"`
	Updated     int         `json:"updated"`
	Unchanged   int         `json:"unchanged"`
	Failed      int         `json:"failed"`
	Error       string      `json:"error,omitempty"`
	ErrorReport string      `json:"error_report,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
}
