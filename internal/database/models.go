package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Course struct {
	ID             pgtype.UUID
	OwnerID        pgtype.UUID
	Name           string
	Code           string
	TotalSemesters int32
	StartDate      pgtype.Date
}

type Subject struct {
	ID       pgtype.UUID
	OwnerID  pgtype.UUID
	CourseID pgtype.UUID
	Name     string
	Code     string
	Semester int32
	Year     int32
}

type Student struct {
	ID            pgtype.UUID
	CourseID      pgtype.UUID
	Name          string
	StudentID     string
	Email         pgtype.Text
	Gender        pgtype.Text
	Ethnicity     pgtype.Text
	AverageIncome pgtype.Float8
}

type Grade struct {
	ID             pgtype.UUID
	StudentID      pgtype.UUID
	SubjectID      pgtype.UUID
	Grade          float64
	MaxGrade       float64
	AssessmentType string
	AssessmentName string
	DateAssigned   pgtype.Date
}

type ImportRun struct {
	ID          pgtype.UUID
	OwnerID     pgtype.UUID
	Kind        string
	FileName    string
	State       string
	Inserted    int32
	Updated     int32
	Unchanged   int32
	Failed      int32
	Error       string
	ErrorReport string
	StartedAt   pgtype.Timestamptz
	FinishedAt  pgtype.Timestamptz
}
