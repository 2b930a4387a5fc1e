package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const gradeColumns = `g.id, g.student_id, g.subject_id, g.grade, g.max_grade, g.assessment_type, g.assessment_name, g.date_assigned`

func scanGrade(row pgx.Row) (Grade, error) {
	var i Grade
	err := row.Scan(
		&i.ID,
		&i.StudentID,
		&i.SubjectID,
		&i.Grade,
		&i.MaxGrade,
		&i.AssessmentType,
		&i.AssessmentName,
		&i.DateAssigned,
	)
	return i, err
}

// ownedGrade restricts g to grades whose student is in one of the owner's
// courses ($2).
const ownedGrade = `EXISTS (
    SELECT 1 FROM students os JOIN courses oc ON oc.id = os.course_id
    WHERE os.id = g.student_id AND oc.owner_id = $2)`

const listGrades = `-- name: ListGrades :many
SELECT ` + gradeColumns + `,
       s.name, s.student_id, sub.name, sub.code, s.course_id
FROM grades g
JOIN students s ON s.id = g.student_id
JOIN courses c ON c.id = s.course_id
JOIN subjects sub ON sub.id = g.subject_id
WHERE c.owner_id = $1
  AND ($2::uuid IS NULL OR s.course_id = $2)
  AND ($3::uuid IS NULL OR g.subject_id = $3)
ORDER BY g.date_assigned DESC, s.name, g.id
`

type ListGradesParams struct {
	OwnerID   pgtype.UUID
	CourseID  pgtype.UUID
	SubjectID pgtype.UUID
}

type ListGradesRow struct {
	Grade
	StudentName   string
	StudentNumber string
	SubjectName   string
	SubjectCode   string
	CourseID      pgtype.UUID
}

func (q *Queries) ListGrades(ctx context.Context, arg ListGradesParams) ([]ListGradesRow, error) {
	rows, err := q.db.Query(ctx, listGrades, arg.OwnerID, arg.CourseID, arg.SubjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListGradesRow
	for rows.Next() {
		var i ListGradesRow
		if err := rows.Scan(
			&i.ID,
			&i.StudentID,
			&i.SubjectID,
			&i.Grade.Grade,
			&i.MaxGrade,
			&i.AssessmentType,
			&i.AssessmentName,
			&i.DateAssigned,
			&i.StudentName,
			&i.StudentNumber,
			&i.SubjectName,
			&i.SubjectCode,
			&i.CourseID,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const findGrades = `-- name: FindGrades :many
SELECT ` + gradeColumns + `
FROM grades g
WHERE g.student_id = ANY($1::uuid[]) AND g.subject_id = ANY($3::uuid[])
  AND ` + ownedGrade

type FindGradesParams struct {
	StudentIDs []pgtype.UUID
	OwnerID    pgtype.UUID
	SubjectIDs []pgtype.UUID
}

func (q *Queries) FindGrades(ctx context.Context, arg FindGradesParams) ([]Grade, error) {
	rows, err := q.db.Query(ctx, findGrades, arg.StudentIDs, arg.OwnerID, arg.SubjectIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Grade
	for rows.Next() {
		i, err := scanGrade(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// Both the student and the subject must belong to the owner; otherwise no
// row is inserted.
const insertGrade = `-- name: InsertGrade :batchone
INSERT INTO grades AS g (student_id, subject_id, grade, max_grade, assessment_type, assessment_name, date_assigned)
SELECT s.id, sub.id, $4::float8, $5::float8, $6::text, $7::text, $8::date
FROM students s
JOIN courses c ON c.id = s.course_id AND c.owner_id = $1
JOIN subjects sub ON sub.id = $3 AND sub.owner_id = $1
WHERE s.id = $2
RETURNING ` + gradeColumns

type InsertGradeParams struct {
	OwnerID        pgtype.UUID
	StudentID      pgtype.UUID
	SubjectID      pgtype.UUID
	Grade          float64
	MaxGrade       float64
	AssessmentType string
	AssessmentName string
	DateAssigned   pgtype.Date
}

func (q *Queries) InsertGrades(ctx context.Context, arg []InsertGradeParams) ([]Grade, error) {
	return queueReturning(ctx, q.db, insertGrade, arg, func(a InsertGradeParams) []any {
		return []any{a.OwnerID, a.StudentID, a.SubjectID, a.Grade, a.MaxGrade, a.AssessmentType, a.AssessmentName, a.DateAssigned}
	}, scanGrade)
}

const updateGradeScore = `-- name: UpdateGradeScore :execrows
UPDATE grades g SET grade = $3, max_grade = $4
WHERE g.id = $1 AND ` + ownedGrade

type UpdateGradeScoreParams struct {
	ID       pgtype.UUID
	OwnerID  pgtype.UUID
	Grade    float64
	MaxGrade float64
}

func (q *Queries) UpdateGradeScore(ctx context.Context, arg UpdateGradeScoreParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateGradeScore, arg.ID, arg.OwnerID, arg.Grade, arg.MaxGrade)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const updateGrade = `-- name: UpdateGrade :execrows
UPDATE grades g
SET student_id = $3, subject_id = $4, grade = $5, max_grade = $6,
    assessment_type = $7, assessment_name = $8, date_assigned = $9
WHERE g.id = $1 AND ` + ownedGrade + `
  AND EXISTS (SELECT 1 FROM students ns JOIN courses nc ON nc.id = ns.course_id
              WHERE ns.id = $3 AND nc.owner_id = $2)
  AND EXISTS (SELECT 1 FROM subjects nsub WHERE nsub.id = $4 AND nsub.owner_id = $2)
`

type UpdateGradeParams struct {
	ID             pgtype.UUID
	OwnerID        pgtype.UUID
	StudentID      pgtype.UUID
	SubjectID      pgtype.UUID
	Grade          float64
	MaxGrade       float64
	AssessmentType string
	AssessmentName string
	DateAssigned   pgtype.Date
}

func (q *Queries) UpdateGrade(ctx context.Context, arg UpdateGradeParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateGrade,
		arg.ID,
		arg.OwnerID,
		arg.StudentID,
		arg.SubjectID,
		arg.Grade,
		arg.MaxGrade,
		arg.AssessmentType,
		arg.AssessmentName,
		arg.DateAssigned,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteGrade = `-- name: DeleteGrade :execrows
DELETE FROM grades g WHERE g.id = $1 AND ` + ownedGrade

func (q *Queries) DeleteGrade(ctx context.Context, id, ownerID pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteGrade, id, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
