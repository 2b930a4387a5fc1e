package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const studentColumns = `s.id, s.course_id, s.name, s.student_id, s.email, s.gender, s.ethnicity, s.average_income`

func scanStudent(row pgx.Row) (Student, error) {
	var i Student
	err := row.Scan(
		&i.ID,
		&i.CourseID,
		&i.Name,
		&i.StudentID,
		&i.Email,
		&i.Gender,
		&i.Ethnicity,
		&i.AverageIncome,
	)
	return i, err
}

func collectStudents(rows pgx.Rows, err error) ([]Student, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Student
	for rows.Next() {
		i, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listStudents = `-- name: ListStudents :many
SELECT ` + studentColumns + `
FROM students s
JOIN courses c ON c.id = s.course_id
WHERE c.owner_id = $1
  AND ($2::uuid IS NULL OR s.course_id = $2)
  AND ($3::uuid IS NULL OR EXISTS (
        SELECT 1 FROM grades g WHERE g.student_id = s.id AND g.subject_id = $3))
ORDER BY s.name
`

type ListStudentsParams struct {
	OwnerID   pgtype.UUID
	CourseID  pgtype.UUID
	SubjectID pgtype.UUID
}

func (q *Queries) ListStudents(ctx context.Context, arg ListStudentsParams) ([]Student, error) {
	return collectStudents(q.db.Query(ctx, listStudents, arg.OwnerID, arg.CourseID, arg.SubjectID))
}

const findStudentsByStudentID = `-- name: FindStudentsByStudentID :many
SELECT ` + studentColumns + `
FROM students s
JOIN courses c ON c.id = s.course_id
WHERE c.owner_id = $1 AND lower(s.student_id) = ANY($2::text[])
`

type FindStudentsByStudentIDParams struct {
	OwnerID pgtype.UUID
	// StudentIDs must be lowercase.
	StudentIDs []string
}

func (q *Queries) FindStudentsByStudentID(ctx context.Context, arg FindStudentsByStudentIDParams) ([]Student, error) {
	return collectStudents(q.db.Query(ctx, findStudentsByStudentID, arg.OwnerID, arg.StudentIDs))
}

const insertStudent = `-- name: InsertStudent :batchone
INSERT INTO students AS s (course_id, name, student_id, email, gender, ethnicity, average_income)
SELECT c.id, $3::text, $4::text, $5::text, $6::text, $7::text, $8::float8
FROM courses c
WHERE c.id = $2 AND c.owner_id = $1
RETURNING ` + studentColumns

type InsertStudentParams struct {
	OwnerID       pgtype.UUID
	CourseID      pgtype.UUID
	Name          string
	StudentID     string
	Email         pgtype.Text
	Gender        pgtype.Text
	Ethnicity     pgtype.Text
	AverageIncome pgtype.Float8
}

// InsertStudents inserts into the owner's courses only. A student whose
// course belongs to someone else makes the batch fail with pgx.ErrNoRows.
func (q *Queries) InsertStudents(ctx context.Context, arg []InsertStudentParams) ([]Student, error) {
	return queueReturning(ctx, q.db, insertStudent, arg, func(a InsertStudentParams) []any {
		return []any{a.OwnerID, a.CourseID, a.Name, a.StudentID, a.Email, a.Gender, a.Ethnicity, a.AverageIncome}
	}, scanStudent)
}

const updateStudent = `-- name: UpdateStudent :execrows
UPDATE students s
SET course_id = $3, name = $4, student_id = $5, email = $6, gender = $7, ethnicity = $8, average_income = $9
FROM courses c
WHERE s.id = $1 AND c.id = s.course_id AND c.owner_id = $2
  AND EXISTS (SELECT 1 FROM courses nc WHERE nc.id = $3 AND nc.owner_id = $2)
`

type UpdateStudentParams struct {
	ID            pgtype.UUID
	OwnerID       pgtype.UUID
	CourseID      pgtype.UUID
	Name          string
	StudentID     string
	Email         pgtype.Text
	Gender        pgtype.Text
	Ethnicity     pgtype.Text
	AverageIncome pgtype.Float8
}

func (q *Queries) UpdateStudent(ctx context.Context, arg UpdateStudentParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateStudent,
		arg.ID,
		arg.OwnerID,
		arg.CourseID,
		arg.Name,
		arg.StudentID,
		arg.Email,
		arg.Gender,
		arg.Ethnicity,
		arg.AverageIncome,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteStudent = `-- name: DeleteStudent :execrows
DELETE FROM students s
USING courses c
WHERE s.id = $1 AND c.id = s.course_id AND c.owner_id = $2
`

func (q *Queries) DeleteStudent(ctx context.Context, id, ownerID pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteStudent, id, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
