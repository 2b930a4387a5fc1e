package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const subjectColumns = `id, owner_id, course_id, name, code, semester, year`

func scanSubject(row pgx.Row) (Subject, error) {
	var i Subject
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.CourseID,
		&i.Name,
		&i.Code,
		&i.Semester,
		&i.Year,
	)
	return i, err
}

func collectSubjects(rows pgx.Rows, err error) ([]Subject, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subject
	for rows.Next() {
		i, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listSubjects = `-- name: ListSubjects :many
SELECT ` + subjectColumns + ` FROM subjects
WHERE owner_id = $1
ORDER BY year DESC, semester, name
`

func (q *Queries) ListSubjects(ctx context.Context, ownerID pgtype.UUID) ([]Subject, error) {
	return collectSubjects(q.db.Query(ctx, listSubjects, ownerID))
}

const findSubjectsByCode = `-- name: FindSubjectsByCode :many
SELECT ` + subjectColumns + ` FROM subjects
WHERE owner_id = $1 AND lower(code) = ANY($2::text[])
`

type FindSubjectsByCodeParams struct {
	OwnerID pgtype.UUID
	// Codes must be lowercase.
	Codes []string
}

func (q *Queries) FindSubjectsByCode(ctx context.Context, arg FindSubjectsByCodeParams) ([]Subject, error) {
	return collectSubjects(q.db.Query(ctx, findSubjectsByCode, arg.OwnerID, arg.Codes))
}

// The course, when set, must belong to the same owner; otherwise no row is
// inserted.
const insertSubject = `-- name: InsertSubject :batchone
INSERT INTO subjects (owner_id, course_id, name, code, semester, year)
SELECT $1::uuid, $2::uuid, $3::text, $4::text, $5::int, $6::int
WHERE $2::uuid IS NULL OR EXISTS (SELECT 1 FROM courses WHERE id = $2 AND owner_id = $1)
RETURNING ` + subjectColumns

type InsertSubjectParams struct {
	OwnerID  pgtype.UUID
	CourseID pgtype.UUID
	Name     string
	Code     string
	Semester int32
	Year     int32
}

func (q *Queries) InsertSubjects(ctx context.Context, arg []InsertSubjectParams) ([]Subject, error) {
	return queueReturning(ctx, q.db, insertSubject, arg, func(a InsertSubjectParams) []any {
		return []any{a.OwnerID, a.CourseID, a.Name, a.Code, a.Semester, a.Year}
	}, scanSubject)
}

const updateSubject = `-- name: UpdateSubject :execrows
UPDATE subjects
SET course_id = $3, name = $4, code = $5, semester = $6, year = $7
WHERE id = $1 AND owner_id = $2
  AND ($3::uuid IS NULL OR EXISTS (SELECT 1 FROM courses WHERE id = $3 AND owner_id = $2))
`

type UpdateSubjectParams struct {
	ID       pgtype.UUID
	OwnerID  pgtype.UUID
	CourseID pgtype.UUID
	Name     string
	Code     string
	Semester int32
	Year     int32
}

func (q *Queries) UpdateSubject(ctx context.Context, arg UpdateSubjectParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateSubject,
		arg.ID,
		arg.OwnerID,
		arg.CourseID,
		arg.Name,
		arg.Code,
		arg.Semester,
		arg.Year,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteSubject = `-- name: DeleteSubject :execrows
DELETE FROM subjects WHERE id = $1 AND owner_id = $2
`

func (q *Queries) DeleteSubject(ctx context.Context, id, ownerID pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteSubject, id, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
