package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const courseColumns = `id, owner_id, name, code, total_semesters, start_date`

func scanCourse(row pgx.Row) (Course, error) {
	var i Course
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Name,
		&i.Code,
		&i.TotalSemesters,
		&i.StartDate,
	)
	return i, err
}

func collectCourses(rows pgx.Rows, err error) ([]Course, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Course
	for rows.Next() {
		i, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listCourses = `-- name: ListCourses :many
SELECT ` + courseColumns + ` FROM courses
WHERE owner_id = $1
ORDER BY name, code
`

func (q *Queries) ListCourses(ctx context.Context, ownerID pgtype.UUID) ([]Course, error) {
	return collectCourses(q.db.Query(ctx, listCourses, ownerID))
}

const findCoursesByCode = `-- name: FindCoursesByCode :many
SELECT ` + courseColumns + ` FROM courses
WHERE owner_id = $1 AND lower(code) = ANY($2::text[])
`

type FindCoursesByCodeParams struct {
	OwnerID pgtype.UUID
	// Codes must be lowercase.
	Codes []string
}

func (q *Queries) FindCoursesByCode(ctx context.Context, arg FindCoursesByCodeParams) ([]Course, error) {
	return collectCourses(q.db.Query(ctx, findCoursesByCode, arg.OwnerID, arg.Codes))
}

const insertCourse = `-- name: InsertCourse :batchone
INSERT INTO courses (owner_id, name, code, total_semesters, start_date)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + courseColumns

type InsertCourseParams struct {
	OwnerID        pgtype.UUID
	Name           string
	Code           string
	TotalSemesters int32
	StartDate      pgtype.Date
}

// InsertCourses queues one insert per course in a single batch.
func (q *Queries) InsertCourses(ctx context.Context, arg []InsertCourseParams) ([]Course, error) {
	return queueReturning(ctx, q.db, insertCourse, arg, func(a InsertCourseParams) []any {
		return []any{a.OwnerID, a.Name, a.Code, a.TotalSemesters, a.StartDate}
	}, scanCourse)
}

const updateCourse = `-- name: UpdateCourse :execrows
UPDATE courses
SET name = $3, code = $4, total_semesters = $5, start_date = $6
WHERE id = $1 AND owner_id = $2
`

type UpdateCourseParams struct {
	ID             pgtype.UUID
	OwnerID        pgtype.UUID
	Name           string
	Code           string
	TotalSemesters int32
	StartDate      pgtype.Date
}

func (q *Queries) UpdateCourse(ctx context.Context, arg UpdateCourseParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateCourse,
		arg.ID,
		arg.OwnerID,
		arg.Name,
		arg.Code,
		arg.TotalSemesters,
		arg.StartDate,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteCourse = `-- name: DeleteCourse :execrows
DELETE FROM courses WHERE id = $1 AND owner_id = $2
`

func (q *Queries) DeleteCourse(ctx context.Context, id, ownerID pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCourse, id, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
