package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertImportRun = `-- name: InsertImportRun :exec
INSERT INTO import_runs (
    id, owner_id, kind, file_name, state, inserted, updated, unchanged, failed,
    error, error_report, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

func (q *Queries) InsertImportRun(ctx context.Context, arg ImportRun) error {
	_, err := q.db.Exec(ctx, insertImportRun,
		arg.ID,
		arg.OwnerID,
		arg.Kind,
		arg.FileName,
		arg.State,
		arg.Inserted,
		arg.Updated,
		arg.Unchanged,
		arg.Failed,
		arg.Error,
		arg.ErrorReport,
		arg.StartedAt,
		arg.FinishedAt,
	)
	return err
}

const listImportRuns = `-- name: ListImportRuns :many
SELECT id, owner_id, kind, file_name, state, inserted, updated, unchanged, failed,
       error, error_report, started_at, finished_at
FROM import_runs
WHERE owner_id = $1
ORDER BY finished_at DESC
LIMIT $2
`

type ListImportRunsParams struct {
	OwnerID pgtype.UUID
	Limit   int32
}

func (q *Queries) ListImportRuns(ctx context.Context, arg ListImportRunsParams) ([]ImportRun, error) {
	rows, err := q.db.Query(ctx, listImportRuns, arg.OwnerID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportRun
	for rows.Next() {
		var i ImportRun
		if err := rows.Scan(
			&i.ID,
			&i.OwnerID,
			&i.Kind,
			&i.FileName,
			&i.State,
			&i.Inserted,
			&i.Updated,
			&i.Unchanged,
			&i.Failed,
			&i.Error,
			&i.ErrorReport,
			&i.StartedAt,
			&i.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const purgeImportRuns = `-- name: PurgeImportRuns :execrows
DELETE FROM import_runs
WHERE finished_at < $1
`

func (q *Queries) PurgeImportRuns(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, purgeImportRuns, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
