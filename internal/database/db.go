// Package database holds the gradebook's SQL: schema migrations and typed
// query methods over pgx, one file per table.
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// queueReturning sends one query per element of args as a single batch and
// scans the RETURNING row of each. A statement that returns no row fails with
// pgx.ErrNoRows.
func queueReturning[P, R any](ctx context.Context, db DBTX, query string, args []P, argv func(P) []any, scan func(pgx.Row) (R, error)) ([]R, error) {
	batch := &pgx.Batch{}
	for _, a := range args {
		batch.Queue(query, argv(a)...)
	}

	br := db.SendBatch(ctx, batch)
	out := make([]R, 0, len(args))
	for range args {
		r, err := scan(br.QueryRow())
		if err != nil {
			br.Close()
			return nil, err
		}
		out = append(out, r)
	}
	return out, br.Close()
}
