// Package core provides the business logic for gradebook spreadsheet imports
// and record management.
//
// The package holds all domain logic independent of any transport. It is
// used by the web handlers, the gradeimport command and tests alike.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Store: the owner-scoped persistence boundary, with a PostgreSQL
//     implementation ([PgStore]) and an in-memory one ([MemStore]).
//   - Importer: the per-kind pipeline that turns raw rows into stored
//     courses, students, subjects or grades.
//   - Service: the entry point that stages uploads, runs imports in the
//     background and serves the CRUD operations.
//
// # Import Pipeline
//
// Every batch runs through the same states, in order:
//
//	parsed -> validated -> resolved -> partitioned -> persisted -> reported
//
// Rows are normalized and validated, references (course codes, student IDs,
// subject codes) are resolved against the owner's records, and the batch is
// partitioned into new and existing rows by natural key. New rows go in with
// batched inserts; a failed batch is retried row by row so only the
// offending rows are reported. A run that cannot start, because a reference
// table is empty for example, ends in the failed state with a
// [PreconditionError].
//
// Per-row problems never fail the run. They are collected as [RowError]
// values and rendered by [ImportOutcome.ErrorsText]:
//
//	Line 3: X999 / MAT101 / Prova 1 - student not found: "X999"
//
// # Background Runs
//
//  1. [Service.Stage] parses and classifies an upload and keeps it for review
//  2. [Service.StartImport] consumes the stage and runs it in a goroutine,
//     bounded by the [ImportLimiter]
//  3. State transitions are broadcast via [Service.SubscribeProgress]
//  4. Finished runs are recorded in the owner's history
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - IMP001-IMP007: Import run errors (no valid rows, preconditions, limits)
//   - PRS001-PRS005: File errors (format, size, legacy workbooks)
//   - VAL001-VAL005: Validation errors (missing fields, bad owner or kind)
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - AUTH001-AUTH002: API key errors
package core
