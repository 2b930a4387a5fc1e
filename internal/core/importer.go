package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/tabular"
)

// DefaultBatchSize is the number of new rows inserted per store call.
const DefaultBatchSize = 100

// Observer receives every state transition of an import run.
type Observer func(ImportProgress)

// Importer runs the reconciliation state machine over a batch of raw rows:
// parsed, validated, resolved, partitioned, persisted, reported.
//
// Each run is sequential. New rows go to the store in fixed-size batches and
// a failed batch is retried row by row. Existing rows are updated one at a
// time. The importer never deletes.
type Importer struct {
	Store      Store
	BatchSize  int
	Normalizer Normalizer
}

// NewImporter returns an importer writing to store.
func NewImporter(store Store, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Importer{Store: store, BatchSize: batchSize}
}

// Import reconciles rows of the given kind into the owner's records.
//
// Row-level problems never fail the run; they are listed in the outcome. The
// returned error is non-nil only when a precondition fails (nil outcome), when
// no row survives validation and resolution (ErrNoValidRows, with the
// outcome), or when the store cannot be read.
func (im *Importer) Import(ctx context.Context, owner string, kind RecordKind, rows []tabular.RawRow, observe Observer) (*ImportOutcome, error) {
	switch kind {
	case KindCourse:
		return run(ctx, im, im.courseFlow(owner), rows, observe)
	case KindStudent:
		return run(ctx, im, im.studentFlow(owner), rows, observe)
	case KindGrade:
		return run(ctx, im, im.gradeFlow(owner), rows, observe)
	case KindSubject:
		return run(ctx, im, im.subjectFlow(owner), rows, observe)
	case KindUnrecognized, "":
		return nil, ErrUnrecognizedBatch
	default:
		return nil, fmt.Errorf("invalid record kind %q", kind)
	}
}

// flow holds the kind-specific steps of an import over candidate type T.
type flow[T any] struct {
	kind RecordKind

	// build normalizes a raw row into a candidate. record is the fragment
	// that identifies the row in error reports.
	build func(row tabular.RawRow) (value T, record string)

	// prepare bulk-fetches reference data once for the validated batch and
	// returns the per-row resolver. An error fails the whole run.
	prepare func(ctx context.Context, batch []T) (resolve func(*T) error, err error)

	// key is the logical identity used to split new from existing rows.
	key func(T) string

	// existing fetches the stored records matching the batch, by key.
	existing func(ctx context.Context, batch []T) (map[string]T, error)

	insert func(ctx context.Context, batch []T) error

	// update writes incoming over stored. It reports false when nothing
	// needed to change.
	update func(ctx context.Context, incoming, stored T) (bool, error)
}

type candidate[T any] struct {
	line   int
	record string
	value  T
}

type runState struct {
	out     *ImportOutcome
	observe Observer
	pending int
}

func (st *runState) enter(s ImportState, errMsg string) {
	if st.observe == nil {
		return
	}
	st.observe(ImportProgress{
		Kind:      st.out.Kind,
		State:     s,
		Total:     st.out.Total,
		Pending:   st.pending,
		Inserted:  st.out.Inserted,
		Updated:   st.out.Updated,
		Unchanged: st.out.Unchanged,
		Failed:    st.out.Failed,
		Error:     errMsg,
	})
}

func (st *runState) fail(err error) error {
	st.enter(StateFailed, err.Error())
	return err
}

func run[T any](ctx context.Context, im *Importer, f flow[T], rows []tabular.RawRow, observe Observer) (*ImportOutcome, error) {
	start := time.Now()
	logger := logging.WithFields(ctx, "kind", f.kind, "rows", len(rows))

	out := &ImportOutcome{Kind: f.kind, Total: len(rows), Errors: []RowError{}}
	st := &runState{out: out, observe: observe, pending: len(rows)}
	st.enter(StateParsed, "")

	// validated
	valid := make([]candidate[T], 0, len(rows))
	for _, row := range rows {
		v, record := f.build(row)
		if err := validateStruct(&v); err != nil {
			out.addError(row.Line, record, rowReason(err), RowValidation)
			continue
		}
		valid = append(valid, candidate[T]{line: row.Line, record: record, value: v})
	}
	st.pending = len(valid)
	st.enter(StateValidated, "")
	if len(valid) == 0 {
		return finish(st, out, start, ErrNoValidRows)
	}

	// resolved
	values := make([]T, len(valid))
	for i, c := range valid {
		values[i] = c.value
	}
	resolve, err := f.prepare(ctx, values)
	if err != nil {
		logger.Warn("import resolution failed", "error", err)
		if IsPrecondition(err) {
			return nil, st.fail(err)
		}
		return out, st.fail(fmt.Errorf("resolve %s: %w", f.kind, err))
	}

	resolved := valid[:0]
	firstLine := make(map[string]int, len(valid))
	for _, c := range valid {
		if err := resolve(&c.value); err != nil {
			out.addError(c.line, c.record, err.Error(), RowResolution)
			continue
		}
		k := f.key(c.value)
		if line, dup := firstLine[k]; dup {
			out.addError(c.line, c.record, fmt.Sprintf("duplicates line %d in this file", line), RowValidation)
			continue
		}
		firstLine[k] = c.line
		resolved = append(resolved, c)
	}
	st.pending = len(resolved)
	st.enter(StateResolved, "")
	if len(resolved) == 0 {
		return finish(st, out, start, ErrNoValidRows)
	}

	// partitioned
	values = values[:0]
	for _, c := range resolved {
		values = append(values, c.value)
	}
	stored, err := f.existing(ctx, values)
	if err != nil {
		return out, st.fail(fmt.Errorf("fetch existing %s: %w", f.kind, err))
	}
	var fresh, known []candidate[T]
	for _, c := range resolved {
		if _, ok := stored[f.key(c.value)]; ok {
			known = append(known, c)
		} else {
			fresh = append(fresh, c)
		}
	}
	st.enter(StatePartitioned, "")

	// persisted
	for i := 0; i < len(fresh); i += im.BatchSize {
		batch := fresh[i:min(i+im.BatchSize, len(fresh))]
		insertBatch(ctx, f, batch, out)
		st.pending -= len(batch)
		st.enter(StatePersisted, "")
	}
	for _, c := range known {
		changed, err := f.update(ctx, c.value, stored[f.key(c.value)])
		st.pending--
		switch {
		case err != nil:
			out.addError(c.line, c.record, err.Error(), RowPersistence)
		case changed:
			out.Updated++
		default:
			out.Unchanged++
		}
	}
	st.pending = 0
	st.enter(StatePersisted, "")

	outcome, err := finish(st, out, start, nil)
	logger.Info("import finished",
		"inserted", out.Inserted,
		"updated", out.Updated,
		"unchanged", out.Unchanged,
		"failed", out.Failed,
		"duration", out.Duration,
	)
	return outcome, err
}

// insertBatch stores a batch in one call and, when that fails, retries each
// row on its own so one bad row does not sink its batch-mates.
func insertBatch[T any](ctx context.Context, f flow[T], batch []candidate[T], out *ImportOutcome) {
	values := make([]T, len(batch))
	for i, c := range batch {
		values[i] = c.value
	}
	err := f.insert(ctx, values)
	if err == nil {
		out.Inserted += len(batch)
		return
	}

	logging.FromContext(ctx).Warn("batch insert failed, retrying rows individually",
		"kind", f.kind,
		"batch_size", len(batch),
		"first_line", batch[0].line,
		"error", err,
	)
	for _, c := range batch {
		if err := f.insert(ctx, []T{c.value}); err != nil {
			out.addError(c.line, c.record, err.Error(), RowPersistence)
			continue
		}
		out.Inserted++
	}
}

func finish(st *runState, out *ImportOutcome, start time.Time, err error) (*ImportOutcome, error) {
	slices.SortStableFunc(out.Errors, func(a, b RowError) int { return cmp.Compare(a.Line, b.Line) })
	out.Duration = time.Since(start)
	if err != nil {
		return out, st.fail(err)
	}
	st.enter(StateReported, "")
	return out, nil
}

func rowReason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason()
	}
	return err.Error()
}

// describe joins the non-empty parts of a record fragment.
func describe(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "(empty row)"
	}
	return strings.Join(kept, " / ")
}
