package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/schema"
	"github.com/JonMunkholm/gradebook/internal/tabular"
)

// PreviewRows is the number of rows a staged batch shows before import.
const PreviewRows = 5

// ServiceConfig tunes the import service. Zero values fall back to defaults.
type ServiceConfig struct {
	BatchSize     int
	MaxConcurrent int
	MaxWait       time.Duration
	// Timeout bounds a background run. It becomes the store calls' deadline.
	Timeout   time.Duration
	StageTTL  time.Duration
	ResultTTL time.Duration
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
	if c.StageTTL <= 0 {
		c.StageTTL = 30 * time.Minute
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = time.Hour
	}
	return c
}

// Service is the entry point for imports and record management. It is safe
// for concurrent use by HTTP handlers.
type Service struct {
	store    Store
	importer *Importer
	limiter  *ImportLimiter
	cfg      ServiceConfig

	mu     sync.RWMutex
	stages map[string]*StagedBatch
	runs   map[string]*activeRun
}

// StagedBatch is an uploaded file that was parsed and classified and is
// waiting for the user to confirm the import.
type StagedBatch struct {
	ID             string                `json:"id"`
	OwnerID        string                `json:"-"`
	FileName       string                `json:"file_name"`
	Format         string                `json:"format"`
	Labels         []string              `json:"labels"`
	Classification schema.Classification `json:"classification"`
	RowCount       int                   `json:"row_count"`
	Preview        []map[string]string   `json:"preview"`
	ExpiresAt      time.Time             `json:"expires_at"`
	rows           []tabular.RawRow
}

// RunResult is the state of an import run as served to clients.
type RunResult struct {
	RunID    string         `json:"run_id"`
	Kind     RecordKind     `json:"kind"`
	FileName string         `json:"file_name"`
	Progress ImportProgress `json:"progress"`
	Outcome  *ImportOutcome `json:"outcome,omitempty"`
	Summary  string         `json:"summary,omitempty"`
	Error    string         `json:"error,omitempty"`
	// Err is the run's failure, kept for error mapping.
	Err error `json:"-"`
}

type activeRun struct {
	ID        string
	OwnerID   string
	Kind      RecordKind
	FileName  string
	StartedAt time.Time
	Cancel    context.CancelFunc

	Outcome *ImportOutcome
	Err     error
	Done    chan struct{}

	Progress   ImportProgress
	Listeners  []chan ImportProgress
	ListenerMu sync.Mutex
}

// NewService creates a Service over store.
func NewService(store Store, cfg ServiceConfig) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		store:    store,
		importer: NewImporter(store, cfg.BatchSize),
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:      cfg,
		stages:   make(map[string]*StagedBatch),
		runs:     make(map[string]*activeRun),
	}
}

// Limiter exposes the run limiter for health checks and shutdown.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// Importer exposes the pipeline, mainly so tests can pin its clock.
func (s *Service) Importer() *Importer { return s.importer }

func checkOwner(owner string) error {
	if _, err := uuid.Parse(owner); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidOwner, owner)
	}
	return nil
}

// parseFile detects the format, parses and classifies a file.
func parseFile(fileName string, data []byte) (*tabular.Table, tabular.Format, schema.Classification, error) {
	format, err := tabular.DetectFormat(fileName, data)
	if err != nil {
		return nil, format, schema.Classification{}, err
	}
	tbl, err := tabular.Parse(data, format)
	if err != nil {
		return nil, format, schema.Classification{}, err
	}
	return tbl, format, schema.Classify(tbl.Labels), nil
}

// Stage parses and classifies an uploaded file and keeps it until the user
// confirms the import or the stage expires.
func (s *Service) Stage(ctx context.Context, owner, fileName string, data []byte) (*StagedBatch, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}

	tbl, format, class, err := parseFile(fileName, data)
	if err != nil {
		logging.FromContext(ctx).Info("staging rejected", "file", fileName, "error", err)
		return nil, err
	}

	preview := make([]map[string]string, 0, PreviewRows)
	for _, row := range tbl.Rows[:min(PreviewRows, len(tbl.Rows))] {
		preview = append(preview, row.Values())
	}

	stage := &StagedBatch{
		ID:             uuid.New().String(),
		OwnerID:        owner,
		FileName:       fileName,
		Format:         format.String(),
		Labels:         tbl.Labels,
		Classification: class,
		RowCount:       len(tbl.Rows),
		Preview:        preview,
		ExpiresAt:      time.Now().Add(s.cfg.StageTTL),
		rows:           tbl.Rows,
	}

	s.mu.Lock()
	s.stages[stage.ID] = stage
	s.mu.Unlock()
	time.AfterFunc(s.cfg.StageTTL, func() { s.dropStage(stage.ID) })

	logging.FromContext(ctx).Info("staged batch",
		"stage_id", stage.ID,
		"file", fileName,
		"rows", stage.RowCount,
		"kind", class.Kind,
	)
	return stage, nil
}

// GetStage returns a staged batch of the owner.
func (s *Service) GetStage(owner, stageID string) (*StagedBatch, error) {
	s.mu.RLock()
	stage, ok := s.stages[stageID]
	s.mu.RUnlock()
	if !ok || stage.OwnerID != owner {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, stageID)
	}
	return stage, nil
}

func (s *Service) dropStage(id string) {
	s.mu.Lock()
	delete(s.stages, id)
	s.mu.Unlock()
}

// takeStage removes the owner's stage in the same step as the lookup, so
// only one caller can start a run from it.
func (s *Service) takeStage(owner, stageID string) (*StagedBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stage, ok := s.stages[stageID]
	if !ok || stage.OwnerID != owner {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, stageID)
	}
	delete(s.stages, stageID)
	return stage, nil
}

// restoreStage puts back a stage whose run failed to start, unless its
// TTL ran out in the meantime.
func (s *Service) restoreStage(stage *StagedBatch) {
	if time.Now().After(stage.ExpiresAt) {
		return
	}
	s.mu.Lock()
	s.stages[stage.ID] = stage
	s.mu.Unlock()
}

// resolveKind applies a user override to the classifier's verdict.
func resolveKind(labels []string, class schema.Classification, force *RecordKind) (schema.Classification, error) {
	if force != nil {
		class = schema.Force(labels, *force)
	}
	if class.Kind == KindUnrecognized || class.Kind == "" {
		return class, ErrUnrecognizedBatch
	}
	return class, nil
}

// StartImport runs a staged batch in the background and returns its run ID.
// The run is detached from ctx and bounded by the configured timeout; ctx
// only bounds the wait for a limiter slot.
//
// Returns ErrTooManyImports if no slot frees up in time.
func (s *Service) StartImport(ctx context.Context, owner, stageID string, force *RecordKind) (string, error) {
	stage, err := s.takeStage(owner, stageID)
	if err != nil {
		return "", err
	}
	class, err := resolveKind(stage.Labels, stage.Classification, force)
	if err != nil {
		s.restoreStage(stage)
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.restoreStage(stage)
		return "", err
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	runCtx = logging.WithOwner(logging.WithRunID(runCtx, runID), owner)

	run := &activeRun{
		ID:        runID,
		OwnerID:   owner,
		Kind:      class.Kind,
		FileName:  stage.FileName,
		StartedAt: time.Now(),
		Cancel:    cancel,
		Done:      make(chan struct{}),
		Progress: ImportProgress{
			RunID:    runID,
			Kind:     class.Kind,
			State:    StateParsed,
			FileName: stage.FileName,
			Total:    stage.RowCount,
			Pending:  stage.RowCount,
		},
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import run",
					"run_id", runID,
					"kind", class.Kind,
					"panic", r,
				)
				s.finishRun(runCtx, run, nil, fmt.Errorf("internal error: %v", r))
			}
		}()

		outcome, err := s.importer.Import(runCtx, owner, class.Kind, stage.rows, run.observe)
		s.finishRun(runCtx, run, outcome, err)
	}()

	return runID, nil
}

// observe publishes a state transition to the run's listeners.
func (run *activeRun) observe(p ImportProgress) {
	p.RunID = run.ID
	p.FileName = run.FileName

	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()
	run.Progress = p

	for _, ch := range run.Listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (run *activeRun) closeListeners() {
	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	for _, ch := range run.Listeners {
		close(ch)
	}
	run.Listeners = nil
}

func (run *activeRun) snapshot() ImportProgress {
	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()
	return run.Progress
}

func (s *Service) finishRun(ctx context.Context, run *activeRun, outcome *ImportOutcome, err error) {
	run.Outcome, run.Err = outcome, err

	p := run.snapshot()
	if err != nil && p.State != StateFailed {
		p.State = StateFailed
		p.Error = err.Error()
		run.observe(p)
	}

	s.recordRun(ctx, runRecord(run.ID, run.OwnerID, run.Kind, run.FileName, run.StartedAt, outcome, err))

	run.closeListeners()
	close(run.Done)
	s.cleanup(run.ID, s.cfg.ResultTTL)
}

func runRecord(id, owner string, kind RecordKind, fileName string, started time.Time, outcome *ImportOutcome, err error) ImportRun {
	rec := ImportRun{
		ID:         id,
		OwnerID:    owner,
		Kind:       kind,
		FileName:   fileName,
		State:      StateReported,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if outcome != nil {
		rec.Inserted = outcome.Inserted
		rec.Updated = outcome.Updated
		rec.Unchanged = outcome.Unchanged
		rec.Failed = outcome.Failed
		rec.ErrorReport = outcome.ErrorsText()
	}
	if err != nil {
		rec.State = StateFailed
		rec.Error = err.Error()
	}
	return rec
}

// recordRun writes run history. Failures are logged, never surfaced: the
// import itself already finished.
func (s *Service) recordRun(ctx context.Context, rec ImportRun) {
	// The run context may have expired; history still gets a short budget.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.RecordImportRun(hctx, rec); err != nil {
		logging.FromContext(ctx).Error("record import run", "error", err)
	}
}

// cleanup removes the run from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

func (s *Service) getRun(owner, runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok || run.OwnerID != owner {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// SubscribeProgress returns a channel of state transitions for a run. The
// current state is sent immediately and the channel is closed when the run
// finishes.
func (s *Service) SubscribeProgress(owner, runID string) (<-chan ImportProgress, error) {
	run, err := s.getRun(owner, runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	ch <- run.Progress
	select {
	case <-run.Done:
		close(ch)
	default:
		run.Listeners = append(run.Listeners, ch)
	}
	return ch, nil
}

// RunStatus returns a run's current state without blocking.
func (s *Service) RunStatus(owner, runID string) (*RunResult, error) {
	run, err := s.getRun(owner, runID)
	if err != nil {
		return nil, err
	}
	select {
	case <-run.Done:
		return run.result(), nil
	default:
		return &RunResult{RunID: run.ID, Kind: run.Kind, FileName: run.FileName, Progress: run.snapshot()}, nil
	}
}

// GetResult blocks until the run finishes or ctx is done.
func (s *Service) GetResult(ctx context.Context, owner, runID string) (*RunResult, error) {
	run, err := s.getRun(owner, runID)
	if err != nil {
		return nil, err
	}
	select {
	case <-run.Done:
		return run.result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (run *activeRun) result() *RunResult {
	r := &RunResult{
		RunID:    run.ID,
		Kind:     run.Kind,
		FileName: run.FileName,
		Progress: run.snapshot(),
		Outcome:  run.Outcome,
		Err:      run.Err,
	}
	if run.Outcome != nil {
		r.Summary = run.Outcome.Summary()
	}
	if run.Err != nil {
		r.Error = FormatUserError(run.Err)
	}
	return r
}

// Import parses, classifies and imports a file synchronously, bounded by ctx.
// It is what the command-line importer uses.
func (s *Service) Import(ctx context.Context, owner, fileName string, data []byte, force *RecordKind) (schema.Classification, *ImportOutcome, error) {
	if err := checkOwner(owner); err != nil {
		return schema.Classification{}, nil, err
	}
	tbl, _, class, err := parseFile(fileName, data)
	if err != nil {
		return class, nil, err
	}
	class, err = resolveKind(tbl.Labels, class, force)
	if err != nil {
		return class, nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return class, nil, err
	}
	defer s.limiter.Release()

	started := time.Now()
	outcome, err := s.importer.Import(ctx, owner, class.Kind, tbl.Rows, nil)
	s.recordRun(ctx, runRecord(uuid.New().String(), owner, class.Kind, fileName, started, outcome, err))
	return class, outcome, err
}

// History lists the owner's finished runs, newest first.
func (s *Service) History(ctx context.Context, owner string, limit int) ([]ImportRun, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListImportRuns(ctx, owner, limit)
}
