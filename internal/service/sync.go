// Package service provides the sync orchestration between the document store
// and the relational store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/portalsync/internal/derive"
	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/metrics"
	"github.com/raphaelgruber/portalsync/internal/models"
	"github.com/raphaelgruber/portalsync/internal/normalize"
	"github.com/raphaelgruber/portalsync/internal/reconcile"
)

// DefaultConcurrency is the number of records upserted in parallel within a phase.
const DefaultConcurrency = 4

// Source lists raw documents. *db.Client implements it.
type Source interface {
	ListDocuments(ctx context.Context, kind models.Kind) ([]models.RawRecord, error)
}

// Store is the relational side. *warehouse.Store implements it.
type Store interface {
	reconcile.Sink
	JobLocation(ctx context.Context, jobID string) (string, error)
	RecordRun(ctx context.Context, r *models.SyncRunResult) error
}

// Options configures a SyncService.
type Options struct {
	Concurrency int
	GBPerHour   float64
	Breaker     reconcile.BreakerConfig
	Collector   *metrics.Collector // optional
}

// SyncService mirrors documents into the relational store, one kind at a time.
type SyncService struct {
	source      Source
	store       Store
	reconciler  *reconcile.Reconciler
	calc        derive.Calculator
	concurrency int
	collector   *metrics.Collector
	logger      *slog.Logger
	now         func() time.Time

	// one-slot semaphore serializing runs in this process
	running  chan struct{}
	progress progressTracker
}

// NewSyncService wires the pipeline. Missing stores are a configuration error.
func NewSyncService(source Source, store Store, opts Options, logger *slog.Logger) (*SyncService, error) {
	if source == nil {
		return nil, &errs.ConfigurationError{Key: "SURREALDB_URL", Reason: "document store is not configured"}
	}
	if store == nil {
		return nil, &errs.ConfigurationError{Key: "PORTALSYNC_DB_DSN", Reason: "relational store is not configured"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Breaker.OnStateChange == nil {
		opts.Breaker.OnStateChange = metrics.RecordBreakerTransition
	}

	return &SyncService{
		source:      source,
		store:       store,
		reconciler:  reconcile.New(store, opts.Breaker, logger),
		calc:        derive.NewCalculator(opts.GBPerHour),
		concurrency: opts.Concurrency,
		collector:   opts.Collector,
		logger:      logger,
		now:         time.Now,
		running:     make(chan struct{}, 1),
	}, nil
}

// runState is shared by the phases of one run.
type runState struct {
	result *models.SyncRunResult

	mu           sync.Mutex
	jobLocations map[string]string // job id -> location id, from the job phase
}

func (st *runState) recordOutcome(kind models.Kind, res reconcile.Result) {
	st.mu.Lock()
	defer st.mu.Unlock()

	c := st.result.Counts(kind)
	c.Attempted++
	switch res.Outcome {
	case reconcile.Inserted:
		c.Synced++
		c.Inserted++
	case reconcile.Updated:
		c.Synced++
		c.Updated++
	default:
		c.Failed++
		st.result.Errors = append(st.result.Errors, models.RecordError{
			Kind:     kind,
			RecordID: res.RecordID,
			Class:    errs.Class(res.Err),
			Message:  res.Err.Error(),
		})
	}
}

func (st *runState) setJobLocation(jobID, locationID string) {
	st.mu.Lock()
	st.jobLocations[jobID] = locationID
	st.mu.Unlock()
}

func (st *runState) jobLocation(jobID string) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	loc, ok := st.jobLocations[jobID]
	return loc, ok
}

// SyncAll runs the location, job and media phases in that order.
// The returned result is never nil unless err is non-nil.
func (s *SyncService) SyncAll(ctx context.Context) (*models.SyncRunResult, error) {
	return s.run(ctx, models.Kinds)
}

// SyncKind runs a single phase. Media location lookups then go to the
// relational store instead of the current run's job phase.
func (s *SyncService) SyncKind(ctx context.Context, kind models.Kind) (*models.SyncRunResult, error) {
	if _, err := models.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	return s.run(ctx, []models.Kind{kind})
}

// TrySync starts a run only if none is in progress; otherwise it returns
// errs.ErrSyncInProgress at once. An empty kind runs every phase.
func (s *SyncService) TrySync(ctx context.Context, kind models.Kind) (*models.SyncRunResult, error) {
	kinds := models.Kinds
	if kind != "" {
		if _, err := models.ParseKind(string(kind)); err != nil {
			return nil, err
		}
		kinds = []models.Kind{kind}
	}

	select {
	case s.running <- struct{}{}:
	default:
		return nil, errs.ErrSyncInProgress
	}
	defer func() { <-s.running }()
	return s.execute(ctx, kinds), nil
}

// run waits for the run slot until ctx is done.
func (s *SyncService) run(ctx context.Context, kinds []models.Kind) (*models.SyncRunResult, error) {
	select {
	case s.running <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", errs.ErrSyncInProgress, ctx.Err())
	}
	defer func() { <-s.running }()
	return s.execute(ctx, kinds), nil
}

// execute runs kinds in order. The caller holds the run slot.
func (s *SyncService) execute(ctx context.Context, kinds []models.Kind) *models.SyncRunResult {
	st := &runState{
		result: &models.SyncRunResult{
			RunID:     uuid.New().String(),
			StartedAt: s.now().UTC(),
			Errors:    []models.RecordError{},
		},
		jobLocations: make(map[string]string),
	}
	s.progress.start(st.result.RunID, st.result.StartedAt)
	log := s.logger.With("run_id", st.result.RunID)
	log.Info("sync started", "kinds", kinds)

	for _, kind := range kinds {
		if err := s.runPhase(ctx, kind, st, log); err != nil {
			log.Error("sync phase aborted", "kind", kind, "error", err)
			st.result.Abort(kind, err)
			break
		}
	}

	s.finish(ctx, st.result, log)
	return st.result
}

// runPhase fetches and reconciles every document of kind. A transient store
// error stops the phase and is returned; per-record errors are only recorded.
func (s *SyncService) runPhase(ctx context.Context, kind models.Kind, st *runState, log *slog.Logger) error {
	start := time.Now()
	docs, err := s.source.ListDocuments(ctx, kind)
	s.observe(metrics.OpSourceList, start, err != nil)
	if err != nil {
		return fmt.Errorf("list %s documents: %w", kind, err)
	}
	s.progress.phase(kind, len(docs))
	log.Info("phase started", "kind", kind, "documents", len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, raw := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := s.syncRecord(gctx, kind, raw, st)
			// Writes cut short by a sibling's abort or the caller were never
			// rejected by the store.
			if res.Err != nil && errors.Is(res.Err, context.Canceled) && gctx.Err() != nil {
				return nil
			}
			st.recordOutcome(kind, res)
			s.progress.advance()
			metrics.SyncRecords.WithLabelValues(string(kind), string(res.Outcome)).Inc()
			if res.Err != nil {
				log.Warn("record failed", "kind", kind, "record_id", res.RecordID, "class", errs.Class(res.Err), "error", res.Err)
				if errs.IsTransient(res.Err) {
					return res.Err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// Cancellation between records leaves no record error behind.
	if err := ctx.Err(); err != nil {
		return err
	}

	c := st.result.Counts(kind)
	log.Info("phase complete", "kind", kind, "attempted", c.Attempted, "synced", c.Synced, "failed", c.Failed,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// syncRecord runs normalize, derive and upsert for one raw document.
func (s *SyncService) syncRecord(ctx context.Context, kind models.Kind, raw models.RawRecord, st *runState) reconcile.Result {
	record, err := normalize.Normalize(kind, raw)
	if err != nil {
		return reconcile.Result{Kind: kind, RecordID: raw.ID, Outcome: reconcile.Failed, Err: err}
	}

	if m, ok := record.(*models.Media); ok {
		if err := s.resolveMediaLocation(ctx, m, st); err != nil {
			return reconcile.Result{Kind: kind, RecordID: m.ID, Outcome: reconcile.Failed, Err: err}
		}
		s.calc.Apply(m)
	}

	start := time.Now()
	res := s.reconciler.Upsert(ctx, record)
	s.observe(metrics.OpUpsert, start, res.Err != nil)

	if job, ok := record.(*models.Job); ok && res.Err == nil {
		st.setJobLocation(job.ID, job.LocationID)
	}
	return res
}

// resolveMediaLocation denormalizes the owning job's location onto m. The
// media document's own location reference is kept when the job is unknown.
func (s *SyncService) resolveMediaLocation(ctx context.Context, m *models.Media, st *runState) error {
	if m.JobID == "" {
		return nil
	}
	if loc, ok := st.jobLocation(m.JobID); ok {
		m.LocationID = models.StringPtr(loc)
		return nil
	}

	loc, err := s.store.JobLocation(ctx, m.JobID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	if p := models.StringPtr(loc); p != nil {
		m.LocationID = p
	}
	return nil
}

// finish stamps the result, persists the audit row and records metrics.
func (s *SyncService) finish(ctx context.Context, r *models.SyncRunResult, log *slog.Logger) {
	r.Finish(s.now().UTC())
	s.progress.complete(r)
	duration := r.FinishedAt.Sub(r.StartedAt)

	// The audit row is written even when the caller's context is done.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.RecordRun(auditCtx, r); err != nil {
		log.Warn("failed to record sync run", "error", err)
	}

	metrics.RecordSyncRun(duration, r.Success, r.Aborted)
	if s.collector != nil {
		s.collector.RecordResult(metrics.OpSyncRun, duration, !r.Success)
	}

	log.Info("sync finished",
		"success", r.Success,
		"aborted", r.Aborted,
		"locations", r.Locations.Synced, "jobs", r.Jobs.Synced, "media", r.Media.Synced,
		"failed", r.TotalFailed(),
		"duration_ms", duration.Milliseconds(),
	)
}

// Busy reports whether a run is in progress in this process.
func (s *SyncService) Busy() bool {
	return len(s.running) > 0
}

// Progress reports the current or most recent run. ok is false before the
// first run of this process.
func (s *SyncService) Progress() (p RunProgress, ok bool) {
	return s.progress.snapshot()
}

func (s *SyncService) observe(op string, start time.Time, failed bool) {
	if s.collector != nil {
		s.collector.RecordResult(op, time.Since(start), failed)
	}
}
