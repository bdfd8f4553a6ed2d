// Package reconcile writes canonical records into the relational store.
//
// Every write is an idempotent upsert keyed by the document id. A circuit
// breaker guards the sink so a dead relational store fails fast instead of
// timing out once per record.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/models"
)

// Outcome of a single upsert.
type Outcome string

const (
	Inserted Outcome = "inserted"
	Updated  Outcome = "updated"
	Failed   Outcome = "failed"
)

// Sink is the relational side of the sync. *warehouse.Store implements it.
// Each method reports whether the row was newly created.
type Sink interface {
	UpsertLocation(ctx context.Context, loc *models.Location) (bool, error)
	UpsertJob(ctx context.Context, job *models.Job) (bool, error)
	UpsertMedia(ctx context.Context, m *models.Media) (bool, error)
}

// Result is the outcome of reconciling one record.
type Result struct {
	Kind     models.Kind
	RecordID string
	Outcome  Outcome
	Err      error
}

// BreakerConfig tunes the circuit breaker around the sink.
type BreakerConfig struct {
	// ConsecutiveFailures of transient errors before the breaker opens. 0 uses 5.
	ConsecutiveFailures uint32
	// OpenTimeout before a half-open probe is allowed. 0 uses 30s.
	OpenTimeout time.Duration
	// OnStateChange is called on every breaker transition.
	OnStateChange func(name string, from, to string)
}

// Reconciler upserts canonical records through a Sink.
type Reconciler struct {
	sink    Sink
	breaker *gobreaker.CircuitBreaker[bool]
	logger  *slog.Logger
}

// New creates a Reconciler writing to sink.
func New(sink Sink, cfg BreakerConfig, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := &Reconciler{sink: sink, logger: logger}
	r.breaker = gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:        "relational-store",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Rejected rows are the record's fault, not the store's.
		IsSuccessful: func(err error) bool {
			return err == nil || !errs.IsTransient(err)
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	})
	return r
}

// Upsert writes one canonical record (*models.Location, *models.Job or
// *models.Media). Validation is the caller's job; records reaching here must
// carry an id.
func (r *Reconciler) Upsert(ctx context.Context, record any) Result {
	kind, id, write, err := r.prepare(record)
	if err != nil {
		return Result{Kind: kind, RecordID: id, Outcome: Failed, Err: err}
	}

	inserted, err := r.breaker.Execute(func() (bool, error) {
		return write(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = errs.Transient("relational", "upsert "+string(kind), err)
		}
		r.logger.Debug("upsert failed", "kind", kind, "id", id, "class", errs.Class(err), "error", err)
		return Result{Kind: kind, RecordID: id, Outcome: Failed, Err: err}
	}
	if inserted {
		return Result{Kind: kind, RecordID: id, Outcome: Inserted}
	}
	return Result{Kind: kind, RecordID: id, Outcome: Updated}
}

// UpsertLocation writes one location.
func (r *Reconciler) UpsertLocation(ctx context.Context, loc *models.Location) Result {
	return r.Upsert(ctx, loc)
}

// UpsertJob writes one job.
func (r *Reconciler) UpsertJob(ctx context.Context, job *models.Job) Result {
	return r.Upsert(ctx, job)
}

// UpsertMedia writes one media record. ResolvedHours must already be set.
func (r *Reconciler) UpsertMedia(ctx context.Context, m *models.Media) Result {
	return r.Upsert(ctx, m)
}

func (r *Reconciler) prepare(record any) (models.Kind, string, func(context.Context) (bool, error), error) {
	switch rec := record.(type) {
	case *models.Location:
		return models.KindLocation, rec.ID, func(ctx context.Context) (bool, error) {
			return r.sink.UpsertLocation(ctx, rec)
		}, requireID(models.KindLocation, rec.ID)
	case *models.Job:
		return models.KindJob, rec.ID, func(ctx context.Context) (bool, error) {
			return r.sink.UpsertJob(ctx, rec)
		}, requireID(models.KindJob, rec.ID)
	case *models.Media:
		return models.KindMedia, rec.ID, func(ctx context.Context) (bool, error) {
			return r.sink.UpsertMedia(ctx, rec)
		}, requireID(models.KindMedia, rec.ID)
	}
	return "", "", nil, fmt.Errorf("reconcile: unsupported record type %T", record)
}

func requireID(kind models.Kind, id string) error {
	if id == "" {
		return &errs.ValidationError{Kind: string(kind), Field: "id", Reason: "missing identifier"}
	}
	return nil
}

// BreakerState reports the current breaker state ("closed", "half-open" or "open").
func (r *Reconciler) BreakerState() string {
	return r.breaker.State().String()
}
