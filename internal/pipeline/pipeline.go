// Package pipeline runs the fetch, classify and ingest sequence, once or on
// an interval.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Fetcher retrieves the current calls listing.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.Batch, error)
}

// Ingester appends records to named stores.
type Ingester interface {
	Authorize(ctx context.Context) error
	Ingest(ctx context.Context, target string, records []domain.Record) (ingest.Result, error)
}

// Publisher forwards newly appended records downstream.
type Publisher interface {
	Publish(ctx context.Context, store string, records []domain.Record) error
}

// StoreReport is the outcome of one target within a run.
type StoreReport struct {
	Store    string `json:"store"`
	Target   string `json:"target"`
	Matched  int    `json:"matched"`
	Appended int    `json:"appended"`
	Skipped  int    `json:"skipped"`
	Created  bool   `json:"created"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report summarizes one run.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Fetched   int           `json:"fetched"`
	Rejected  int           `json:"rejected"`
	Outcome   string        `json:"outcome"`
	Stores    []StoreReport `json:"stores,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Appended returns the total rows appended across targets.
func (r Report) Appended() int {
	n := 0
	for _, s := range r.Stores {
		n += s.Appended
	}
	return n
}

// Run outcomes, used as the runs_total label.
const (
	OutcomeOK         = "ok"
	OutcomeEmpty      = "empty"
	OutcomeFetchError = "fetch_error"
	OutcomeAuthError  = "auth_error"
	OutcomeStoreError = "store_error"
)

// Runner orchestrates runs.
type Runner struct {
	fetcher   Fetcher
	ingester  Ingester
	publisher Publisher
	router    *Router
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	ready atomic.Bool
	mu    sync.Mutex
	last  *Report
}

// Option configures a Runner.
type Option func(*Runner)

// WithPublisher forwards appended records to p after each ingest.
func WithPublisher(p Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithClock sets the clock used for timing and scheduling.
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// New creates a Runner writing to targets.
func New(f Fetcher, i Ingester, targets []Target, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Runner {
	r := &Runner{
		fetcher:  f,
		ingester: i,
		router:   NewRouter(targets),
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckReadiness returns nil once a run has completed.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no run has completed yet")
	}
	return nil
}

// LastReport returns the report of the most recent run.
func (r *Runner) LastReport() (Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Report{}, false
	}
	return *r.last, true
}

// RunOnce performs a single run.
//
// A store authorization failure is returned before anything is fetched. A
// fetch failure is logged and ends the run without touching any store; it is
// not returned. Per-target ingest failures are logged, the remaining targets
// still run, and the failures are returned joined.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	start := r.clock.Now()
	rep := Report{RunID: uuid.NewString(), StartedAt: start}
	logger := r.logger.With("run_id", rep.RunID)

	err := r.runOnce(ctx, logger, &rep)

	rep.Duration = r.clock.Since(start)
	if err != nil {
		rep.Error = err.Error()
	}
	r.metrics.RunsTotal.WithLabelValues(rep.Outcome).Inc()
	r.metrics.RunDuration.Observe(rep.Duration.Seconds())

	r.mu.Lock()
	r.last = &rep
	r.mu.Unlock()
	if rep.Outcome != OutcomeAuthError {
		r.ready.Store(true)
	}
	return rep, err
}

func (r *Runner) runOnce(ctx context.Context, logger *slog.Logger, rep *Report) error {
	if err := r.ingester.Authorize(ctx); err != nil {
		rep.Outcome = OutcomeAuthError
		logger.Error("store authorization failed", "error", err)
		return domain.Tag(domain.ErrStoreAuth, err)
	}

	batch, err := r.fetcher.Fetch(ctx)
	if err != nil {
		rep.Outcome = OutcomeFetchError
		err = domain.Tag(domain.ErrFetch, err)
		rep.Error = err.Error()
		logger.Error("fetch failed, no stores updated", "error", err)
		return nil
	}
	rep.Fetched = batch.Len()
	rep.Rejected = batch.Skipped

	if batch.Len() == 0 {
		rep.Outcome = OutcomeEmpty
		logger.Warn("no calls fetched, no stores updated", "rejected", batch.Skipped)
		return nil
	}

	var errs []error
	for _, t := range r.router.Targets() {
		records := r.router.Route(t, batch.Records)
		if t.Zone != nil {
			r.metrics.ZoneMatches.WithLabelValues(t.Zone.Name).Add(float64(len(records)))
		}
		sr := StoreReport{Store: t.Store, Target: t.Label(), Matched: len(records)}

		res, err := r.ingester.Ingest(ctx, t.Store, records)
		sr.Appended, sr.Skipped = res.Appended, res.Skipped
		sr.Created, sr.Location = res.Created, res.Location
		if err != nil {
			sr.Error = err.Error()
			errs = append(errs, err)
			logger.Error("ingest failed", "store", t.Store, "target", t.Label(), "appended", res.Appended, "error", err)
		}
		if res.Created {
			logger.Info("store created", "store", t.Store, "location", res.Location)
		}
		r.publish(ctx, logger, t.Store, res.Records)
		rep.Stores = append(rep.Stores, sr)
	}

	rep.Outcome = OutcomeOK
	if len(errs) > 0 {
		rep.Outcome = OutcomeStoreError
	}
	logger.Info("run complete",
		"outcome", rep.Outcome,
		"fetched", rep.Fetched,
		"rejected", rep.Rejected,
		"appended", rep.Appended(),
		"targets", len(rep.Stores),
		"duration", r.clock.Since(rep.StartedAt),
	)
	return errors.Join(errs...)
}

// publish forwards appended records. Failures are only logged.
func (r *Runner) publish(ctx context.Context, logger *slog.Logger, store string, records []domain.Record) {
	if r.publisher == nil || len(records) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, store, records); err != nil {
		logger.Warn("publish failed", "store", store, "count", len(records), "error", err)
	}
}

// Run performs a run immediately and then once per interval until ctx is
// cancelled. Runs never overlap.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	r.logger.Info("scheduler started", "interval", interval, "targets", len(r.router.Targets()))
	r.metrics.SchedulerAlive.Set(1)
	defer r.metrics.SchedulerAlive.Set(0)

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}
