// Package ingest appends records to a tabular store without ever writing the
// same event identifier twice.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Result summarizes one Ingest call.
type Result struct {
	Store    string
	Appended int
	Skipped  int
	Created  bool
	Location string
	// Records holds the appended records in append order.
	Records []domain.Record
}

// Ingestor performs duplicate-safe incremental appends.
type Ingestor struct {
	opener  Opener
	limiter *rate.Limiter
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithAppendDelay paces row appends to at most one per delay. Zero disables pacing.
func WithAppendDelay(d time.Duration) Option {
	return func(i *Ingestor) {
		if d <= 0 {
			i.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		i.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithClock sets the clock used for timing.
func WithClock(c clockwork.Clock) Option {
	return func(i *Ingestor) { i.clock = c }
}

// New creates an Ingestor over opener.
func New(opener Opener, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Ingestor {
	i := &Ingestor{
		opener:  opener,
		limiter: rate.NewLimiter(rate.Inf, 1),
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Authorize delegates to the opener. Any failure is tagged ErrStoreAuth.
func (i *Ingestor) Authorize(ctx context.Context) error {
	if err := i.opener.Authorize(ctx); err != nil {
		return domain.Tag(domain.ErrStoreAuth, err)
	}
	return nil
}

// Ingest appends the records whose event identifier the target store does not
// yet hold, in input order, writing the header first when the store has none.
//
// On a write failure the partial Result is returned alongside an error tagged
// ErrStoreWrite; rows appended before the failure stay in the store. Every
// successful call logs exactly one info line.
func (i *Ingestor) Ingest(ctx context.Context, target string, records []domain.Record) (Result, error) {
	start := i.clock.Now()
	res := Result{Store: target}
	defer func() {
		i.metrics.IngestDuration.WithLabelValues(target).Observe(i.clock.Since(start).Seconds())
	}()

	store, h, err := i.opener.OpenOrCreate(ctx, target)
	if err != nil {
		i.metrics.StoreErrors.WithLabelValues(target, "open").Inc()
		if errors.Is(err, domain.ErrStoreAuth) {
			return res, err
		}
		return res, domain.Tag(domain.ErrStoreWrite, eris.Wrapf(err, "open store %s", target))
	}
	res.Created = h.Created
	res.Location = h.Location

	table, err := store.ReadAll(ctx)
	if err != nil {
		i.metrics.StoreErrors.WithLabelValues(target, "read").Inc()
		return res, domain.Tag(domain.ErrStoreRead, eris.Wrapf(err, "read store %s", target))
	}

	known := make(map[string]bool, len(table.Rows))
	for _, row := range table.Rows {
		known[row[domain.FieldEvent]] = true
	}

	header := table.Header
	if len(header) == 0 && len(records) > 0 {
		header = records[0].Names()
		if err := i.append(ctx, store, header); err != nil {
			i.metrics.StoreErrors.WithLabelValues(target, "write").Inc()
			return res, domain.Tag(domain.ErrStoreWrite, eris.Wrapf(err, "write header to %s", target))
		}
	}

	for _, rec := range records {
		id := rec.EventID()
		if known[id] {
			res.Skipped++
			continue
		}
		err := i.append(ctx, store, rowValues(header, rec))
		switch {
		case errors.Is(err, ErrDuplicateRow):
			known[id] = true
			res.Skipped++
			continue
		case err != nil:
			i.metrics.StoreErrors.WithLabelValues(target, "write").Inc()
			i.observe(res)
			return res, domain.Tag(domain.ErrStoreWrite, eris.Wrapf(err, "append event %s to %s", id, target))
		}
		known[id] = true
		res.Appended++
		res.Records = append(res.Records, rec)
	}

	i.observe(res)
	i.logger.Info("store ingest complete",
		"store", target,
		"appended", res.Appended,
		"skipped", res.Skipped,
		"created", res.Created,
		"location", res.Location,
		"duration", i.clock.Since(start),
	)
	return res, nil
}

func (i *Ingestor) append(ctx context.Context, store Store, values []string) error {
	if err := i.limiter.Wait(ctx); err != nil {
		return err
	}
	return store.AppendRow(ctx, values)
}

func (i *Ingestor) observe(res Result) {
	i.metrics.RowsAppended.WithLabelValues(res.Store).Add(float64(res.Appended))
	i.metrics.RowsSkipped.WithLabelValues(res.Store).Add(float64(res.Skipped))
}

// rowValues lays rec out in header order. Header names the record lacks are
// written empty; record fields the header lacks are dropped.
func rowValues(header []string, rec domain.Record) []string {
	out := make([]string, len(header))
	for i, name := range header {
		out[i], _ = rec.Get(name)
	}
	return out
}
