package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/couchcryptid/police-calls-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockFetcher struct {
	batch domain.Batch
	err   error
	calls atomic.Int64
	ran   chan struct{}
}

func (m *mockFetcher) Fetch(context.Context) (domain.Batch, error) {
	m.calls.Add(1)
	if m.ran != nil {
		m.ran <- struct{}{}
	}
	return m.batch, m.err
}

type mockIngester struct {
	authErr  error
	storeErr map[string]error
	mu       sync.Mutex
	got      map[string][]domain.Record
}

func (m *mockIngester) Authorize(context.Context) error { return m.authErr }

func (m *mockIngester) Ingest(_ context.Context, target string, records []domain.Record) (ingest.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.got == nil {
		m.got = make(map[string][]domain.Record)
	}
	m.got[target] = records
	if err := m.storeErr[target]; err != nil {
		return ingest.Result{Store: target}, err
	}
	return ingest.Result{Store: target, Appended: len(records), Records: records}, nil
}

type mockPublisher struct {
	err       error
	published map[string]int
}

func (m *mockPublisher) Publish(_ context.Context, store string, records []domain.Record) error {
	if m.published == nil {
		m.published = make(map[string]int)
	}
	m.published[store] += len(records)
	return m.err
}

// --- fixtures ---

func grandZone() domain.Zone {
	return domain.Zone{
		Name:       "Grand",
		Store:      "GrandCalls",
		FlagColumn: "OnGrand",
		Streets: []domain.Street{
			{Token: "GRAND", Kind: domain.Boundary, Range: &domain.BlockRange{Low: 3600, High: 4000}},
		},
	}
}

func testBatch() domain.Batch {
	return domain.Batch{
		Records: []domain.Record{
			domain.NewRecord("2025-03-01 14:05", "25-1", "3700 GRAND BLVD", "DISTURBANCE", "2025-03-01 14:10:00"),
			domain.NewRecord("2025-03-01 14:06", "25-2", "1200 MARKET ST", "ALARM", "2025-03-01 14:10:00"),
			domain.NewRecord("2025-03-01 14:07", "25-3", "4500 GRAND BLVD", "PARKING", "2025-03-01 14:10:00"),
		},
		Skipped: 1,
	}
}

func newRunner(f pipeline.Fetcher, i pipeline.Ingester, opts ...pipeline.Option) (*pipeline.Runner, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	targets := pipeline.Targets("AllCalls", []domain.Zone{grandZone()})
	return pipeline.New(f, i, targets, slog.Default(), m, opts...), m
}

// --- tests ---

func TestTargets(t *testing.T) {
	zs := []domain.Zone{grandZone()}

	got := pipeline.Targets("AllCalls", zs)
	require.Len(t, got, 2)
	assert.Equal(t, "AllCalls", got[0].Store)
	assert.Nil(t, got[0].Zone)
	assert.Equal(t, "all", got[0].Label())
	assert.Equal(t, "GrandCalls", got[1].Store)
	assert.Equal(t, "Grand", got[1].Label())

	assert.Len(t, pipeline.Targets("", zs), 1, "empty all-calls store disables the target")
}

func TestRunOnce_RoutesToTargets(t *testing.T) {
	ing := &mockIngester{}
	r, m := newRunner(&mockFetcher{batch: testBatch()}, ing)

	rep, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeOK, rep.Outcome)
	assert.Equal(t, 3, rep.Fetched)
	assert.Equal(t, 1, rep.Rejected)
	assert.Equal(t, 4, rep.Appended())
	assert.NotEmpty(t, rep.RunID)

	assert.Len(t, ing.got["AllCalls"], 3)
	grand := ing.got["GrandCalls"]
	require.Len(t, grand, 1)
	assert.Equal(t, "25-1", grand[0].EventID())
	flag, _ := grand[0].Get("OnGrand")
	assert.Equal(t, domain.FlagValue, flag)

	want := []pipeline.StoreReport{
		{Store: "AllCalls", Target: "all", Matched: 3, Appended: 3},
		{Store: "GrandCalls", Target: "Grand", Matched: 1, Appended: 1},
	}
	if diff := cmp.Diff(want, rep.Stores); diff != "" {
		t.Errorf("store reports mismatch (-want +got):\n%s", diff)
	}

	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues(pipeline.OutcomeOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ZoneMatches.WithLabelValues("Grand")), 0)
}

func TestRunOnce_AuthFailureIsFatal(t *testing.T) {
	f := &mockFetcher{batch: testBatch()}
	ing := &mockIngester{authErr: errors.New("invalid_grant")}
	r, _ := newRunner(f, ing)

	rep, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreAuth)
	assert.Equal(t, pipeline.OutcomeAuthError, rep.Outcome)
	assert.Equal(t, int64(0), f.calls.Load(), "nothing fetched after auth failure")
	assert.Empty(t, ing.got)
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestRunOnce_FetchFailureTouchesNoStore(t *testing.T) {
	ing := &mockIngester{}
	r, m := newRunner(&mockFetcher{err: errors.New("connection refused")}, ing)

	rep, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeFetchError, rep.Outcome)
	assert.Contains(t, rep.Error, domain.ErrFetch.Error())
	assert.Empty(t, ing.got)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues(pipeline.OutcomeFetchError)), 0)
}

func TestRunOnce_EmptyBatch(t *testing.T) {
	ing := &mockIngester{}
	r, _ := newRunner(&mockFetcher{batch: domain.Batch{Skipped: 2}}, ing)

	rep, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeEmpty, rep.Outcome)
	assert.Equal(t, 2, rep.Rejected)
	assert.Empty(t, ing.got)
}

func TestRunOnce_StoreFailureContinuesWithOtherTargets(t *testing.T) {
	writeErr := domain.Tag(domain.ErrStoreWrite, errors.New("quota exceeded"))
	ing := &mockIngester{storeErr: map[string]error{"AllCalls": writeErr}}
	r, _ := newRunner(&mockFetcher{batch: testBatch()}, ing)

	rep, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreWrite)
	assert.Equal(t, pipeline.OutcomeStoreError, rep.Outcome)
	assert.Contains(t, ing.got, "GrandCalls", "later targets still run")
	require.Len(t, rep.Stores, 2)
	assert.Contains(t, rep.Stores[0].Error, "quota exceeded")
	assert.Equal(t, 1, rep.Stores[1].Appended)
}

func TestRunOnce_PublishesAppendedRecords(t *testing.T) {
	pub := &mockPublisher{}
	r, _ := newRunner(&mockFetcher{batch: testBatch()}, &mockIngester{}, pipeline.WithPublisher(pub))

	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"AllCalls": 3, "GrandCalls": 1}, pub.published)
}

func TestRunOnce_PublishFailureIsNotFatal(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	r, _ := newRunner(&mockFetcher{batch: testBatch()}, &mockIngester{}, pipeline.WithPublisher(pub))

	rep, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeOK, rep.Outcome)
}

func TestRunOnce_IdempotentAgainstRealIngestor(t *testing.T) {
	mem := ingest.NewMemory()
	ing := ingest.New(mem, slog.Default(), observability.NewMetricsForTesting())
	r, _ := newRunner(&mockFetcher{batch: testBatch()}, ing)

	first, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	second, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, first.Appended())
	assert.True(t, first.Stores[0].Created)
	assert.Equal(t, 0, second.Appended())
	assert.Equal(t, 3, second.Stores[0].Skipped)
	assert.False(t, second.Stores[0].Created)

	rows := mem.Rows("GrandCalls")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Dispatch", "Event", "Address", "Call Type", "Scraped_Timestamp", "OnGrand"}, rows[0])
	assert.Equal(t, "Yes", rows[1][5])
}

func TestLastReportAndReadiness(t *testing.T) {
	r, _ := newRunner(&mockFetcher{batch: testBatch()}, &mockIngester{})

	_, ok := r.LastReport()
	assert.False(t, ok)
	assert.Error(t, r.CheckReadiness(context.Background()))

	rep, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	last, ok := r.LastReport()
	require.True(t, ok)
	assert.Equal(t, rep.RunID, last.RunID)
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRun_TicksOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := &mockFetcher{batch: testBatch(), ran: make(chan struct{}, 4)}
	r, m := newRunner(f, &mockIngester{}, pipeline.WithClock(clock))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, time.Minute) }()

	<-f.ran
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.InDelta(t, 1, testutil.ToFloat64(m.SchedulerAlive), 0)

	clock.Advance(time.Minute)
	<-f.ran

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), f.calls.Load())
	assert.InDelta(t, 0, testutil.ToFloat64(m.SchedulerAlive), 0)
}
