package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "police_calls"

// Metrics holds the Prometheus counters, histograms, and gauges for the scraper.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec // labels: outcome={ok,empty,fetch_error,auth_error,store_error}
	RunDuration    prometheus.Histogram
	SchedulerAlive prometheus.Gauge

	// Fetch metrics.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,error}
	FetchDuration prometheus.Histogram
	RecordsParsed prometheus.Counter
	RowsRejected  prometheus.Counter

	// Store metrics, labelled by target store name.
	RowsAppended   *prometheus.CounterVec
	RowsSkipped    *prometheus.CounterVec
	StoreErrors    *prometheus.CounterVec // labels: store, op={open,read,write}
	IngestDuration *prometheus.HistogramVec

	// Zone classification.
	ZoneMatches *prometheus.CounterVec // labels: zone

	RecordsPublished prometheus.Counter
}

// NewMetrics creates and registers all scraper metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed scrape runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-classify-ingest run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SchedulerAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 while the interval scheduler is active, 0 when shut down.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Source page requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Source page request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Table rows parsed into records.",
		}),
		RowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Table rows skipped for having too few cells.",
		}),
		RowsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_appended_total",
			Help:      "Data rows appended per store.",
		}, []string{"store"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Records skipped as already present per store.",
		}, []string{"store"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store failures by store and operation.",
		}, []string{"store", "op"}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of one incremental ingest per store.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"store"}),
		ZoneMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_matches_total",
			Help:      "Records classified inside each zone.",
		}, []string{"zone"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Appended records published to Kafka.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunDuration,
		m.SchedulerAlive,
		m.FetchRequests,
		m.FetchDuration,
		m.RecordsParsed,
		m.RowsRejected,
		m.RowsAppended,
		m.RowsSkipped,
		m.StoreErrors,
		m.IngestDuration,
		m.ZoneMatches,
		m.RecordsPublished,
	}
}
