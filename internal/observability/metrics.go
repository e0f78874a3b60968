package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation job.
type Metrics struct {
	ReportsProcessed  prometheus.Counter
	ReportsDropped    prometheus.Counter
	PagesRead         prometheus.Counter
	BucketsComputed   prometheus.Gauge
	AggregatesWritten prometheus.Counter
	JobRunning        prometheus.Gauge

	PageSize           prometheus.Histogram
	BatchCommitSeconds prometheus.Histogram
}

// NewMetrics creates and registers all job metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ReportsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noise_etl",
			Name:      "reports_processed_total",
			Help:      "Raw noise reports folded into buckets.",
		}),
		ReportsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noise_etl",
			Name:      "reports_dropped_total",
			Help:      "Raw noise reports skipped as malformed.",
		}),
		PagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noise_etl",
			Name:      "pages_read_total",
			Help:      "Source pages fetched during the scan.",
		}),
		BucketsComputed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "noise_etl",
			Name:      "buckets_computed",
			Help:      "Hourly buckets produced by the last run.",
		}),
		AggregatesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noise_etl",
			Name:      "aggregates_written_total",
			Help:      "Aggregate documents committed to the sink.",
		}),
		JobRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "noise_etl",
			Name:      "job_running",
			Help:      "1 while the aggregation job is active.",
		}),
		PageSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "noise_etl",
			Name:      "page_size",
			Help:      "Number of reports per source page.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2000},
		}),
		BatchCommitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "noise_etl",
			Name:      "batch_commit_duration_seconds",
			Help:      "Duration of one sink batch commit.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}

	prometheus.MustRegister(
		m.ReportsProcessed,
		m.ReportsDropped,
		m.PagesRead,
		m.BucketsComputed,
		m.AggregatesWritten,
		m.JobRunning,
		m.PageSize,
		m.BatchCommitSeconds,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ReportsProcessed:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "noise_etl", Name: "reports_processed_total"}),
		ReportsDropped:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "noise_etl", Name: "reports_dropped_total"}),
		PagesRead:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "noise_etl", Name: "pages_read_total"}),
		BucketsComputed:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "noise_etl", Name: "buckets_computed"}),
		AggregatesWritten:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "noise_etl", Name: "aggregates_written_total"}),
		JobRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "noise_etl", Name: "job_running"}),
		PageSize:           prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "noise_etl", Name: "page_size"}),
		BatchCommitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "noise_etl", Name: "batch_commit_duration_seconds"}),
	}
}
