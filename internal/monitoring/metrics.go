package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "damsync"

// Metrics holds the Prometheus counters and histograms for sync runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	MeasurementsWritten prometheus.Counter
	DuplicatesSkipped   *prometheus.CounterVec // labels: kind={catalog,measurement}
	DamsReconciled      *prometheus.CounterVec // labels: result={created,updated}
	DayFailures         prometheus.Counter
	FetchDuration       *prometheus.HistogramVec // labels: outcome={success,error}
	LastSuccess         *prometheus.GaugeVec     // labels: kind={catalog,measurement}
}

func newMetrics() *Metrics {
	return &Metrics{
		MeasurementsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_written_total",
			Help:      "Daily measurements inserted by sync.",
		}),
		DuplicatesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Records skipped because they already existed.",
		}, []string{"kind"}),
		DamsReconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dams_reconciled_total",
			Help:      "Catalog entries created or overwritten by sync.",
		}, []string{"result"}),
		DayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "day_failures_total",
			Help:      "Measurement sync days that stopped early.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Upstream report fetch duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync by kind.",
		}, []string{"kind"}),
	}
}

// NewMetrics creates and registers all sync metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.MeasurementsWritten,
		m.DuplicatesSkipped,
		m.DamsReconciled,
		m.DayFailures,
		m.FetchDuration,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveFetch records one upstream fetch.
func (m *Metrics) ObserveFetch(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.FetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordDay records the result of one measurement sync day.
func (m *Metrics) RecordDay(written, skipped int, failed bool, at time.Time) {
	if m == nil {
		return
	}
	m.MeasurementsWritten.Add(float64(written))
	m.DuplicatesSkipped.WithLabelValues("measurement").Add(float64(skipped))
	if failed {
		m.DayFailures.Inc()
		return
	}
	m.LastSuccess.WithLabelValues("measurement").Set(float64(at.Unix()))
}

// RecordCatalog records the result of one catalog sync.
func (m *Metrics) RecordCatalog(created, updated, skipped int, at time.Time) {
	if m == nil {
		return
	}
	m.DamsReconciled.WithLabelValues("created").Add(float64(created))
	m.DamsReconciled.WithLabelValues("updated").Add(float64(updated))
	m.DuplicatesSkipped.WithLabelValues("catalog").Add(float64(skipped))
	m.LastSuccess.WithLabelValues("catalog").Set(float64(at.Unix()))
}
