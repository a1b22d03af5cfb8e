package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake"

// Metrics holds the Prometheus collectors for the ingestion pipeline.
type Metrics struct {
	Runs          *prometheus.CounterVec // labels: result={ok,error,overlap}
	RunDuration   prometheus.Histogram
	RunInProgress prometheus.Gauge

	EventsInserted  prometheus.Counter
	EventsDuplicate prometheus.Counter
	RowsSkipped     prometheus.Counter
	RowsFiltered    prometheus.Counter

	FetchErrors *prometheus.CounterVec // labels: scope={index,year,month}
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Ingestion runs by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete ingestion run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while an ingestion run is active, 0 otherwise.",
		}),
		EventsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_inserted_total",
			Help:      "Events stored for the first time.",
		}),
		EventsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_duplicate_total",
			Help:      "Candidates discarded because the event was already stored.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Table rows skipped as malformed.",
		}),
		RowsFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_filtered_total",
			Help:      "Table rows dropped by the magnitude floor.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Source page fetch failures by page scope.",
		}, []string{"scope"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.RunDuration,
		m.RunInProgress,
		m.EventsInserted,
		m.EventsDuplicate,
		m.RowsSkipped,
		m.RowsFiltered,
		m.FetchErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
