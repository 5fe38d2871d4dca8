package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "regime_classifier"

// Metrics holds the Prometheus counters, histograms, and gauges for a
// classification run.
type Metrics struct {
	ReachesClassified *prometheus.CounterVec // labels: regime
	ReachesSkipped    prometheus.Counter
	RunInProgress     prometheus.Gauge
	RunDuration       prometheus.Histogram
	Runs              *prometheus.CounterVec // labels: outcome={completed,aborted}

	// Sampling metrics.
	SampleRequests *prometheus.CounterVec   // labels: covariate, outcome={value,nodata,error}
	SampleCache    *prometheus.CounterVec   // labels: result={hit,miss}
	SampleDuration *prometheus.HistogramVec // labels: covariate
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReachesClassified,
		m.ReachesSkipped,
		m.RunInProgress,
		m.RunDuration,
		m.Runs,
		m.SampleRequests,
		m.SampleCache,
		m.SampleDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReachesClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaches_classified_total",
			Help:      "Reaches assigned a regime, by regime.",
		}, []string{"regime"}),
		ReachesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaches_skipped_total",
			Help:      "Reaches skipped because a required sample had no data.",
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a network is being classified, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a complete network classification.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Classification runs by outcome.",
		}, []string{"outcome"}),
		SampleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_requests_total",
			Help:      "Raster samples requested by covariate and outcome.",
		}, []string{"covariate", "outcome"}),
		SampleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_cache_total",
			Help:      "Sample cache lookups by result.",
		}, []string{"result"}),
		SampleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sample_duration_seconds",
			Help:      "Raster sample latency by covariate.",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"covariate"}),
	}
}
