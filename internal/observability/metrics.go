package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sonde_coloc"

// Metrics holds the Prometheus counters, histograms, and gauges for a colocation run.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	RunsSkipped     prometheus.Counter
	RunDuration     prometheus.Histogram

	// Extraction.
	SoundingsRead prometheus.Counter
	DayFiles      *prometheus.CounterVec // labels: result={read,missing,error}
	SondesFetched prometheus.Counter

	// Pair processing.
	PairsMatched prometheus.Counter
	PairOutcomes *prometheus.CounterVec // labels: outcome={accepted,rejected,failed}
	PairDuration prometheus.Histogram

	// Sonde source client.
	SondeRequests    *prometheus.CounterVec // labels: outcome={success,error,retry}
	SondeCache       *prometheus.CounterVec // labels: result={hit,miss}
	SondeAPIDuration prometheus.Histogram

	// Downstream publishers.
	RecordsPublished *prometheus.CounterVec // labels: sink
	PublishErrors    *prometheus.CounterVec // labels: sink

	// Gatherer collects everything above, for pushes.
	Gatherer prometheus.Gatherer
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a colocation run is active, 0 otherwise.",
		}),
		RunsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_skipped_total",
			Help:      "Runs skipped because their artifact already existed.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete colocation run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		SoundingsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "soundings_read_total",
			Help:      "Quality-screened satellite soundings read from product files.",
		}),
		DayFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "day_files_total",
			Help:      "Satellite day files by read result.",
		}, []string{"result"}),
		SondesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sondes_fetched_total",
			Help:      "Ozonesonde reports returned by the sonde source.",
		}),
		PairsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_matched_total",
			Help:      "Colocated sonde/sounding candidate pairs.",
		}),
		PairOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pair_outcomes_total",
			Help:      "Processed pairs by outcome.",
		}, []string{"outcome"}),
		PairDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pair_duration_seconds",
			Help:      "Time to harmonize, transform and compare one pair.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		SondeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sonde_requests_total",
			Help:      "Sonde archive API requests by outcome.",
		}, []string{"outcome"}),
		SondeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sonde_cache_total",
			Help:      "Sonde query cache lookups by result.",
		}, []string{"result"}),
		SondeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sonde_api_duration_seconds",
			Help:      "Sonde archive API page request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RecordsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Comparison records delivered to downstream sinks.",
		}, []string{"sink"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed deliveries to downstream sinks.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.RunsSkipped,
		m.RunDuration,
		m.SoundingsRead,
		m.DayFiles,
		m.SondesFetched,
		m.PairsMatched,
		m.PairOutcomes,
		m.PairDuration,
		m.SondeRequests,
		m.SondeCache,
		m.SondeAPIDuration,
		m.RecordsPublished,
		m.PublishErrors,
	}
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	m.Gatherer = prometheus.DefaultGatherer
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	m.Gatherer = reg
	return m
}
