package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "isobar"

// Metrics holds the Prometheus counters, histograms, and gauges for the contour service.
type Metrics struct {
	// Worker metrics.
	Requests        *prometheus.CounterVec // labels: transport={kafka,ws,http}, outcome={ok,empty}
	Fallbacks       *prometheus.CounterVec // labels: reason
	GridCache       *prometheus.CounterVec // labels: result={hit,miss,joined}
	FetchDuration   prometheus.Histogram
	ExtractDuration prometheus.Histogram
	Segments        prometheus.Histogram
	CachedGrids     prometheus.Gauge
	WorkerRunning   prometheus.Gauge

	// Kafka pipeline metrics.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	DecodeErrors            prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// WebSocket metrics.
	WSConnections prometheus.Gauge
	StaleDropped  prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Contour requests answered, by transport and outcome.",
		}, []string{"transport", "outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Empty responses by failure reason.",
		}, []string{"reason"}),
		GridCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cache_total",
			Help:      "Grid lookups by result: hit, miss (fetch issued), joined (fetch already in flight).",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time to download one timestep resource.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}),
		ExtractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Time to interpolate a grid and extract all requested isobars.",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		Segments: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segments_per_response",
			Help:      "Line segments emitted per successful response.",
			Buckets:   []float64{0, 100, 500, 1000, 2500, 5000, 10000, 25000},
		}),
		CachedGrids: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_grids",
			Help:      "Decoded timestep grids held by the worker.",
		}),
		WorkerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_running",
			Help:      "1 when the contour worker loop is active, 0 when shut down.",
		}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the request topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total messages written to the response topic.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Request messages skipped because they could not be decoded.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the Kafka pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-compute-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open WebSocket sessions.",
		}),
		StaleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_dropped_total",
			Help:      "Responses discarded because a newer one was already delivered.",
		}),
	}

	prometheus.MustRegister(
		m.Requests,
		m.Fallbacks,
		m.GridCache,
		m.FetchDuration,
		m.ExtractDuration,
		m.Segments,
		m.CachedGrids,
		m.WorkerRunning,
		m.MessagesConsumed,
		m.MessagesProduced,
		m.DecodeErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.WSConnections,
		m.StaleDropped,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Requests:                prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "requests_total"}, []string{"transport", "outcome"}),
		Fallbacks:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fallbacks_total"}, []string{"reason"}),
		GridCache:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "grid_cache_total"}, []string{"result"}),
		FetchDuration:           prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "fetch_duration_seconds"}),
		ExtractDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "extract_duration_seconds"}),
		Segments:                prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "segments_per_response"}),
		CachedGrids:             prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "cached_grids"}),
		WorkerRunning:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "worker_running"}),
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_consumed_total"}),
		MessagesProduced:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_produced_total"}),
		DecodeErrors:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "decode_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_processing_duration_seconds"}),
		WSConnections:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ws_connections"}),
		StaleDropped:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "stale_responses_dropped_total"}),
	}
}
