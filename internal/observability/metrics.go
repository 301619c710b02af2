package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "radar_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	NotificationsConsumed prometheus.Counter
	ProductsProduced      prometheus.Counter
	TransformErrors       prometheus.Counter
	DecodeErrors          *prometheus.CounterVec // labels: format
	FilesDecoded          *prometheus.CounterVec // labels: format
	PipelineRunning       prometheus.Gauge

	// Product metrics.
	GridDuration *prometheus.HistogramVec // labels: product={CR,CAPPI}

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Station registry metrics.
	RegistryRequests    *prometheus.CounterVec // labels: outcome={success,error,not_found}
	RegistryCache       *prometheus.CounterVec // labels: result={hit,miss}
	RegistryAPIDuration prometheus.Histogram
	RegistryEnabled     prometheus.Gauge
}

func newMetrics(help bool) *Metrics {
	h := func(s string) string {
		if help {
			return s
		}
		return ""
	}
	return &Metrics{
		NotificationsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_consumed_total",
			Help:      h("Total file notifications read from the source topic."),
		}),
		ProductsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_produced_total",
			Help:      h("Total product events written to the sink topic."),
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      h("Notifications skipped because no product event could be built."),
		}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      h("Base-data files that failed to decode, by detected format."),
		}, []string{"format"}),
		FilesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_decoded_total",
			Help:      h("Base-data files decoded into volumes, by format."),
		}, []string{"format"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      h("1 when the pipeline is active, 0 when shut down."),
		}),
		GridDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grid_duration_seconds",
			Help:      h("Duration of gridding one product."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"product"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      h("Number of notifications per batch extracted from Kafka."),
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      h("Duration of a complete batch extract-transform-load cycle."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RegistryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_requests_total",
			Help:      h("Station registry API requests by outcome."),
		}, []string{"outcome"}),
		RegistryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_cache_total",
			Help:      h("Station registry cache lookups by result."),
		}, []string{"result"}),
		RegistryAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_api_duration_seconds",
			Help:      h("Station registry API request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		RegistryEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_enabled",
			Help:      h("1 when a station registry is configured, 0 otherwise."),
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.NotificationsConsumed,
		m.ProductsProduced,
		m.TransformErrors,
		m.DecodeErrors,
		m.FilesDecoded,
		m.PipelineRunning,
		m.GridDuration,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.RegistryRequests,
		m.RegistryCache,
		m.RegistryAPIDuration,
		m.RegistryEnabled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
