package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Classification metrics.
	ClusterResolutions *prometheus.CounterVec // labels: outcome={resolved,no_codes,no_match}
	CorrelationIDs     *prometheus.CounterVec // labels: outcome={generated,missing_fields,error}

	// Geography resolution metrics.
	GeoResolutions *prometheus.CounterVec // labels: source={admin_units,country_name,point,none}
	GeoEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_etl",
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_etl",
			Name:      "messages_produced_total",
			Help:      "Total messages written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_etl",
			Name:      "transform_errors_total",
			Help:      "Total transformation failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "disaster_etl",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "disaster_etl",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "disaster_etl",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ClusterResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_etl",
			Name:      "cluster_resolutions_total",
			Help:      "Hazard cluster resolutions by outcome.",
		}, []string{"outcome"}),
		CorrelationIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_etl",
			Name:      "correlation_ids_total",
			Help:      "Correlation id generations by outcome.",
		}, []string{"outcome"}),
		GeoResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_etl",
			Name:      "geo_resolutions_total",
			Help:      "Geometry resolutions by winning geography source.",
		}, []string{"source"}),
		GeoEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "disaster_etl",
			Name:      "geo_enabled",
			Help:      "1 when geometry resolution is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ClusterResolutions,
		m.CorrelationIDs,
		m.GeoResolutions,
		m.GeoEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "disaster_etl", Name: "messages_consumed_total"}),
		MessagesProduced:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "disaster_etl", Name: "messages_produced_total"}),
		TransformErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "disaster_etl", Name: "transform_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "disaster_etl", Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "disaster_etl", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "disaster_etl", Name: "batch_processing_duration_seconds"}),
		ClusterResolutions:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "disaster_etl", Name: "cluster_resolutions_total"}, []string{"outcome"}),
		CorrelationIDs:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "disaster_etl", Name: "correlation_ids_total"}, []string{"outcome"}),
		GeoResolutions:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "disaster_etl", Name: "geo_resolutions_total"}, []string{"source"}),
		GeoEnabled:              prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "disaster_etl", Name: "geo_enabled"}),
	}
}
