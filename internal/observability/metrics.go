package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "incident_geocode"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Ingestion pipeline metrics.
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Resolution metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,no_match,error}
	ProviderDuration *prometheus.HistogramVec // labels: provider
	ProvidersEnabled *prometheus.GaugeVec     // labels: provider
	TokenExchanges   *prometheus.CounterVec   // labels: outcome={success,error}
	Resolutions      *prometheus.CounterVec   // labels: strategy

	// Cache metrics.
	CacheLookups     *prometheus.CounterVec // labels: tier={memory,edge,remote}, result={hit,miss,error}
	CacheWriteErrors *prometheus.CounterVec // labels: tier

	// Batch orchestrator metrics.
	GeocodeBatchSize     prometheus.Histogram
	GeocodeBatchSelected prometheus.Histogram
	GeocodeBatchDuration prometheus.Histogram
	GeocodeInFlight      prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ProviderRequests,
		m.ProviderDuration,
		m.ProvidersEnabled,
		m.TokenExchanges,
		m.Resolutions,
		m.CacheLookups,
		m.CacheWriteErrors,
		m.GeocodeBatchSize,
		m.GeocodeBatchSelected,
		m.GeocodeBatchDuration,
		m.GeocodeInFlight,
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
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total incident messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total geocoded incidents written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total incident messages that could not be parsed or normalized.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the ingestion pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-geocode-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Geocoding provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Geocoding provider call duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		ProvidersEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_enabled",
			Help:      "1 when the provider is part of the fallback chain, 0 otherwise.",
		}, []string{"provider"}),
		TokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchanges_total",
			Help:      "Premium provider access token exchanges by outcome.",
		}, []string{"outcome"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Completed resolutions by final strategy.",
		}, []string{"strategy"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		CacheWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_write_errors_total",
			Help:      "Failed background cache writes and deletes by tier.",
		}, []string{"tier"}),
		GeocodeBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_batch_candidates",
			Help:      "Candidates per geocode batch request.",
			Buckets:   []float64{1, 10, 25, 50, 100, 150, 200, 500},
		}),
		GeocodeBatchSelected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_batch_selected",
			Help:      "Candidates actually resolved per batch after the maxGeocode cap.",
			Buckets:   []float64{0, 1, 10, 25, 50, 100, 150, 200},
		}),
		GeocodeBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_batch_duration_seconds",
			Help:      "Wall-clock duration of a geocode batch.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		GeocodeInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_in_flight",
			Help:      "Resolutions currently in progress across all batches.",
		}),
	}
}
