// Package metrics provides the Prometheus registry for prediction runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "race_predictor"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PredictionRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_runs_total",
		Help:      "Total number of prediction runs by outcome",
	}, []string{"outcome"}) // completed or an error kind
	PredictionAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_attempts_total",
		Help:      "Total number of prediction attempts by outcome",
	}, []string{"outcome"})
	PredictionsPersistedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_persisted_total",
		Help:      "Total number of predictions committed",
	})
	EventPublishFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "Total number of prediction events that failed to publish",
	})
	SnapshotCacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_cache_lookups_total",
		Help:      "Race snapshot cache lookups by result",
	}, []string{"result"}) // hit, miss
)

// Histogram metrics
var (
	PredictionRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_run_duration_seconds",
		Help:      "Wall-clock duration of prediction runs in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	PredictionAttemptsPerRun = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_attempts_per_run",
		Help:      "Number of attempts needed per prediction run",
		Buckets:   []float64{1, 2, 3, 4, 5, 8, 11},
	})
	InferenceElapsedMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "inference_reported_elapsed_ms",
		Help:      "Inference time reported by the model gateway in milliseconds",
		Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PredictionRunsTotal)
		registry.MustRegister(PredictionAttemptsTotal)
		registry.MustRegister(PredictionsPersistedTotal)
		registry.MustRegister(EventPublishFailuresTotal)
		registry.MustRegister(SnapshotCacheLookupsTotal)

		registry.MustRegister(PredictionRunDuration)
		registry.MustRegister(PredictionAttemptsPerRun)
		registry.MustRegister(InferenceElapsedMs)

		registerSchedulerMetrics(registry)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler. Gateway metrics registered on
// the default registry are served alongside the prediction metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{GetRegistry(), prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	)
}

// RecordRun records the outcome of a prediction run.
func RecordRun(outcome string, attempts int, durationSeconds float64) {
	PredictionRunsTotal.WithLabelValues(outcome).Inc()
	PredictionAttemptsPerRun.Observe(float64(attempts))
	PredictionRunDuration.Observe(durationSeconds)
}

// RecordAttempt records the outcome of one attempt.
func RecordAttempt(outcome string) {
	PredictionAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordPersisted records a committed prediction and its reported inference time.
func RecordPersisted(elapsedMs int64) {
	PredictionsPersistedTotal.Inc()
	InferenceElapsedMs.Observe(float64(elapsedMs))
}

// RecordEventPublishFailure records a failed event publish.
func RecordEventPublishFailure() {
	EventPublishFailuresTotal.Inc()
}

// RecordSnapshotCacheLookup records a snapshot cache hit or miss.
func RecordSnapshotCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SnapshotCacheLookupsTotal.WithLabelValues(result).Inc()
}
