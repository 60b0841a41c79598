package metrics

import "github.com/prometheus/client_golang/prometheus"

// Scheduled run metrics
var (
	ScheduledRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_runs_total",
		Help:      "Total number of scheduler ticks by status",
	}, []string{"status"}) // success, failure, skipped

	ScheduledPredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_predictions_total",
		Help:      "Predictions attempted by the scheduler by outcome",
	}, []string{"outcome"})

	ScheduledRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scheduled_run_duration_seconds",
		Help:      "Duration of scheduler ticks in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

func registerSchedulerMetrics(r *prometheus.Registry) {
	r.MustRegister(ScheduledRunsTotal)
	r.MustRegister(ScheduledPredictionsTotal)
	r.MustRegister(ScheduledRunDuration)
}

// RecordScheduledRun records one scheduler tick.
func RecordScheduledRun(status string, durationSeconds float64) {
	ScheduledRunsTotal.WithLabelValues(status).Inc()
	ScheduledRunDuration.Observe(durationSeconds)
}

// RecordScheduledPrediction records a prediction attempted by the scheduler.
func RecordScheduledPrediction(outcome string) {
	ScheduledPredictionsTotal.WithLabelValues(outcome).Inc()
}
