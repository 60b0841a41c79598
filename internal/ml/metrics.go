// Package ml provides Prometheus metrics for model gateways.
package ml

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InferenceRequestsTotal tracks gateway calls by outcome
	InferenceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_requests_total",
			Help: "Total number of model gateway inference calls",
		},
		[]string{"gateway", "outcome"}, // success, error kind
	)

	// InferenceLatency tracks wall-clock gateway latency
	InferenceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "Model gateway inference latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway"},
	)

	// InferenceRunners tracks field sizes sent to the gateways
	InferenceRunners = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inference_runners",
			Help:    "Number of runner entries per inference call",
			Buckets: []float64{2, 4, 6, 8, 10, 12, 14, 16, 18, 20},
		},
	)

	// RemoteAttemptsTotal tracks individual HTTP attempts against the inference service
	RemoteAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inference_remote_attempts_total",
			Help: "Total number of HTTP attempts made to the inference service",
		},
	)

	// RemoteErrorsTotal tracks remote failures by type
	RemoteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_remote_errors_total",
			Help: "Total number of failed inference service calls",
		},
		[]string{"error_type"}, // not_found, server_error, client_error, timeout, network, decode
	)

	// CircuitStateGauge tracks the remote circuit breaker state (0 closed, 1 half-open, 2 open)
	CircuitStateGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inference_circuit_state",
			Help: "State of the inference circuit breaker",
		},
	)
)
