// Package ml provides the model gateways that turn a race into ranked probabilities.
package ml

import "errors"

var (
	// ErrInferenceNotFound indicates the inference service has no data for the race
	ErrInferenceNotFound = errors.New("race not found in inference service")

	// ErrInferenceRejected indicates the inference service refused the request with a 4xx status
	ErrInferenceRejected = errors.New("inference request rejected")

	// ErrInferenceUnavailable indicates the inference service answered with a server error
	ErrInferenceUnavailable = errors.New("inference service unavailable")

	// ErrInvalidResponse indicates invalid response from the inference service
	ErrInvalidResponse = errors.New("invalid response from inference service")

	// ErrCircuitOpen indicates calls are rejected while the circuit breaker cools down
	ErrCircuitOpen = errors.New("inference circuit breaker is open")

	// ErrUnknownGateway indicates an unsupported gateway kind in configuration
	ErrUnknownGateway = errors.New("unknown model gateway")
)
