package ml

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-predictor/internal/models"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// CircuitClosed means calls pass through
	CircuitClosed CircuitState = iota
	// CircuitHalfOpen means one probe call is allowed after cooldown
	CircuitHalfOpen
	// CircuitOpen means calls are rejected
	CircuitOpen
)

// String returns string representation of circuit state
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	case CircuitOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig defines circuit breaker thresholds
type CircuitBreakerConfig struct {
	MaxFailures    int
	FailureWindow  time.Duration
	CooldownPeriod time.Duration
}

// CircuitBreaker stops calling a failing inference service for a cooldown
// period. Only model errors and timeouts count as failures. A race the
// service rejects (404 or another 4xx) shows the service is answering and
// counts as a success.
type CircuitBreaker struct {
	next   ModelGateway
	config CircuitBreakerConfig
	logger *logrus.Entry
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	openedAt        time.Time
	probeInFlight   bool
}

// NewCircuitBreaker wraps a gateway with a circuit breaker
func NewCircuitBreaker(next ModelGateway, config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logrus.New()
	}
	return &CircuitBreaker{
		next:   next,
		config: config,
		logger: logger.WithField("component", "circuit_breaker"),
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Infer calls the wrapped gateway unless the circuit is open
func (cb *CircuitBreaker) Infer(ctx context.Context, snapshot *models.RaceSnapshot, modelID, featureSetID string) (*models.InferenceResult, error) {
	if !cb.allow() {
		return nil, models.NewModelError(false, ErrCircuitOpen, "inference calls suspended for %s", cb.config.CooldownPeriod)
	}

	result, err := cb.next.Infer(ctx, snapshot, modelID, featureSetID)
	switch models.KindOf(err) {
	case models.KindModelError:
		if isRejection(err) {
			cb.recordSuccess()
		} else {
			cb.recordFailure(err)
		}
	case models.KindTimeout:
		cb.recordFailure(err)
	case "":
		if err == nil {
			cb.recordSuccess()
		} else {
			cb.recordFailure(err)
		}
	default:
		cb.recordSuccess()
	}
	return result, err
}

func (cb *CircuitBreaker) Close() error {
	return cb.next.Close()
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshLocked()
	return cb.state
}

func isRejection(err error) bool {
	return errors.Is(err, ErrInferenceNotFound) || errors.Is(err, ErrInferenceRejected)
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refreshLocked()
	switch cb.state {
	case CircuitOpen:
		return false
	case CircuitHalfOpen:
		if cb.probeInFlight {
			return false
		}
		cb.probeInFlight = true
		return true
	default:
		return true
	}
}

// refreshLocked moves an open circuit to half-open once the cooldown has passed
func (cb *CircuitBreaker) refreshLocked() {
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.config.CooldownPeriod {
		cb.setStateLocked(CircuitHalfOpen)
		cb.logger.Info("Circuit breaker entering half-open state after cooldown")
	}
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()

	if cb.state == CircuitHalfOpen {
		cb.probeInFlight = false
		cb.openLocked(now, "probe call failed", err)
		return
	}

	if cb.config.FailureWindow > 0 && now.Sub(cb.lastFailureTime) > cb.config.FailureWindow {
		cb.failureCount = 0
	}
	cb.failureCount++
	cb.lastFailureTime = now

	if cb.state == CircuitClosed && cb.failureCount >= cb.config.MaxFailures {
		cb.openLocked(now, "max failure count reached", err)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.logger.Info("Circuit breaker closed after successful probe")
	}
	cb.setStateLocked(CircuitClosed)
	cb.failureCount = 0
	cb.probeInFlight = false
}

func (cb *CircuitBreaker) openLocked(now time.Time, reason string, err error) {
	oldState := cb.state
	cb.setStateLocked(CircuitOpen)
	cb.openedAt = now

	cb.logger.WithFields(logrus.Fields{
		"old_state":       oldState.String(),
		"new_state":       cb.state.String(),
		"reason":          reason,
		"failure_count":   cb.failureCount,
		"cooldown_period": cb.config.CooldownPeriod,
	}).WithError(err).Error("Inference circuit opened")
}

func (cb *CircuitBreaker) setStateLocked(state CircuitState) {
	cb.state = state
	CircuitStateGauge.Set(float64(state))
}
