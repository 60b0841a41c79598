package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-predictor/internal/config"
	"github.com/yourusername/race-predictor/internal/models"
)

// ModelGateway turns a race snapshot into ranked probabilities.
//
// Implementations return rankings in descending confidence order. Failures are
// *models.PredictionError values; a gateway never returns an empty success.
type ModelGateway interface {
	Infer(ctx context.Context, snapshot *models.RaceSnapshot, modelID, featureSetID string) (*models.InferenceResult, error)
	Close() error
}

// NewGateway selects the gateway named by configuration
func NewGateway(predictionCfg config.PredictionConfig, inferenceCfg config.InferenceConfig, logger *logrus.Logger) (ModelGateway, error) {
	var gw ModelGateway
	switch predictionCfg.Gateway {
	case config.GatewayHeuristic, "":
		gw = NewHeuristicGateway()
	case config.GatewayRemote:
		gw = NewRemoteGateway(inferenceCfg, logger)
		if inferenceCfg.CircuitMaxFailures > 0 {
			gw = NewCircuitBreaker(gw, CircuitBreakerConfig{
				MaxFailures:    inferenceCfg.CircuitMaxFailures,
				FailureWindow:  inferenceCfg.CircuitFailureWindow(),
				CooldownPeriod: inferenceCfg.CircuitCooldown(),
			}, logger)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, predictionCfg.Gateway)
	}
	name := predictionCfg.Gateway
	if name == "" {
		name = config.GatewayHeuristic
	}
	return &instrumentedGateway{next: gw, name: name}, nil
}

// instrumentedGateway records Prometheus metrics around another gateway
type instrumentedGateway struct {
	next ModelGateway
	name string
}

func (g *instrumentedGateway) Infer(ctx context.Context, snapshot *models.RaceSnapshot, modelID, featureSetID string) (*models.InferenceResult, error) {
	start := time.Now()
	if snapshot != nil {
		InferenceRunners.Observe(float64(snapshot.Len()))
	}

	result, err := g.next.Infer(ctx, snapshot, modelID, featureSetID)

	InferenceLatency.WithLabelValues(g.name).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = string(models.KindOf(err))
		if outcome == "" {
			outcome = "unknown"
		}
	}
	InferenceRequestsTotal.WithLabelValues(g.name, outcome).Inc()

	return result, err
}

func (g *instrumentedGateway) Close() error {
	return g.next.Close()
}
