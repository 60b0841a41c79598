package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/yourusername/race-predictor/internal/config"
	"github.com/yourusername/race-predictor/internal/events"
	"github.com/yourusername/race-predictor/internal/logger"
	"github.com/yourusername/race-predictor/internal/ml"
	"github.com/yourusername/race-predictor/internal/models"
	"github.com/yourusername/race-predictor/internal/repository"
)

const testRaceID int64 = 7

// MockGateway mocks ml.ModelGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Infer(ctx context.Context, snapshot *models.RaceSnapshot, modelID, featureSetID string) (*models.InferenceResult, error) {
	args := m.Called(ctx, snapshot, modelID, featureSetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InferenceResult), args.Error(1)
}

func (m *MockGateway) Close() error {
	return m.Called().Error(0)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PredictionCompleted
	err    error
}

func (p *recordingPublisher) PublishPredictionCompleted(_ context.Context, e events.PredictionCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// threeRunnerRace stores race 7 with entries 11, 12, 13 numbered 1, 2, 3
func threeRunnerRace() *repository.MemoryRaceRepository {
	races := repository.NewMemoryRaceRepository()
	races.AddRace(&models.Race{ID: testRaceID, Name: "Spring Stakes", Status: "scheduled", RaceDate: time.Now().Add(time.Hour)},
		&models.RaceEntry{ID: 11, HorseNumber: intPtr(1), HorseName: strPtr("Blue Comet")},
		&models.RaceEntry{ID: 12, HorseNumber: intPtr(2), HorseName: strPtr("Night Owl")},
		&models.RaceEntry{ID: 13, HorseNumber: intPtr(3), HorseName: strPtr("Iron Will")},
	)
	return races
}

func testPredictionConfig() config.PredictionConfig {
	return config.PredictionConfig{
		Gateway:            config.GatewayHeuristic,
		TimeoutMs:          1000,
		MaxRetries:         1,
		DefaultStakeAmount: 100,
	}
}

type runnerFixture struct {
	races  *repository.MemoryRaceRepository
	store  *repository.MemoryPredictionStore
	runner *PredictionRunner
}

func newRunnerFixture(t *testing.T, cfg config.PredictionConfig, gw ml.ModelGateway, opts ...RunnerOption) *runnerFixture {
	t.Helper()
	races := threeRunnerRace()
	store := repository.NewMemoryPredictionStore()
	loader := NewRaceSnapshotLoader(races, nil)
	return &runnerFixture{
		races:  races,
		store:  store,
		runner: NewPredictionRunner(cfg, loader, gw, store, logger.Discard(), opts...),
	}
}

func inferenceResult(elapsedMs int64, entries ...int64) *models.InferenceResult {
	rankings := make([]models.InferenceRanking, len(entries))
	share := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(entries)))).Round(models.ProbabilityPlaces)
	for i, id := range entries {
		rankings[i] = models.InferenceRanking{EntryID: id, Probability: share}
	}
	return &models.InferenceResult{
		Rankings:     rankings,
		ModelVersion: "stub-v1",
		ElapsedMs:    elapsedMs,
	}
}

var errBoom = errors.New("boom")
