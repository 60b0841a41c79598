package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-predictor/internal/config"
	"github.com/yourusername/race-predictor/internal/events"
	"github.com/yourusername/race-predictor/internal/logger"
	"github.com/yourusername/race-predictor/internal/models"
	"github.com/yourusername/race-predictor/internal/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		Prediction: config.PredictionConfig{
			Gateway:                 config.GatewayHeuristic,
			TimeoutMs:               60000,
			MaxRetries:              1,
			DefaultStakeAmount:      50,
			SnapshotCacheTTLSeconds: 30,
		},
		Inference: config.InferenceConfig{
			BaseURL:        "http://127.0.0.1:1",
			TimeoutSeconds: 1,
			MaxAttempts:    1,
		},
	}
}

func TestAssembleRunsHeuristicPredictions(t *testing.T) {
	repos, races, store := repository.NewMemoryRepositories()
	n1, n2 := 1, 2
	races.AddRace(&models.Race{ID: 3, Status: "scheduled", RaceDate: time.Now().Add(time.Hour)},
		&models.RaceEntry{ID: 30, HorseNumber: &n1}, &models.RaceEntry{ID: 31, HorseNumber: &n2})

	a, err := Assemble(testConfig(), repos, logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, events.NoopPublisher{}, a.Publisher)

	job, err := a.Runner.Run(context.Background(), models.PredictionRequest{RaceID: 3}, 1)
	require.NoError(t, err)
	require.Len(t, job.Rankings, 2)

	stored, err := a.History.Get(context.Background(), 1, *job.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", stored.StakeAmount.StringFixed(2))
	assert.Equal(t, 1, store.Count())
}

func TestAssembleRejectsUnknownGateway(t *testing.T) {
	repos, _, _ := repository.NewMemoryRepositories()
	cfg := testConfig()
	cfg.Prediction.Gateway = "quantum"

	_, err := Assemble(cfg, repos, logger.Discard())
	assert.Error(t, err)
}

func TestLoadConfigValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: x\n  environment: nowhere\n  log_level: info\n"), 0o600))

	_, err := LoadConfig(context.Background(), path)
	assert.Error(t, err)
}
