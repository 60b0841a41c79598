package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-predictor/internal/config"
	"github.com/yourusername/race-predictor/internal/logger"
	"github.com/yourusername/race-predictor/internal/models"
)

func testInferenceConfig(baseURL string) config.InferenceConfig {
	return config.InferenceConfig{
		BaseURL:        baseURL,
		TimeoutSeconds: 2,
		MaxAttempts:    3,
		RetryWaitMinMs: 1,
		RetryWaitMaxMs: 5,
		MaxIdleConns:   2,
	}
}

func writeInferenceResponse(t *testing.T, w http.ResponseWriter, raceID int64) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(`{
		"race_id": ` + jsonInt(raceID) + `,
		"model_version": "gbm-2024.1",
		"rankings": [
			{"race_entry_id": 12, "probability": 0.31, "rank": 2},
			{"race_entry_id": 11, "probability": 0.62, "rank": 1},
			{"race_entry_id": 13, "probability": 0.07, "rank": 3}
		],
		"elapsed_ms": 120
	}`))
	assert.NoError(t, err)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func threeRunnerSnapshot(t *testing.T) *models.RaceSnapshot {
	return mustSnapshot(t, 42,
		models.RunnerEntry{EntryID: 11, RunnerNumber: intPtr(1)},
		models.RunnerEntry{EntryID: 12, RunnerNumber: intPtr(2)},
		models.RunnerEntry{EntryID: 13, RunnerNumber: intPtr(3)},
	)
}

func TestRemoteGatewaySuccess(t *testing.T) {
	var received inferenceRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/infer", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeInferenceResponse(t, w, received.RaceID)
	}))
	defer server.Close()

	cfg := testInferenceConfig(server.URL + "/")
	cfg.APIKey = "secret"
	gw := NewRemoteGateway(cfg, logger.Discard())
	defer gw.Close()

	result, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "gbm", "")
	require.NoError(t, err)

	assert.Equal(t, int64(42), received.RaceID)
	require.NotNil(t, received.ModelVersion)
	assert.Equal(t, "gbm", *received.ModelVersion)

	require.Len(t, result.Rankings, 3)
	assert.Equal(t, int64(11), result.Rankings[0].EntryID)
	assert.Equal(t, int64(12), result.Rankings[1].EntryID)
	assert.True(t, decimal.RequireFromString("0.62").Equal(result.Rankings[0].Probability))
	assert.Nil(t, result.Rankings[0].ConfidenceInterval)
	assert.Empty(t, result.FeatureContributions)
	assert.Equal(t, "gbm-2024.1", result.ModelVersion)
	assert.Equal(t, int64(120), result.ElapsedMs)
}

func TestRemoteGatewayOmitsModelVersionWhenUnset(t *testing.T) {
	var raw map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeInferenceResponse(t, w, 42)
	}))
	defer server.Close()

	gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
	defer gw.Close()

	_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.NoError(t, err)
	_, present := raw["model_version"]
	assert.False(t, present)
}

// TestRemoteGatewayNotFoundIsTerminal checks a 404 is not retried
func TestRemoteGatewayNotFoundIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "no such race", http.StatusNotFound)
	}))
	defer server.Close()

	gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
	defer gw.Close()

	_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.Error(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, models.KindModelError, models.KindOf(err))
	assert.False(t, models.IsRetryable(err))
	assert.True(t, errors.Is(err, ErrInferenceNotFound))
}

// TestRemoteGatewayRecoversAfterUnavailable checks a 503 then 200 succeeds on the second call
func TestRemoteGatewayRecoversAfterUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		writeInferenceResponse(t, w, 42)
	}))
	defer server.Close()

	gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
	defer gw.Close()

	result, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.NoError(t, err)
	assert.Len(t, result.Rankings, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRemoteGatewayServerErrorExhaustsAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
	defer gw.Close()

	_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.Error(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, models.KindModelError, models.KindOf(err))
	assert.False(t, models.IsRetryable(err))
	assert.True(t, errors.Is(err, ErrInferenceUnavailable))
	assert.Contains(t, err.Error(), "boom")
}

func TestRemoteGatewayClientErrorIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
	defer gw.Close()

	_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, models.KindModelError, models.KindOf(err))
	assert.True(t, errors.Is(err, ErrInferenceRejected))
}

func TestRemoteGatewayTimeoutExhaustsAttempts(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testInferenceConfig(server.URL)
	cfg.TimeoutSeconds = 0.05
	cfg.MaxAttempts = 2
	gw := NewRemoteGateway(cfg, logger.Discard())
	defer gw.Close()

	_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.Error(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, models.KindTimeout, models.KindOf(err))
	assert.False(t, models.IsRetryable(err))
}

func TestRemoteGatewayMalformedBody(t *testing.T) {
	t.Run("recovers when a later attempt decodes", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				_, _ = w.Write([]byte(`{"rankings": "nope"`))
				return
			}
			writeInferenceResponse(t, w, 42)
		}))
		defer server.Close()

		gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
		defer gw.Close()

		result, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
		require.NoError(t, err)
		assert.Len(t, result.Rankings, 3)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("model error after every attempt fails", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			_, _ = w.Write([]byte(`{"rankings": "nope"`))
		}))
		defer server.Close()

		gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
		defer gw.Close()

		_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
		require.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		assert.Equal(t, models.KindModelError, models.KindOf(err))
		assert.False(t, models.IsRetryable(err))
		assert.True(t, errors.Is(err, ErrInvalidResponse))
	})
}

// TestRemoteGatewayUnavailableThenTimeout checks the last attempt decides the error kind
func TestRemoteGatewayUnavailableThenTimeout(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testInferenceConfig(server.URL)
	cfg.TimeoutSeconds = 0.05
	gw := NewRemoteGateway(cfg, logger.Discard())
	defer gw.Close()

	_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.Error(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, models.KindTimeout, models.KindOf(err))
	assert.False(t, models.IsRetryable(err))
	assert.False(t, errors.Is(err, ErrInferenceUnavailable))
}

func TestRemoteGatewayEmptyRankings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"race_id": 42, "model_version": "gbm", "rankings": [], "elapsed_ms": 5}`))
	}))
	defer server.Close()

	gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
	defer gw.Close()

	_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.Error(t, err)
	assert.Equal(t, models.KindEmptyResult, models.KindOf(err))
}

func TestRemoteGatewayRejectsOutOfRangeProbability(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"race_id": 42, "model_version": "gbm", "rankings": [{"race_entry_id": 11, "probability": 1.5, "rank": 1}], "elapsed_ms": 5}`))
	}))
	defer server.Close()

	gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
	defer gw.Close()

	_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRemoteGatewayCloseRecreatesClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeInferenceResponse(t, w, 42)
	}))
	defer server.Close()

	gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())

	_, err := gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.NoError(t, err)
	first := gw.getClient()

	require.NoError(t, gw.Close())
	require.NoError(t, gw.Close())

	_, err = gw.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.NoError(t, err)
	assert.NotSame(t, first, gw.getClient())
	require.NoError(t, gw.Close())
}

func TestRemoteGatewayHealthCheck(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	gw := NewRemoteGateway(testInferenceConfig(server.URL), logger.Discard())
	defer gw.Close()

	require.NoError(t, gw.HealthCheck(context.Background()))

	healthy.Store(false)
	err := gw.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInferenceUnavailable))
}

func TestNewGatewaySelectsByConfig(t *testing.T) {
	heuristic, err := NewGateway(config.PredictionConfig{Gateway: config.GatewayHeuristic}, config.InferenceConfig{}, logger.Discard())
	require.NoError(t, err)
	result, err := heuristic.Infer(context.Background(), threeRunnerSnapshot(t), "", "")
	require.NoError(t, err)
	assert.Equal(t, "heuristic-v1", result.ModelVersion)

	remote, err := NewGateway(config.PredictionConfig{Gateway: config.GatewayRemote}, testInferenceConfig("http://localhost:1"), logger.Discard())
	require.NoError(t, err)
	require.NoError(t, remote.Close())

	_, err = NewGateway(config.PredictionConfig{Gateway: "grpc"}, config.InferenceConfig{}, logger.Discard())
	assert.True(t, errors.Is(err, ErrUnknownGateway))
}
