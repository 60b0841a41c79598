package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndLive(t *testing.T) {
	s := NewServer(Config{ServiceName: "prediction-worker", Version: "1.2.0", Port: "0"})

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.0", resp.Version)

	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/live").Code)
}

func TestReadyRunsChecks(t *testing.T) {
	dbErr := errors.New("connection refused")
	healthy := true

	s := NewServer(Config{
		ServiceName: "prediction-worker",
		Port:        "0",
		Checkers: []Checker{
			CheckFunc{CheckName: "database", Fn: func(context.Context) error {
				if healthy {
					return nil
				}
				return dbErr
			}},
			CheckFunc{CheckName: "inference", Fn: func(context.Context) error { return nil }},
		},
	})
	assert.Equal(t, []string{"database", "inference"}, s.CheckNames())

	// not marked ready yet
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/ready").Code)

	s.SetReady(true)
	rec := get(t, s.Handler(), "/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = get(t, s.Handler(), "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "error: connection refused", resp.Checks["database"])
	assert.Equal(t, "ok", resp.Checks["inference"])
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("race_predictor_up 1\n"))
	})

	s := NewServer(Config{Port: "0", MetricsPath: "/metrics", MetricsHandler: metrics})
	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "race_predictor_up")

	bare := NewServer(Config{Port: "0"})
	assert.Equal(t, http.StatusNotFound, get(t, bare.Handler(), "/metrics").Code)
}

func TestShutdownWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(Config{}).Shutdown())
}
