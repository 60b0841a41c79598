package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestPredictionLoggerAttemptFailed(t *testing.T) {
	log, buf := setupTestLogger()
	predictionLogger := NewPredictionLogger(log)

	predictionLogger.LogAttemptFailed("job-1", 42, 1, 3, "timeout", true, errors.New("too slow"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "prediction", logEntry["component"])
	assert.Equal(t, float64(42), logEntry["race_id"])
	assert.Equal(t, float64(1), logEntry["attempt"])
	assert.Equal(t, "timeout", logEntry["error_kind"])
	assert.Equal(t, true, logEntry["retryable"])
	assert.Equal(t, "too slow", logEntry["error"])
	assert.Equal(t, "warning", logEntry["level"])
}

func TestPredictionLoggerRunCompleted(t *testing.T) {
	log, buf := setupTestLogger()
	predictionLogger := NewPredictionLogger(log)

	predictionLogger.LogRunCompleted("job-2", 7, 99, 2, "heuristic-v1", 470)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "job-2", logEntry["job_id"])
	assert.Equal(t, float64(99), logEntry["prediction_id"])
	assert.Equal(t, "heuristic-v1", logEntry["model_version"])
}

func TestPredictionLoggerNilBase(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPredictionLogger(nil).LogRemoteAttempt(1, 1, "http://localhost/infer")
	})
}

func TestAuditLoggerPredictionRecorded(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	now := time.Unix(1700000000, 0)
	auditLogger.LogPredictionRecorded("job-3", 10, 5, 7, "heuristic-v1", "100.00", 3, now)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, "100.00", logEntry["stake"])
	assert.Equal(t, float64(3), logEntry["picks"])
	assert.Equal(t, float64(now.Unix()), logEntry["timestamp"])
}

func TestLoggerJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newLogger(buf, "debug", "production")

	log.WithField("race_id", 1).Info("hello")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "hello", logEntry["msg"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestLoggerInvalidLevelDefaultsToInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newLogger(buf, "loud", "development")

	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level")
}
