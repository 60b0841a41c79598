// Package logger provides prediction-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// PredictionLogger provides dedicated logging for prediction runs.
type PredictionLogger struct {
	*logrus.Entry
}

// NewPredictionLogger creates a new prediction logger.
func NewPredictionLogger(baseLogger *logrus.Logger) *PredictionLogger {
	if baseLogger == nil {
		baseLogger = Discard()
	}
	return &PredictionLogger{
		Entry: baseLogger.WithField("component", "prediction"),
	}
}

// LogRunStarted logs the start of a prediction job.
func (pl *PredictionLogger) LogRunStarted(jobID string, raceID int64, runners int, maxAttempts int) {
	pl.WithFields(logrus.Fields{
		"job_id":       jobID,
		"race_id":      raceID,
		"runners":      runners,
		"max_attempts": maxAttempts,
	}).Debug("Prediction job started")
}

// LogAttemptFailed logs a failed prediction attempt before retrying or propagating.
func (pl *PredictionLogger) LogAttemptFailed(jobID string, raceID int64, attempt, maxAttempts int, kind string, retryable bool, err error) {
	pl.WithFields(logrus.Fields{
		"job_id":       jobID,
		"race_id":      raceID,
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"error_kind":   kind,
		"retryable":    retryable,
	}).WithError(err).Warn("Prediction attempt failed")
}

// LogRunCompleted logs a successfully persisted prediction job.
func (pl *PredictionLogger) LogRunCompleted(jobID string, raceID, predictionID int64, attempts int, modelVersion string, elapsedMs int64) {
	pl.WithFields(logrus.Fields{
		"job_id":        jobID,
		"race_id":       raceID,
		"prediction_id": predictionID,
		"attempts":      attempts,
		"model_version": modelVersion,
		"elapsed_ms":    elapsedMs,
	}).Info("Prediction job completed")
}

// LogRemoteAttempt logs an outgoing request to the inference service.
func (pl *PredictionLogger) LogRemoteAttempt(raceID int64, attempt int, url string) {
	pl.WithFields(logrus.Fields{
		"race_id": raceID,
		"attempt": attempt,
		"url":     url,
	}).Info("Calling inference server")
}

// LogRemoteFailure logs a failed call to the inference service.
func (pl *PredictionLogger) LogRemoteFailure(raceID int64, statusCode int, err error) {
	entry := pl.WithFields(logrus.Fields{
		"race_id":     raceID,
		"status_code": statusCode,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error("Inference request failed")
}
