// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	if baseLogger == nil {
		baseLogger = Discard()
	}
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogPredictionRecorded logs a committed prediction.
func (al *AuditLogger) LogPredictionRecorded(jobID string, predictionID, userID, raceID int64, modelVersion, stake string, picks int, timestamp time.Time) {
	al.WithFields(logrus.Fields{
		"job_id":        jobID,
		"prediction_id": predictionID,
		"user_id":       userID,
		"race_id":       raceID,
		"model_version": modelVersion,
		"stake":         stake,
		"picks":         picks,
		"timestamp":     timestamp.Unix(),
	}).Info("Prediction recorded")
}

// LogEventPublishFailed logs a domain event that could not be delivered.
func (al *AuditLogger) LogEventPublishFailed(jobID string, predictionID int64, err error) {
	al.WithFields(logrus.Fields{
		"job_id":        jobID,
		"prediction_id": predictionID,
	}).WithError(err).Warn("Prediction event publish failed")
}
