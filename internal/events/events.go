// Package events publishes prediction domain events.
package events

import (
	"context"
	"time"
)

// TypePredictionCompleted is emitted once a prediction is committed
const TypePredictionCompleted = "prediction.completed"

// PredictionCompleted describes a committed prediction
type PredictionCompleted struct {
	Type         string `json:"type"`
	JobID        string `json:"job_id"`
	PredictionID int64  `json:"prediction_id"`
	UserID       int64  `json:"user_id"`
	RaceID       int64  `json:"race_id"`
	ModelVersion string `json:"model_version"`
	TsUnixMs     int64  `json:"ts_unix_ms"`
}

// Publisher delivers prediction events
type Publisher interface {
	PublishPredictionCompleted(ctx context.Context, e PredictionCompleted) error
	Close() error
}

// NoopPublisher drops every event; used when events are disabled
type NoopPublisher struct{}

func (NoopPublisher) PublishPredictionCompleted(context.Context, PredictionCompleted) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}

func stamp(e *PredictionCompleted, now time.Time) {
	if e.Type == "" {
		e.Type = TypePredictionCompleted
	}
	if e.TsUnixMs == 0 {
		e.TsUnixMs = now.UnixMilli()
	}
}
