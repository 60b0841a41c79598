package repository

import (
	"context"

	"github.com/yourusername/race-predictor/internal/models"
)

// RaceRepository defines read access to races and their runner entries
type RaceRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Race, error)
	GetEntries(ctx context.Context, raceID int64) ([]*models.RaceEntry, error)
	GetUpcoming(ctx context.Context, limit int) ([]*models.Race, error)
}

// PredictionTx is one unit of prediction writes. Nothing is visible to
// readers until Commit; Rollback after Commit is a no-op.
type PredictionTx interface {
	// CreatePrediction inserts the prediction and its picks, filling in
	// generated ids and timestamps.
	CreatePrediction(ctx context.Context, prediction *models.Prediction) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PredictionStore defines prediction persistence and history reads
type PredictionStore interface {
	Begin(ctx context.Context) (PredictionTx, error)
	GetByID(ctx context.Context, userID, id int64) (*models.Prediction, error)
	ListByUser(ctx context.Context, params models.PredictionListParams) (*models.PredictionListResult, error)
	Compare(ctx context.Context, userID, id int64) (*models.PredictionComparison, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}
