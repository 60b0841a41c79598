package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/race-predictor/internal/models"
	"github.com/yourusername/race-predictor/internal/repository"
)

// HistoryService reads a user's stored predictions
type HistoryService struct {
	store repository.PredictionStore
}

// NewHistoryService creates a history service
func NewHistoryService(store repository.PredictionStore) *HistoryService {
	return &HistoryService{store: store}
}

// List returns one page of a user's predictions with aggregate stats
func (s *HistoryService) List(ctx context.Context, params models.PredictionListParams) (*models.PredictionListResult, error) {
	if params.UserID < 1 {
		return nil, models.NewInvalidRequestError(fmt.Errorf("user id must be positive, got %d", params.UserID))
	}
	if params.StartAt != nil && params.EndAt != nil && params.EndAt.Before(*params.StartAt) {
		return nil, models.NewInvalidRequestError(errors.New("end of time window precedes its start"))
	}
	params.Limit = params.EffectiveLimit()
	params.Offset = max(params.Offset, 0)

	result, err := s.store.ListByUser(ctx, params)
	if err != nil {
		return nil, models.NewPersistenceError(err, "failed to list predictions for user %d", params.UserID)
	}
	return result, nil
}

// Get returns one prediction owned by the user
func (s *HistoryService) Get(ctx context.Context, userID, predictionID int64) (*models.Prediction, error) {
	prediction, err := s.store.GetByID(ctx, userID, predictionID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, models.NewPersistenceError(err, "failed to load prediction %d", predictionID)
	}
	return prediction, nil
}

// Compare returns a prediction with the user's other predictions on the same race
func (s *HistoryService) Compare(ctx context.Context, userID, predictionID int64) (*models.PredictionComparison, error) {
	comparison, err := s.store.Compare(ctx, userID, predictionID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, models.NewPersistenceError(err, "failed to compare prediction %d", predictionID)
	}
	return comparison, nil
}

// Count returns the number of predictions the user has made
func (s *HistoryService) Count(ctx context.Context, userID int64) (int, error) {
	count, err := s.store.CountByUser(ctx, userID)
	if err != nil {
		return 0, models.NewPersistenceError(err, "failed to count predictions for user %d", userID)
	}
	return count, nil
}
