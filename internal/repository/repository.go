package repository

import (
	"fmt"

	"github.com/yourusername/race-predictor/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Race       RaceRepository
	Prediction PredictionStore
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Race:       NewPostgresRaceRepository(db),
		Prediction: NewPostgresPredictionStore(db),
	}, nil
}

// NewMemoryRepositories creates in-process repositories for tests
func NewMemoryRepositories() (*Repositories, *MemoryRaceRepository, *MemoryPredictionStore) {
	races := NewMemoryRaceRepository()
	predictions := NewMemoryPredictionStore()
	return &Repositories{Race: races, Prediction: predictions}, races, predictions
}
