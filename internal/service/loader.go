// Package service implements the prediction execution core.
package service

import (
	"context"
	"errors"

	"github.com/yourusername/race-predictor/internal/models"
	"github.com/yourusername/race-predictor/internal/repository"
)

// RaceSnapshotLoader materializes a race and its runners into an immutable snapshot
type RaceSnapshotLoader struct {
	races repository.RaceRepository
	cache *SnapshotCache
}

// NewRaceSnapshotLoader creates a loader. cache may be nil.
func NewRaceSnapshotLoader(races repository.RaceRepository, cache *SnapshotCache) *RaceSnapshotLoader {
	return &RaceSnapshotLoader{races: races, cache: cache}
}

// Load returns the snapshot for raceID. A missing race or a race without
// entries is terminal; other storage failures surface as persistence errors.
func (l *RaceSnapshotLoader) Load(ctx context.Context, raceID int64) (*models.RaceSnapshot, error) {
	if snapshot, ok := l.cache.Get(raceID); ok {
		return snapshot, nil
	}

	if _, err := l.races.GetByID(ctx, raceID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewRaceNotFoundError(raceID)
		}
		return nil, models.NewPersistenceError(err, "failed to load race %d", raceID)
	}

	entries, err := l.races.GetEntries(ctx, raceID)
	if err != nil {
		return nil, models.NewPersistenceError(err, "failed to load entries for race %d", raceID)
	}
	if len(entries) == 0 {
		return nil, models.NewEmptyEntriesError(raceID)
	}

	runners := make([]models.RunnerEntry, 0, len(entries))
	for _, e := range entries {
		runner := models.RunnerEntry{EntryID: e.ID, RunnerNumber: e.HorseNumber}
		if e.HorseName != nil {
			runner.RunnerName = *e.HorseName
		}
		runners = append(runners, runner)
	}

	snapshot, err := models.NewRaceSnapshot(raceID, runners)
	if err != nil {
		return nil, models.NewPersistenceError(err, "inconsistent entries for race %d", raceID)
	}

	l.cache.Set(snapshot)
	return snapshot, nil
}
