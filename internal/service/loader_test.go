package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-predictor/internal/models"
)

// MockRaceRepository mocks repository.RaceRepository
type MockRaceRepository struct {
	mock.Mock
}

func (m *MockRaceRepository) GetByID(ctx context.Context, id int64) (*models.Race, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Race), args.Error(1)
}

func (m *MockRaceRepository) GetEntries(ctx context.Context, raceID int64) ([]*models.RaceEntry, error) {
	args := m.Called(ctx, raceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RaceEntry), args.Error(1)
}

func (m *MockRaceRepository) GetUpcoming(ctx context.Context, limit int) ([]*models.Race, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Race), args.Error(1)
}

func TestLoaderBuildsSnapshot(t *testing.T) {
	loader := NewRaceSnapshotLoader(threeRunnerRace(), nil)

	snapshot, err := loader.Load(context.Background(), testRaceID)
	require.NoError(t, err)

	assert.Equal(t, testRaceID, snapshot.RaceID())
	require.Equal(t, 3, snapshot.Len())
	entry, ok := snapshot.Entry(12)
	require.True(t, ok)
	assert.Equal(t, "Night Owl", entry.RunnerName)
	assert.Equal(t, 2, *entry.RunnerNumber)
}

func TestLoaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *MockRaceRepository)
		kind  models.ErrorKind
	}{
		{
			name: "race missing",
			setup: func(m *MockRaceRepository) {
				m.On("GetByID", mock.Anything, int64(5)).Return(nil, models.ErrNotFound)
			},
			kind: models.KindRaceNotFound,
		},
		{
			name: "race lookup fails",
			setup: func(m *MockRaceRepository) {
				m.On("GetByID", mock.Anything, int64(5)).Return(nil, errBoom)
			},
			kind: models.KindPersistence,
		},
		{
			name: "no entries",
			setup: func(m *MockRaceRepository) {
				m.On("GetByID", mock.Anything, int64(5)).Return(&models.Race{ID: 5}, nil)
				m.On("GetEntries", mock.Anything, int64(5)).Return([]*models.RaceEntry{}, nil)
			},
			kind: models.KindEmptyEntries,
		},
		{
			name: "entries lookup fails",
			setup: func(m *MockRaceRepository) {
				m.On("GetByID", mock.Anything, int64(5)).Return(&models.Race{ID: 5}, nil)
				m.On("GetEntries", mock.Anything, int64(5)).Return(nil, errBoom)
			},
			kind: models.KindPersistence,
		},
		{
			name: "duplicate entry ids",
			setup: func(m *MockRaceRepository) {
				m.On("GetByID", mock.Anything, int64(5)).Return(&models.Race{ID: 5}, nil)
				m.On("GetEntries", mock.Anything, int64(5)).Return([]*models.RaceEntry{{ID: 1}, {ID: 1}}, nil)
			},
			kind: models.KindPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRaceRepository)
			tt.setup(repo)

			_, err := NewRaceSnapshotLoader(repo, nil).Load(context.Background(), 5)
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err))
			assert.False(t, models.IsRetryable(err))
			repo.AssertExpectations(t)
		})
	}
}

func TestLoaderUsesSnapshotCache(t *testing.T) {
	races := threeRunnerRace()
	cache := NewSnapshotCache(time.Minute)
	loader := NewRaceSnapshotLoader(races, cache)

	first, err := loader.Load(context.Background(), testRaceID)
	require.NoError(t, err)
	second, err := loader.Load(context.Background(), testRaceID)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, races.Calls)
	assert.Equal(t, 1, cache.Len())

	cache.Invalidate(testRaceID)
	_, err = loader.Load(context.Background(), testRaceID)
	require.NoError(t, err)
	assert.Equal(t, 2, races.Calls)
}

func TestSnapshotCacheDisabled(t *testing.T) {
	cache := NewSnapshotCache(0)
	assert.Nil(t, cache)

	// a nil cache is a no-op
	cache.Set(nil)
	cache.Invalidate(1)
	cache.Flush()
	_, ok := cache.Get(1)
	assert.False(t, ok)
	assert.Zero(t, cache.Len())
}
