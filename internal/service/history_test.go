package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-predictor/internal/ml"
	"github.com/yourusername/race-predictor/internal/models"
)

func TestHistoryServiceReadsCommittedRuns(t *testing.T) {
	f := newRunnerFixture(t, testPredictionConfig(), ml.NewHeuristicGateway())
	ctx := context.Background()

	var lastID int64
	for i := 0; i < 3; i++ {
		job, err := f.runner.Run(ctx, models.PredictionRequest{RaceID: testRaceID}, 2)
		require.NoError(t, err)
		lastID = *job.PredictionID
	}

	history := NewHistoryService(f.store)

	list, err := history.List(ctx, models.PredictionListParams{UserID: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, "300", list.Stats.TotalStake.String())

	got, err := history.Get(ctx, 2, lastID)
	require.NoError(t, err)
	assert.Len(t, got.Picks, 3)

	_, err = history.Get(ctx, 3, lastID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	comparison, err := history.Compare(ctx, 2, lastID)
	require.NoError(t, err)
	assert.Len(t, comparison.History, 2)

	count, err := history.Count(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestHistoryServiceRejectsBadParams(t *testing.T) {
	history := NewHistoryService(nil)
	start := time.Now()
	end := start.Add(-time.Hour)

	_, err := history.List(context.Background(), models.PredictionListParams{UserID: 0})
	assert.Equal(t, models.KindInvalidRequest, models.KindOf(err))

	_, err = history.List(context.Background(), models.PredictionListParams{UserID: 1, StartAt: &start, EndAt: &end})
	assert.Equal(t, models.KindInvalidRequest, models.KindOf(err))
}
