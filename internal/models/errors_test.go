package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictionErrorKindSurvivesWrapping(t *testing.T) {
	base := NewTimeoutError(true, nil, "elapsed %dms exceeds budget %dms", 900, 500)
	wrapped := fmt.Errorf("attempt 2: %w", base)

	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.True(t, errors.Is(wrapped, &PredictionError{Kind: KindTimeout}))
	assert.False(t, errors.Is(wrapped, &PredictionError{Kind: KindModelError}))
}

func TestForeignErrorsAreNotRetryable(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, ErrorKind(""), KindOf(err))
	assert.False(t, IsRetryable(err))
}

func TestPredictionErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPersistenceError(cause, "failed to insert prediction")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "persistence_error")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestErrorKindCategory(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		category string
	}{
		{KindRaceNotFound, CategoryNotFound},
		{KindEmptyEntries, CategoryUnprocessable},
		{KindModelError, CategoryUnavailable},
		{KindEmptyResult, CategoryUnavailable},
		{KindTimeout, CategoryTimeout},
		{KindInvalidEntryReference, CategoryInternal},
		{KindPersistence, CategoryInternal},
		{KindInvalidRequest, CategoryBadRequest},
		{KindOrchestration, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.category, tt.kind.Category())
		})
	}
}

func TestNewRaceSnapshotRejectsInvalidEntries(t *testing.T) {
	_, err := NewRaceSnapshot(1, nil)
	require.Error(t, err)

	_, err = NewRaceSnapshot(1, []RunnerEntry{{EntryID: 7}, {EntryID: 7}})
	require.Error(t, err)
}

func TestRaceSnapshotIsImmutable(t *testing.T) {
	number := 3
	entries := []RunnerEntry{{EntryID: 10, RunnerNumber: &number, RunnerName: "Swift Arrow"}}

	snapshot, err := NewRaceSnapshot(5, entries)
	require.NoError(t, err)

	number = 9
	entries[0].RunnerName = "Changed"
	out := snapshot.Entries()
	out[0].RunnerName = "Also Changed"

	entry, ok := snapshot.Entry(10)
	require.True(t, ok)
	assert.Equal(t, "Swift Arrow", entry.RunnerName)
	assert.Equal(t, 3, *entry.RunnerNumber)
	assert.Equal(t, int64(5), snapshot.RaceID())
	assert.Equal(t, 1, snapshot.Len())
	assert.False(t, snapshot.HasEntry(11))
}
