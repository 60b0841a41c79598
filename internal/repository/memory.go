package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/race-predictor/internal/models"
)

var errTxDone = errors.New("transaction already committed or rolled back")

// MemoryPredictionStore is an in-process PredictionStore with the same
// transactional visibility rules as the Postgres store. Writes staged in a
// transaction are only published on Commit.
type MemoryPredictionStore struct {
	mu          sync.RWMutex
	nextID      int64
	nextPickID  int64
	predictions map[int64]*models.Prediction
	races       map[int64]string // race id -> venue, for venue filters

	// Failure injection for tests
	FailBegin  error
	FailCreate error
	FailCommit error

	now func() time.Time
}

// NewMemoryPredictionStore creates an empty in-memory store
func NewMemoryPredictionStore() *MemoryPredictionStore {
	return &MemoryPredictionStore{
		predictions: make(map[int64]*models.Prediction),
		races:       make(map[int64]string),
		now:         time.Now,
	}
}

// SetRaceVenue records the venue used by venue filters
func (s *MemoryPredictionStore) SetRaceVenue(raceID int64, venue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.races[raceID] = venue
}

// Count returns the number of committed predictions
func (s *MemoryPredictionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.predictions)
}

type memoryPredictionTx struct {
	store  *MemoryPredictionStore
	staged []*models.Prediction
	done   bool
}

// Begin starts a staged transaction
func (s *MemoryPredictionStore) Begin(_ context.Context) (PredictionTx, error) {
	if s.FailBegin != nil {
		return nil, s.FailBegin
	}
	return &memoryPredictionTx{store: s}, nil
}

func (t *memoryPredictionTx) CreatePrediction(_ context.Context, prediction *models.Prediction) error {
	if t.done {
		return errTxDone
	}
	if t.store.FailCreate != nil {
		return t.store.FailCreate
	}

	ranks := make(map[int]struct{}, len(prediction.Picks))
	for _, pick := range prediction.Picks {
		if _, dup := ranks[pick.Rank]; dup {
			return fmt.Errorf("failed to create prediction pick: %w: rank %d", models.ErrDuplicateKey, pick.Rank)
		}
		ranks[pick.Rank] = struct{}{}
	}

	if prediction.Result == "" {
		prediction.Result = models.ResultPending
	}

	// ids are reserved at insert time, like a sequence; rolled back ids are not reused
	s := t.store
	s.mu.Lock()
	s.nextID++
	prediction.ID = s.nextID
	prediction.CreatedAt = s.now()
	for i := range prediction.Picks {
		s.nextPickID++
		prediction.Picks[i].ID = s.nextPickID
		prediction.Picks[i].PredictionID = prediction.ID
	}
	s.mu.Unlock()

	t.staged = append(t.staged, clonePrediction(prediction))
	return nil
}

func (t *memoryPredictionTx) Commit(_ context.Context) error {
	if t.done {
		return errTxDone
	}
	if t.store.FailCommit != nil {
		t.done = true
		t.staged = nil
		return t.store.FailCommit
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, prediction := range t.staged {
		s.predictions[prediction.ID] = prediction
	}

	t.done = true
	t.staged = nil
	return nil
}

func (t *memoryPredictionTx) Rollback(_ context.Context) error {
	t.done = true
	t.staged = nil
	return nil
}

// GetByID retrieves a prediction owned by the user
func (s *MemoryPredictionStore) GetByID(_ context.Context, userID, id int64) (*models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prediction, ok := s.predictions[id]
	if !ok || prediction.UserID != userID {
		return nil, models.ErrNotFound
	}
	return clonePrediction(prediction), nil
}

// ListByUser retrieves one page of a user's history plus aggregate stats
func (s *MemoryPredictionStore) ListByUser(_ context.Context, params models.PredictionListParams) (*models.PredictionListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.filtered(func(p *models.Prediction) bool { return s.matches(p, params) })

	hits := 0
	stake, payout := decimal.Zero, decimal.Zero
	for _, p := range matched {
		if p.Result == models.ResultHit {
			hits++
		}
		stake = stake.Add(p.StakeAmount)
		payout = payout.Add(p.Payout)
	}

	start := min(max(params.Offset, 0), len(matched))
	end := min(start+params.EffectiveLimit(), len(matched))

	return &models.PredictionListResult{
		Items:  matched[start:end],
		Total:  len(matched),
		Params: params,
		Stats:  models.NewPredictionStats(len(matched), hits, stake, payout),
	}, nil
}

// Compare returns the prediction with the user's other predictions on the same race
func (s *MemoryPredictionStore) Compare(ctx context.Context, userID, id int64) (*models.PredictionComparison, error) {
	current, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.filtered(func(p *models.Prediction) bool {
		return p.UserID == userID && p.RaceID == current.RaceID && p.ID != current.ID
	})
	if len(history) > models.ComparisonLimit {
		history = history[:models.ComparisonLimit]
	}

	return &models.PredictionComparison{Current: current, History: history}, nil
}

// CountByUser counts a user's committed predictions
func (s *MemoryPredictionStore) CountByUser(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.predictions {
		if p.UserID == userID {
			count++
		}
	}
	return count, nil
}

// filtered returns matching predictions newest first. Callers hold the read lock.
func (s *MemoryPredictionStore) filtered(keep func(*models.Prediction) bool) []*models.Prediction {
	var out []*models.Prediction
	for _, p := range s.predictions {
		if keep(p) {
			out = append(out, clonePrediction(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PredictionAt.Equal(out[j].PredictionAt) {
			return out[i].PredictionAt.After(out[j].PredictionAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *MemoryPredictionStore) matches(p *models.Prediction, params models.PredictionListParams) bool {
	switch {
	case p.UserID != params.UserID:
		return false
	case params.StartAt != nil && p.PredictionAt.Before(*params.StartAt):
		return false
	case params.EndAt != nil && p.PredictionAt.After(*params.EndAt):
		return false
	case params.RaceID != nil && p.RaceID != *params.RaceID:
		return false
	case params.Venue != nil && s.races[p.RaceID] != *params.Venue:
		return false
	case params.Result != nil && p.Result != *params.Result:
		return false
	}
	return true
}

func clonePrediction(p *models.Prediction) *models.Prediction {
	c := *p
	c.Picks = append([]models.PredictionPick(nil), p.Picks...)
	c.Memo = append([]byte(nil), p.Memo...)
	return &c
}

// MemoryRaceRepository is an in-process RaceRepository
type MemoryRaceRepository struct {
	mu      sync.RWMutex
	races   map[int64]*models.Race
	entries map[int64][]*models.RaceEntry

	// Calls counts GetByID lookups, for cache tests
	Calls int
}

// NewMemoryRaceRepository creates an empty race repository
func NewMemoryRaceRepository() *MemoryRaceRepository {
	return &MemoryRaceRepository{
		races:   make(map[int64]*models.Race),
		entries: make(map[int64][]*models.RaceEntry),
	}
}

// AddRace stores a race and its entries
func (r *MemoryRaceRepository) AddRace(race *models.Race, entries ...*models.RaceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.races[race.ID] = race
	for _, e := range entries {
		e.RaceID = race.ID
	}
	r.entries[race.ID] = entries
}

func (r *MemoryRaceRepository) GetByID(_ context.Context, id int64) (*models.Race, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls++
	race, ok := r.races[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *race
	return &c, nil
}

func (r *MemoryRaceRepository) GetEntries(_ context.Context, raceID int64) ([]*models.RaceEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.RaceEntry, 0, len(r.entries[raceID]))
	for _, e := range r.entries[raceID] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (r *MemoryRaceRepository) GetUpcoming(_ context.Context, limit int) ([]*models.Race, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Race
	for _, race := range r.races {
		if race.IsUpcoming() {
			c := *race
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RaceDate.Equal(out[j].RaceDate) {
			return out[i].RaceDate.Before(out[j].RaceDate)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
