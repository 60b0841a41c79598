package models

import (
	"fmt"
	"time"
)

// Race represents a race event in the system
type Race struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"race_name" json:"race_name"`
	RaceDate   time.Time `db:"race_date" json:"race_date"`
	Venue      string    `db:"venue" json:"venue"`
	RaceNumber *int      `db:"race_number" json:"race_number"`
	Distance   *int      `db:"distance" json:"distance"`
	Status     string    `db:"status" json:"status" validate:"oneof=scheduled in_progress finished cancelled"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// IsUpcoming checks if the race hasn't started yet
func (r *Race) IsUpcoming() bool {
	return r.Status == "scheduled"
}

// RaceEntry is a runner registered in a race as stored by the race data source.
type RaceEntry struct {
	ID          int64   `db:"id" json:"id"`
	RaceID      int64   `db:"race_id" json:"race_id"`
	HorseID     *int64  `db:"horse_id" json:"horse_id"`
	HorseNumber *int    `db:"horse_number" json:"horse_number"`
	HorseName   *string `db:"horse_name" json:"horse_name"`
}

// RunnerEntry is the projection of a race entry used during a prediction run.
type RunnerEntry struct {
	EntryID      int64
	RunnerNumber *int
	RunnerName   string
}

// RaceSnapshot is an immutable, fully materialized view of a race and its runners.
// Entry ids are unique and the entry list is never empty.
type RaceSnapshot struct {
	raceID  int64
	entries []RunnerEntry
	index   map[int64]int
}

// NewRaceSnapshot builds a snapshot, rejecting empty or duplicated entry sets.
func NewRaceSnapshot(raceID int64, entries []RunnerEntry) (*RaceSnapshot, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("race %d has no runner entries", raceID)
	}

	copied := make([]RunnerEntry, len(entries))
	index := make(map[int64]int, len(entries))
	for i, entry := range entries {
		if _, dup := index[entry.EntryID]; dup {
			return nil, fmt.Errorf("race %d has duplicate entry id %d", raceID, entry.EntryID)
		}
		if entry.RunnerNumber != nil {
			n := *entry.RunnerNumber
			entry.RunnerNumber = &n
		}
		copied[i] = entry
		index[entry.EntryID] = i
	}

	return &RaceSnapshot{raceID: raceID, entries: copied, index: index}, nil
}

// RaceID returns the race identifier
func (s *RaceSnapshot) RaceID() int64 {
	return s.raceID
}

// Len returns the number of runner entries
func (s *RaceSnapshot) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the runner entries in load order
func (s *RaceSnapshot) Entries() []RunnerEntry {
	out := make([]RunnerEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Entry looks up a runner entry by id
func (s *RaceSnapshot) Entry(entryID int64) (RunnerEntry, bool) {
	i, ok := s.index[entryID]
	if !ok {
		return RunnerEntry{}, false
	}
	return s.entries[i], true
}

// HasEntry reports whether the entry id belongs to this race
func (s *RaceSnapshot) HasEntry(entryID int64) bool {
	_, ok := s.index[entryID]
	return ok
}
