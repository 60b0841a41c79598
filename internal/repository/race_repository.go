package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/race-predictor/internal/database"
	"github.com/yourusername/race-predictor/internal/models"
)

const (
	errScanRace  = "failed to scan race: %w"
	errScanEntry = "failed to scan race entry: %w"

	raceColumns = `id, race_name, race_date, venue, race_number, distance, status, created_at, updated_at`
)

// PostgresRaceRepository implements RaceRepository for PostgreSQL
type PostgresRaceRepository struct {
	db *database.DB
}

// NewPostgresRaceRepository creates a new race repository
func NewPostgresRaceRepository(db *database.DB) RaceRepository {
	return &PostgresRaceRepository{db: db}
}

// GetByID retrieves a race by ID
func (r *PostgresRaceRepository) GetByID(ctx context.Context, id int64) (*models.Race, error) {
	query := `SELECT ` + raceColumns + ` FROM races WHERE id = $1`

	race, err := scanRace(r.db.GetPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get race: %w", err)
	}

	return race, nil
}

// GetEntries retrieves the runner entries of a race with horse names resolved
func (r *PostgresRaceRepository) GetEntries(ctx context.Context, raceID int64) ([]*models.RaceEntry, error) {
	query := `
		SELECT e.id, e.race_id, e.horse_id, e.horse_number, h.name
		FROM race_entries e
		LEFT JOIN horses h ON h.id = e.horse_id
		WHERE e.race_id = $1
		ORDER BY e.id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query race entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.RaceEntry
	for rows.Next() {
		entry := &models.RaceEntry{}
		if err := rows.Scan(&entry.ID, &entry.RaceID, &entry.HorseID, &entry.HorseNumber, &entry.HorseName); err != nil {
			return nil, fmt.Errorf(errScanEntry, err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// GetUpcoming retrieves scheduled races ordered by start time
func (r *PostgresRaceRepository) GetUpcoming(ctx context.Context, limit int) ([]*models.Race, error) {
	query := `
		SELECT ` + raceColumns + `
		FROM races
		WHERE status = 'scheduled' AND race_date > NOW()
		ORDER BY race_date ASC, id ASC
		LIMIT $1
	`

	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming races: %w", err)
	}
	defer rows.Close()

	var races []*models.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanRace, err)
		}
		races = append(races, race)
	}

	return races, rows.Err()
}

func scanRace(row pgx.Row) (*models.Race, error) {
	race := &models.Race{}
	err := row.Scan(
		&race.ID, &race.Name, &race.RaceDate, &race.Venue, &race.RaceNumber,
		&race.Distance, &race.Status, &race.CreatedAt, &race.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return race, nil
}
