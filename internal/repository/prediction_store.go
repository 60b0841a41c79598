package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/yourusername/race-predictor/internal/database"
	"github.com/yourusername/race-predictor/internal/models"
)

const (
	errScanPrediction = "failed to scan prediction: %w"
	pgUniqueViolation = "23505"

	predictionColumns = `p.id, p.user_id, p.race_id, COALESCE(p.model_version, ''), p.stake_amount::text,
		p.odds::text, p.payout::text, p.result, p.memo, p.prediction_at, p.created_at`
)

// PostgresPredictionStore implements PredictionStore for PostgreSQL
type PostgresPredictionStore struct {
	db *database.DB
}

// NewPostgresPredictionStore creates a new prediction store
func NewPostgresPredictionStore(db *database.DB) PredictionStore {
	return &PostgresPredictionStore{db: db}
}

// postgresPredictionTx wraps a pgx.Tx for one prediction attempt
type postgresPredictionTx struct {
	tx pgx.Tx
}

// Begin starts a prediction transaction
func (s *PostgresPredictionStore) Begin(ctx context.Context) (PredictionTx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &postgresPredictionTx{tx: tx}, nil
}

// CreatePrediction inserts the prediction row and its picks in one round of statements
func (t *postgresPredictionTx) CreatePrediction(ctx context.Context, prediction *models.Prediction) error {
	if prediction.Result == "" {
		prediction.Result = models.ResultPending
	}

	query := `
		INSERT INTO predictions (user_id, race_id, model_version, stake_amount, odds, payout, result, memo, prediction_at)
		VALUES ($1, $2, NULLIF($3, ''), $4::numeric, $5::numeric, $6::numeric, $7, $8, $9)
		RETURNING id, created_at
	`

	err := t.tx.QueryRow(ctx, query,
		prediction.UserID, prediction.RaceID, prediction.ModelVersion,
		prediction.StakeAmount.String(), decimalText(prediction.Odds), prediction.Payout.String(),
		string(prediction.Result), []byte(prediction.Memo), prediction.PredictionAt,
	).Scan(&prediction.ID, &prediction.CreatedAt)
	if err != nil {
		return mapWriteError("failed to create prediction", err)
	}

	batch := &pgx.Batch{}
	for i := range prediction.Picks {
		pick := &prediction.Picks[i]
		pick.PredictionID = prediction.ID
		batch.Queue(`
			INSERT INTO prediction_picks (prediction_id, race_entry_id, rank, probability, odds)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric)
			RETURNING id
		`, pick.PredictionID, pick.EntryID, pick.Rank, pick.Probability.String(), decimalText(pick.Odds))
	}

	results := t.tx.SendBatch(ctx, batch)
	for i := range prediction.Picks {
		if err := results.QueryRow().Scan(&prediction.Picks[i].ID); err != nil {
			_ = results.Close()
			return mapWriteError("failed to create prediction pick", err)
		}
	}
	if err := results.Close(); err != nil {
		return mapWriteError("failed to create prediction picks", err)
	}

	return nil
}

func (t *postgresPredictionTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit prediction: %w", err)
	}
	return nil
}

func (t *postgresPredictionTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back prediction: %w", err)
	}
	return nil
}

// GetByID retrieves a prediction owned by the user
func (s *PostgresPredictionStore) GetByID(ctx context.Context, userID, id int64) (*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions p WHERE p.id = $1 AND p.user_id = $2`

	prediction, err := scanPrediction(s.db.GetPool().QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	if err := s.attachPicks(ctx, []*models.Prediction{prediction}); err != nil {
		return nil, err
	}
	return prediction, nil
}

// ListByUser retrieves one page of a user's history plus aggregate stats
func (s *PostgresPredictionStore) ListByUser(ctx context.Context, params models.PredictionListParams) (*models.PredictionListResult, error) {
	where, args := historyFilter(params)

	listQuery := fmt.Sprintf(`
		SELECT %s FROM predictions p JOIN races r ON r.id = p.race_id
		WHERE %s
		ORDER BY p.prediction_at DESC, p.id DESC
		LIMIT %d OFFSET %d
	`, predictionColumns, where, params.EffectiveLimit(), max(params.Offset, 0))

	items, err := s.queryPredictions(ctx, listQuery, args...)
	if err != nil {
		return nil, err
	}

	statsQuery := fmt.Sprintf(`
		SELECT COUNT(p.id),
		       COALESCE(SUM(CASE WHEN p.result = 'hit' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(p.stake_amount), 0)::text,
		       COALESCE(SUM(p.payout), 0)::text
		FROM predictions p JOIN races r ON r.id = p.race_id
		WHERE %s
	`, where)

	var (
		total, hits   int
		stake, payout decimal.Decimal
	)
	if err := s.db.GetPool().QueryRow(ctx, statsQuery, args...).Scan(&total, &hits, &stake, &payout); err != nil {
		return nil, fmt.Errorf("failed to aggregate predictions: %w", err)
	}

	return &models.PredictionListResult{
		Items:  items,
		Total:  total,
		Params: params,
		Stats:  models.NewPredictionStats(total, hits, stake, payout),
	}, nil
}

// Compare returns the prediction with the user's other predictions on the same race
func (s *PostgresPredictionStore) Compare(ctx context.Context, userID, id int64) (*models.PredictionComparison, error) {
	current, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM predictions p
		WHERE p.user_id = $1 AND p.race_id = $2 AND p.id <> $3
		ORDER BY p.prediction_at DESC, p.id DESC
		LIMIT %d
	`, predictionColumns, models.ComparisonLimit)

	history, err := s.queryPredictions(ctx, query, userID, current.RaceID, current.ID)
	if err != nil {
		return nil, err
	}

	return &models.PredictionComparison{Current: current, History: history}, nil
}

// CountByUser counts a user's predictions
func (s *PostgresPredictionStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM predictions WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

func (s *PostgresPredictionStore) queryPredictions(ctx context.Context, query string, args ...interface{}) ([]*models.Prediction, error) {
	rows, err := s.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*models.Prediction
	for rows.Next() {
		prediction, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanPrediction, err)
		}
		predictions = append(predictions, prediction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}

	if err := s.attachPicks(ctx, predictions); err != nil {
		return nil, err
	}
	return predictions, nil
}

// attachPicks loads picks for all given predictions in one query
func (s *PostgresPredictionStore) attachPicks(ctx context.Context, predictions []*models.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}

	ids := make([]int64, len(predictions))
	byID := make(map[int64]*models.Prediction, len(predictions))
	for i, p := range predictions {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Picks = []models.PredictionPick{}
	}

	rows, err := s.db.GetPool().Query(ctx, `
		SELECT id, prediction_id, rank, COALESCE(race_entry_id, 0), COALESCE(probability, 0)::text, odds::text
		FROM prediction_picks
		WHERE prediction_id = ANY($1)
		ORDER BY prediction_id, rank
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query prediction picks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pick models.PredictionPick
			odds decimal.NullDecimal
		)
		if err := rows.Scan(&pick.ID, &pick.PredictionID, &pick.Rank, &pick.EntryID, &pick.Probability, &odds); err != nil {
			return fmt.Errorf("failed to scan prediction pick: %w", err)
		}
		pick.Odds = nullDecimalPtr(odds)
		if p, ok := byID[pick.PredictionID]; ok {
			p.Picks = append(p.Picks, pick)
		}
	}

	return rows.Err()
}

// historyFilter builds the WHERE clause shared by the list and stats queries
func historyFilter(params models.PredictionListParams) (string, []interface{}) {
	clauses := []string{"p.user_id = $1"}
	args := []interface{}{params.UserID}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if params.StartAt != nil {
		add("p.prediction_at >= $%d", *params.StartAt)
	}
	if params.EndAt != nil {
		add("p.prediction_at <= $%d", *params.EndAt)
	}
	if params.RaceID != nil {
		add("p.race_id = $%d", *params.RaceID)
	}
	if params.Venue != nil {
		add("r.venue = $%d", *params.Venue)
	}
	if params.Result != nil {
		add("p.result = $%d", string(*params.Result))
	}

	return strings.Join(clauses, " AND "), args
}

func scanPrediction(row pgx.Row) (*models.Prediction, error) {
	var (
		prediction models.Prediction
		odds       decimal.NullDecimal
		result     string
		memo       []byte
	)
	err := row.Scan(
		&prediction.ID, &prediction.UserID, &prediction.RaceID, &prediction.ModelVersion,
		&prediction.StakeAmount, &odds, &prediction.Payout, &result, &memo,
		&prediction.PredictionAt, &prediction.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	prediction.Odds = nullDecimalPtr(odds)
	prediction.Result = models.PredictionResult(result)
	prediction.Memo = memo
	return &prediction, nil
}

func mapWriteError(message string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w: %s", message, models.ErrDuplicateKey, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", message, err)
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
