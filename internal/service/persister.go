package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/race-predictor/internal/models"
	"github.com/yourusername/race-predictor/internal/repository"
)

// Persister writes one prediction and its ranked picks inside a caller-owned transaction
type Persister struct {
	defaultStake decimal.Decimal
	now          func() time.Time
}

// NewPersister creates a persister applying defaultStake when a request has none
func NewPersister(defaultStake decimal.Decimal) *Persister {
	return &Persister{defaultStake: defaultStake, now: time.Now}
}

// Persist maps the inference rankings to picks ranked 1..k by position and
// stages them on tx. The caller commits or rolls back.
func (p *Persister) Persist(
	ctx context.Context,
	tx repository.PredictionTx,
	jobID string,
	userID int64,
	snapshot *models.RaceSnapshot,
	req models.PredictionRequest,
	result *models.InferenceResult,
) (*models.Prediction, error) {
	picks := make([]models.PredictionPick, 0, len(result.Rankings))
	for i, ranking := range result.Rankings {
		if !snapshot.HasEntry(ranking.EntryID) {
			return nil, models.NewInvalidEntryReferenceError(snapshot.RaceID(), ranking.EntryID)
		}
		picks = append(picks, models.PredictionPick{
			Rank:        i + 1,
			EntryID:     ranking.EntryID,
			Probability: ranking.Probability.Round(models.ProbabilityPlaces),
		})
	}

	memo, err := json.Marshal(models.AuditMemo{
		JobID:        jobID,
		ModelID:      models.OptionalString(req.ModelID),
		FeatureSetID: models.OptionalString(req.FeatureSetID),
		ElapsedMs:    result.ElapsedMs,
		Explanations: nonNilContributions(result.FeatureContributions),
	})
	if err != nil {
		return nil, models.NewPersistenceError(err, "failed to encode audit memo for job %s", jobID)
	}

	stake := p.defaultStake
	if req.StakeAmount != nil {
		stake = *req.StakeAmount
	}

	prediction := &models.Prediction{
		UserID:       userID,
		RaceID:       snapshot.RaceID(),
		ModelVersion: result.ModelVersion,
		StakeAmount:  stake,
		Payout:       decimal.Zero,
		Result:       models.ResultPending,
		Memo:         memo,
		PredictionAt: p.now(),
		Picks:        picks,
	}

	if err := tx.CreatePrediction(ctx, prediction); err != nil {
		return nil, models.NewPersistenceError(err, "failed to store prediction for race %d", snapshot.RaceID())
	}

	return prediction, nil
}

func nonNilContributions(c []models.FeatureContribution) []models.FeatureContribution {
	if c == nil {
		return []models.FeatureContribution{}
	}
	return c
}
