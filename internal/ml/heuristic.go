package ml

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/yourusername/race-predictor/internal/models"
)

const (
	heuristicModelID       = "heuristic"
	heuristicBaseCostMs    = 200
	heuristicPerRunnerMs   = 90
	heuristicMaxElapsedMs  = 5000
	heuristicVersionSuffix = "-v1"
)

var (
	heuristicIntervalHalfWidth = decimal.RequireFromString("0.0400")
	probabilityOne             = decimal.NewFromInt(1)

	// heuristicContributions is a fixed placeholder explanation, not a trained signal
	heuristicContributions = []models.FeatureContribution{
		{FeatureID: "speed_index", Importance: decimal.RequireFromString("0.45"), Contribution: decimal.RequireFromString("0.18")},
		{FeatureID: "stamina_score", Importance: decimal.RequireFromString("0.32"), Contribution: decimal.RequireFromString("0.12")},
		{FeatureID: "jockey_win_rate", Importance: decimal.RequireFromString("0.23"), Contribution: decimal.RequireFromString("0.09")},
	}
)

// HeuristicGateway ranks runners by number with linearly decreasing weights.
// It needs no external service and is deterministic for a given snapshot.
type HeuristicGateway struct{}

// NewHeuristicGateway creates a new heuristic gateway
func NewHeuristicGateway() *HeuristicGateway {
	return &HeuristicGateway{}
}

// Infer ranks the snapshot's runners. Probabilities always sum to exactly 1.0000.
func (g *HeuristicGateway) Infer(_ context.Context, snapshot *models.RaceSnapshot, modelID, _ string) (*models.InferenceResult, error) {
	if snapshot == nil || snapshot.Len() == 0 {
		var raceID int64
		if snapshot != nil {
			raceID = snapshot.RaceID()
		}
		return nil, models.NewEmptyEntriesError(raceID)
	}

	entries := snapshot.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return runnerLess(entries[i], entries[j])
	})

	k := len(entries)
	totalWeight := decimal.NewFromInt(int64(k * (k + 1) / 2))
	remaining := probabilityOne

	rankings := make([]models.InferenceRanking, 0, k)
	for i, entry := range entries {
		var probability decimal.Decimal
		if i == k-1 {
			// last runner absorbs rounding loss so the set sums to one
			probability = remaining.Round(models.ProbabilityPlaces)
		} else {
			weight := decimal.NewFromInt(int64(k - i))
			probability = weight.Div(totalWeight).Round(models.ProbabilityPlaces)
			remaining = remaining.Sub(probability)
			if remaining.IsNegative() {
				remaining = decimal.Zero
			}
		}

		rankings = append(rankings, models.InferenceRanking{
			EntryID:            entry.EntryID,
			Probability:        probability,
			ConfidenceInterval: heuristicInterval(probability),
		})
	}

	resolvedModelID := modelID
	if resolvedModelID == "" {
		resolvedModelID = heuristicModelID
	}

	contributions := make([]models.FeatureContribution, len(heuristicContributions))
	copy(contributions, heuristicContributions)

	return &models.InferenceResult{
		Rankings:             rankings,
		FeatureContributions: contributions,
		ModelVersion:         resolvedModelID + heuristicVersionSuffix,
		ElapsedMs:            int64(min(heuristicMaxElapsedMs, heuristicBaseCostMs+heuristicPerRunnerMs*k)),
	}, nil
}

// Close is a no-op; the heuristic holds no resources
func (g *HeuristicGateway) Close() error {
	return nil
}

// runnerLess orders by runner number, unnumbered runners last, then by entry id
func runnerLess(a, b models.RunnerEntry) bool {
	switch {
	case a.RunnerNumber != nil && b.RunnerNumber != nil:
		if *a.RunnerNumber != *b.RunnerNumber {
			return *a.RunnerNumber < *b.RunnerNumber
		}
	case a.RunnerNumber != nil:
		return true
	case b.RunnerNumber != nil:
		return false
	}
	return a.EntryID < b.EntryID
}

func heuristicInterval(probability decimal.Decimal) *models.ConfidenceInterval {
	lower := probability.Sub(heuristicIntervalHalfWidth).Round(models.ProbabilityPlaces)
	upper := probability.Add(heuristicIntervalHalfWidth).Round(models.ProbabilityPlaces)
	if lower.IsNegative() {
		lower = decimal.Zero
	}
	if upper.GreaterThan(probabilityOne) {
		upper = probabilityOne
	}
	return &models.ConfidenceInterval{Lower: lower, Upper: upper}
}
