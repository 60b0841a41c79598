package service

import (
	"fmt"

	"github.com/yourusername/race-predictor/internal/models"
)

// ResponseAssembler joins persisted picks with runner metadata
type ResponseAssembler struct{}

// NewResponseAssembler creates an assembler
func NewResponseAssembler() *ResponseAssembler {
	return &ResponseAssembler{}
}

// Assemble builds the completed JobResult. Picks keep their persisted order;
// confidence intervals are taken from the ranking at the same position.
func (a *ResponseAssembler) Assemble(
	jobID string,
	snapshot *models.RaceSnapshot,
	req models.PredictionRequest,
	result *models.InferenceResult,
	prediction *models.Prediction,
) (*models.JobResult, error) {
	if len(prediction.Picks) != len(result.Rankings) {
		return nil, models.NewOrchestrationError(fmt.Errorf("prediction %d has %d picks for %d rankings", prediction.ID, len(prediction.Picks), len(result.Rankings)))
	}

	rankings := make([]models.RankingResult, 0, len(prediction.Picks))
	for i, pick := range prediction.Picks {
		entry, ok := snapshot.Entry(pick.EntryID)
		if !ok {
			return nil, models.NewInvalidEntryReferenceError(snapshot.RaceID(), pick.EntryID)
		}
		rankings = append(rankings, models.RankingResult{
			Rank:               pick.Rank,
			EntryID:            pick.EntryID,
			RunnerNumber:       entry.RunnerNumber,
			RunnerName:         models.OptionalString(entry.RunnerName),
			Probability:        pick.Probability,
			ConfidenceInterval: result.Rankings[i].ConfidenceInterval,
		})
	}

	predictionID := prediction.ID
	return &models.JobResult{
		JobID:        jobID,
		Status:       models.JobCompleted,
		PredictionID: &predictionID,
		Metadata: models.JobMetadata{
			ModelID:      models.OptionalString(req.ModelID),
			ModelVersion: models.OptionalString(result.ModelVersion),
			FeatureSetID: models.OptionalString(req.FeatureSetID),
			ElapsedMs:    result.ElapsedMs,
		},
		Rankings:     rankings,
		Explanations: nonNilContributions(result.FeatureContributions),
	}, nil
}
