package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultStakeAmount is applied when a request does not specify a stake
var DefaultStakeAmount = decimal.RequireFromString("100.00")

// ProbabilityPlaces is the number of fractional digits kept for probabilities
const ProbabilityPlaces = 4

// PredictionRequest describes one prediction run requested by a caller
type PredictionRequest struct {
	RaceID       int64            `json:"raceId" validate:"required,gte=1"`
	ModelID      string           `json:"modelId,omitempty" validate:"max=128"`
	FeatureSetID string           `json:"featureSetId,omitempty" validate:"max=128"`
	StakeAmount  *decimal.Decimal `json:"stakeAmount,omitempty" validate:"omitempty,gte=0"`
}

// ConfidenceInterval bounds a probability estimate
type ConfidenceInterval struct {
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
}

// InferenceRanking is one (entry, probability) pair returned by a gateway
type InferenceRanking struct {
	EntryID            int64
	Probability        decimal.Decimal
	ConfidenceInterval *ConfidenceInterval
}

// FeatureContribution explains how much a feature influenced the ranking
type FeatureContribution struct {
	FeatureID    string          `json:"featureId"`
	Importance   decimal.Decimal `json:"importance"`
	Contribution decimal.Decimal `json:"contribution"`
}

// InferenceResult is the output of a model gateway. Rankings are ordered by
// confidence; rank is assigned by position.
type InferenceResult struct {
	Rankings             []InferenceRanking
	FeatureContributions []FeatureContribution
	ModelVersion         string
	ElapsedMs            int64
}

// PredictionResult is the settlement state of a stored prediction
type PredictionResult string

const (
	ResultPending PredictionResult = "pending"
	ResultHit     PredictionResult = "hit"
	ResultMiss    PredictionResult = "miss"
)

// PredictionPick is a persisted ranking within a prediction
type PredictionPick struct {
	ID           int64            `db:"id" json:"id"`
	PredictionID int64            `db:"prediction_id" json:"prediction_id"`
	Rank         int              `db:"rank" json:"rank"`
	EntryID      int64            `db:"race_entry_id" json:"race_entry_id"`
	Probability  decimal.Decimal  `db:"probability" json:"probability"`
	Odds         *decimal.Decimal `db:"odds" json:"odds,omitempty"`
}

// Prediction is a stored prediction with its ordered picks
type Prediction struct {
	ID           int64            `db:"id" json:"id"`
	UserID       int64            `db:"user_id" json:"user_id"`
	RaceID       int64            `db:"race_id" json:"race_id"`
	ModelVersion string           `db:"model_version" json:"model_version"`
	StakeAmount  decimal.Decimal  `db:"stake_amount" json:"stake_amount"`
	Odds         *decimal.Decimal `db:"odds" json:"odds,omitempty"`
	Payout       decimal.Decimal  `db:"payout" json:"payout"`
	Result       PredictionResult `db:"result" json:"result"`
	Memo         json.RawMessage  `db:"memo" json:"memo,omitempty"`
	PredictionAt time.Time        `db:"prediction_at" json:"prediction_at"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	Picks        []PredictionPick `db:"-" json:"picks"`
}

// AuditMemo is the structured payload stored alongside a prediction
type AuditMemo struct {
	JobID        string                `json:"job_id"`
	ModelID      *string               `json:"model_id"`
	FeatureSetID *string               `json:"feature_set_id"`
	ElapsedMs    int64                 `json:"elapsed_ms"`
	Explanations []FeatureContribution `json:"explanations"`
}

// JobStatus is the state of a prediction job
type JobStatus string

// JobCompleted is the status of every returned job result
const JobCompleted JobStatus = "completed"

// JobMetadata describes which model produced a job result
type JobMetadata struct {
	ModelID      *string `json:"modelId"`
	ModelVersion *string `json:"modelVersion"`
	FeatureSetID *string `json:"featureSetId"`
	ElapsedMs    int64   `json:"elapsedMs"`
}

// RankingResult is a ranking joined with runner metadata
type RankingResult struct {
	Rank               int                 `json:"rank"`
	EntryID            int64               `json:"entryId"`
	RunnerNumber       *int                `json:"runnerNumber,omitempty"`
	RunnerName         *string             `json:"runnerName,omitempty"`
	Probability        decimal.Decimal     `json:"probability"`
	ConfidenceInterval *ConfidenceInterval `json:"confidenceInterval,omitempty"`
}

// JobResult is the caller-facing outcome of a prediction run
type JobResult struct {
	JobID        string                `json:"jobId"`
	Status       JobStatus             `json:"status"`
	PredictionID *int64                `json:"predictionId"`
	Metadata     JobMetadata           `json:"metadata"`
	Rankings     []RankingResult       `json:"rankings"`
	Explanations []FeatureContribution `json:"explanations"`
}

// OptionalString returns nil for the empty string
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
