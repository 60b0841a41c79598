package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default and maximum page sizes for prediction history
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
	ComparisonLimit     = 10
)

// PredictionListParams filters a user's prediction history
type PredictionListParams struct {
	UserID  int64             `validate:"required,gte=1"`
	Limit   int               `validate:"gte=0,lte=100"`
	Offset  int               `validate:"gte=0"`
	StartAt *time.Time
	EndAt   *time.Time
	RaceID  *int64
	Venue   *string
	Result  *PredictionResult `validate:"omitempty,oneof=pending hit miss"`
}

// EffectiveLimit returns the page size with the default applied
func (p PredictionListParams) EffectiveLimit() int {
	if p.Limit <= 0 {
		return DefaultHistoryLimit
	}
	if p.Limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return p.Limit
}

// PredictionStats aggregates a filtered prediction history
type PredictionStats struct {
	Total       int             `json:"total"`
	HitCount    int             `json:"hit_count"`
	HitRate     decimal.Decimal `json:"hit_rate"`
	TotalStake  decimal.Decimal `json:"total_stake"`
	TotalPayout decimal.Decimal `json:"total_payout"`
	ReturnRate  decimal.Decimal `json:"return_rate"`
}

// NewPredictionStats derives rates from raw sums. Money is kept to 2 places, rates to 4.
func NewPredictionStats(total, hits int, stake, payout decimal.Decimal) PredictionStats {
	stats := PredictionStats{
		Total:       total,
		HitCount:    hits,
		HitRate:     decimal.Zero,
		TotalStake:  stake.Round(2),
		TotalPayout: payout.Round(2),
		ReturnRate:  decimal.Zero,
	}
	if total > 0 {
		stats.HitRate = decimal.NewFromInt(int64(hits)).Div(decimal.NewFromInt(int64(total))).Round(4)
	}
	if !stats.TotalStake.IsZero() {
		stats.ReturnRate = stats.TotalPayout.Div(stats.TotalStake).Round(4)
	}
	return stats
}

// PredictionListResult is one page of history with stats over the whole filter
type PredictionListResult struct {
	Items  []*Prediction        `json:"items"`
	Total  int                  `json:"total"`
	Params PredictionListParams `json:"-"`
	Stats  PredictionStats      `json:"stats"`
}

// PredictionComparison pairs a prediction with the user's other predictions on the same race
type PredictionComparison struct {
	Current *Prediction   `json:"current"`
	History []*Prediction `json:"history"`
}
