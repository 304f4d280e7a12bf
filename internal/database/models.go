package database

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is one persisted strategy analysis.
type AnalysisRun struct {
	ID             uuid.UUID `json:"id"`
	Instrument     string    `json:"instrument"`
	Granularity    string    `json:"granularity"`
	Model          string    `json:"model"`
	Provider       string    `json:"provider"`
	TrendDirection string    `json:"trend_direction"`
	TrendStrength  string    `json:"trend_strength"`
	CurrentPrice   float64   `json:"current_price"`
	EntryPrice     *float64  `json:"entry_price,omitempty"`
	StopLoss       *float64  `json:"stop_loss,omitempty"`
	TakeProfit1    *float64  `json:"take_profit_1,omitempty"`
	TakeProfit2    *float64  `json:"take_profit_2,omitempty"`
	Analysis       string    `json:"analysis"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

// Feedback is a user rating of a generated analysis.
type Feedback struct {
	ID           uuid.UUID  `json:"id"`
	RunID        *uuid.UUID `json:"run_id,omitempty"`
	Model        string     `json:"model"`
	Rating       int        `json:"rating"` // 1-5
	Comment      string     `json:"comment,omitempty"`
	FeedbackType string     `json:"feedback_type,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ModelFeedbackSummary aggregates ratings per model.
type ModelFeedbackSummary struct {
	Model         string  `json:"model"`
	Count         int64   `json:"count"`
	AverageRating float64 `json:"average_rating"`
}
