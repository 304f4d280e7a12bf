// Package database persists analysis runs and user feedback in PostgreSQL.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository provides access to analysis run and feedback storage.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over the given connection.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveAnalysisRun inserts a completed analysis run and assigns its ID.
func (r *Repository) SaveAnalysisRun(ctx context.Context, run *AnalysisRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO analysis_runs (
			id, instrument, granularity, model, provider,
			trend_direction, trend_strength, current_price,
			entry_price, stop_loss, take_profit_1, take_profit_2,
			analysis, elapsed_seconds, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		run.ID, run.Instrument, run.Granularity, run.Model, run.Provider,
		run.TrendDirection, run.TrendStrength, run.CurrentPrice,
		run.EntryPrice, run.StopLoss, run.TakeProfit1, run.TakeProfit2,
		run.Analysis, run.ElapsedSeconds, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis run: %w", err)
	}
	return nil
}

// RecentAnalysisRuns returns the most recent runs, newest first.
func (r *Repository) RecentAnalysisRuns(ctx context.Context, limit int) ([]AnalysisRun, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, instrument, granularity, model, provider,
		       trend_direction, trend_strength, current_price,
		       entry_price, stop_loss, take_profit_1, take_profit_2,
		       analysis, elapsed_seconds, created_at
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		var run AnalysisRun
		if err := rows.Scan(
			&run.ID, &run.Instrument, &run.Granularity, &run.Model, &run.Provider,
			&run.TrendDirection, &run.TrendStrength, &run.CurrentPrice,
			&run.EntryPrice, &run.StopLoss, &run.TakeProfit1, &run.TakeProfit2,
			&run.Analysis, &run.ElapsedSeconds, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveFeedback inserts a feedback record and assigns its ID.
func (r *Repository) SaveFeedback(ctx context.Context, fb *Feedback) error {
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", fb.Rating)
	}
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO feedback (id, run_id, model, rating, comment, feedback_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fb.ID, fb.RunID, fb.Model, fb.Rating, fb.Comment, fb.FeedbackType, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// FeedbackByModel returns feedback records for one model, newest first.
func (r *Repository) FeedbackByModel(ctx context.Context, model string, limit int) ([]Feedback, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, run_id, model, rating, comment, feedback_type, created_at
		FROM feedback
		WHERE model = $1
		ORDER BY created_at DESC
		LIMIT $2`, model, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var items []Feedback
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.RunID, &fb.Model, &fb.Rating, &fb.Comment, &fb.FeedbackType, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		items = append(items, fb)
	}
	return items, rows.Err()
}

// FeedbackSummary aggregates rating counts and averages per model.
func (r *Repository) FeedbackSummary(ctx context.Context) ([]ModelFeedbackSummary, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT model, COUNT(*), AVG(rating)::float8
		FROM feedback
		GROUP BY model
		ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback summary: %w", err)
	}
	defer rows.Close()

	var summaries []ModelFeedbackSummary
	for rows.Next() {
		var s ModelFeedbackSummary
		if err := rows.Scan(&s.Model, &s.Count, &s.AverageRating); err != nil {
			return nil, fmt.Errorf("failed to scan feedback summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
