// Package tracker records every content generation call in the
// ai_model_usage ledger and aggregates it for the usage endpoint.
package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/tcgbot/errors"
)

// Operation names recorded in operation_type
const (
	OperationGenerateContent = "generate-content"
	OperationGenerateReply   = "generate-reply"
)

// ModelUsage is one row of the ledger
type ModelUsage struct {
	ID                int        `json:"id"`
	OperationType     string     `json:"operation_type"`
	Topic             string     `json:"topic"`
	ModelName         string     `json:"model_name"`
	ModelProvider     string     `json:"model_provider"`
	ModelConfig       *string    `json:"model_config,omitempty"`
	RequestTimestamp  time.Time  `json:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty"`
	TokensUsed        *int       `json:"tokens_used,omitempty"`
	Cost              *float64   `json:"cost,omitempty"`
	Success           bool       `json:"success"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
}

// ModelConfig is the sampling configuration stored as JSON with each call
type ModelConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// UsageTracker writes and reads the ledger
type UsageTracker struct {
	db *sql.DB
}

// NewUsageTracker creates a tracker over an already migrated database
func NewUsageTracker(db *sql.DB) *UsageTracker {
	return &UsageTracker{db: db}
}

// TrackUsage inserts one ledger row
func (t *UsageTracker) TrackUsage(ctx context.Context, usage *ModelUsage) error {
	if t == nil || t.db == nil {
		return nil
	}
	query := `
		INSERT INTO ai_model_usage (
			operation_type, topic, model_name, model_provider, model_config,
			request_timestamp, response_timestamp, tokens_used, cost,
			success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var response *time.Time
	if usage.ResponseTimestamp != nil {
		r := usage.ResponseTimestamp.UTC()
		response = &r
	}
	_, err := t.db.ExecContext(ctx, query,
		usage.OperationType, usage.Topic, usage.ModelName, usage.ModelProvider,
		usage.ModelConfig, usage.RequestTimestamp.UTC(), response,
		usage.TokensUsed, usage.Cost, usage.Success, usage.ErrorMessage,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record %s usage for %s", usage.OperationType, usage.ModelName)
	}
	return nil
}

// UsageStats aggregates the ledger since a point in time
type UsageStats struct {
	Since              time.Time        `json:"since"`
	TotalRequests      int              `json:"total_requests"`
	SuccessfulRequests int              `json:"successful_requests"`
	SuccessRate        float64          `json:"success_rate"`
	TotalTokens        int              `json:"total_tokens"`
	TotalCost          float64          `json:"total_cost"`
	UniqueModels       int              `json:"unique_models"`
	Models             []ModelBreakdown `json:"models"`
}

// GetUsageStats returns totals since the given time
func (t *UsageTracker) GetUsageStats(ctx context.Context, since time.Time) (*UsageStats, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_requests,
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0) as total_tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as total_cost,
			COUNT(DISTINCT model_name) as unique_models
		FROM ai_model_usage
		WHERE request_timestamp >= ?`

	stats := UsageStats{Since: since.UTC(), Models: []ModelBreakdown{}}
	err := t.db.QueryRowContext(ctx, query, since.UTC()).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.TotalTokens, &stats.TotalCost, &stats.UniqueModels,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate usage")
	}
	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}
	return &stats, nil
}

// ModelBreakdown is the successful usage of one model
type ModelBreakdown struct {
	ModelName     string  `json:"model_name"`
	ModelProvider string  `json:"model_provider"`
	RequestCount  int     `json:"request_count"`
	TotalTokens   int     `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
}

// GetModelBreakdown returns successful usage grouped by model, most
// expensive first
func (t *UsageTracker) GetModelBreakdown(ctx context.Context, since time.Time) ([]ModelBreakdown, error) {
	query := `
		SELECT
			model_name,
			model_provider,
			COUNT(*) as request_count,
			SUM(COALESCE(tokens_used, 0)) as total_tokens,
			SUM(COALESCE(cost, 0)) as total_cost
		FROM ai_model_usage
		WHERE request_timestamp >= ? AND success = 1
		GROUP BY model_name, model_provider
		ORDER BY total_cost DESC, model_name ASC`

	rows, err := t.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query model breakdown")
	}
	defer rows.Close()

	breakdown := []ModelBreakdown{}
	for rows.Next() {
		var mb ModelBreakdown
		if err := rows.Scan(&mb.ModelName, &mb.ModelProvider, &mb.RequestCount, &mb.TotalTokens, &mb.TotalCost); err != nil {
			return nil, errors.Wrap(err, "failed to scan model breakdown")
		}
		breakdown = append(breakdown, mb)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read model breakdown")
	}
	return breakdown, nil
}

// Report combines the totals and the per-model breakdown
func (t *UsageTracker) Report(ctx context.Context, since time.Time) (*UsageStats, error) {
	stats, err := t.GetUsageStats(ctx, since)
	if err != nil {
		return nil, err
	}
	models, err := t.GetModelBreakdown(ctx, since)
	if err != nil {
		return nil, err
	}
	stats.Models = models
	return stats, nil
}

// NewModelConfig serializes the sampling parameters, or returns nil when
// neither is set
func NewModelConfig(temperature *float64, maxTokens *int) *string {
	if temperature == nil && maxTokens == nil {
		return nil
	}
	data, err := json.Marshal(ModelConfig{Temperature: temperature, MaxTokens: maxTokens})
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}
