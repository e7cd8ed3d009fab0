package primary

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"curator/internal/models"
	"curator/internal/store"
)

var _ store.UsageStore = (*StoreImpl)(nil)

// RecordUsage inserts one oracle usage log entry.
func (s *StoreImpl) RecordUsage(ctx context.Context, usage *models.OracleUsage) error {
	query := `
		INSERT INTO oracle_usage (
			timestamp, provider_name, stage, model_name,
			input_tokens, output_tokens, cost, item_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	if usage.Timestamp.IsZero() {
		usage.Timestamp = time.Now()
	}
	err := s.db.QueryRow(ctx, query,
		usage.Timestamp,
		usage.ProviderName,
		usage.Stage,
		usage.ModelName,
		usage.InputTokens,
		usage.OutputTokens,
		usage.Cost,
		usage.ItemID,
	).Scan(&usage.ID)
	if err != nil {
		return fmt.Errorf("failed to insert oracle usage log: %w", err)
	}
	return nil
}

// ListUsage returns usage logs, newest first.
func (s *StoreImpl) ListUsage(ctx context.Context, limit, offset int) ([]*models.OracleUsage, error) {
	query := `
		SELECT id, timestamp, provider_name, stage, model_name,
		       input_tokens, output_tokens, cost, item_id
		FROM oracle_usage
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query oracle usage logs: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.OracleUsage, error) {
		var usage models.OracleUsage
		err := row.Scan(
			&usage.ID,
			&usage.Timestamp,
			&usage.ProviderName,
			&usage.Stage,
			&usage.ModelName,
			&usage.InputTokens,
			&usage.OutputTokens,
			&usage.Cost,
			&usage.ItemID,
		)
		return &usage, err
	})
}

// GetUsageSummary aggregates total spend and token counts across all calls.
func (s *StoreImpl) GetUsageSummary(ctx context.Context) (float64, int64, int64, error) {
	query := `
		SELECT COALESCE(SUM(cost), 0),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0)
		FROM oracle_usage
	`
	var (
		totalCost    float64
		inputTokens  int64
		outputTokens int64
	)
	if err := s.db.QueryRow(ctx, query).Scan(&totalCost, &inputTokens, &outputTokens); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to summarize oracle usage: %w", err)
	}
	return totalCost, inputTokens, outputTokens, nil
}
