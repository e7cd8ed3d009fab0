package primary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"curator/internal/models"
	"curator/internal/store"
)

// AddGoldExample appends one labeled example. A second label for the same
// item replaces the first; the newest human judgment wins.
func (s *StoreImpl) AddGoldExample(ctx context.Context, example *models.GoldExample) error {
	scores, err := json.Marshal(example.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal gold example scores: %w", err)
	}
	query := `
		INSERT INTO gold_examples (item_id, content_type, scores, text_length, keep, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (item_id) DO UPDATE SET
			scores = EXCLUDED.scores,
			text_length = EXCLUDED.text_length,
			keep = EXCLUDED.keep,
			source = EXCLUDED.source,
			created_at = EXCLUDED.created_at
	`
	_, err = s.db.Exec(ctx, query,
		example.ItemID, example.ContentType, scores, example.TextLength,
		example.Keep, example.Source, example.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add gold example for item %s: %w", example.ItemID, err)
	}
	return nil
}

// ListGoldExamples returns every labeled example for a content type.
func (s *StoreImpl) ListGoldExamples(ctx context.Context, contentType string) ([]*models.GoldExample, error) {
	query := `
		SELECT item_id, content_type, scores, text_length, keep, source, created_at
		FROM gold_examples
		WHERE content_type = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.Query(ctx, query, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to query gold examples for %q: %w", contentType, err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.GoldExample, error) {
		var (
			example models.GoldExample
			scores  []byte
		)
		err := row.Scan(
			&example.ItemID,
			&example.ContentType,
			&scores,
			&example.TextLength,
			&example.Keep,
			&example.Source,
			&example.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(scores) > 0 {
			if err := json.Unmarshal(scores, &example.Scores); err != nil {
				return nil, fmt.Errorf("failed to unmarshal gold example scores: %w", err)
			}
		}
		return &example, nil
	})
}

var _ store.GoldStore = (*StoreImpl)(nil)
