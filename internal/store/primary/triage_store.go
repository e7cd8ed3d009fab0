package primary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"curator/internal/models"
	"curator/internal/store"
)

// CreateTriageRecordIfAbsent inserts a triage record unless one already
// exists for the item. Returns false without mutation on conflict.
func (s *StoreImpl) CreateTriageRecordIfAbsent(ctx context.Context, record *models.TriageRecord) (bool, error) {
	scores, err := json.Marshal(record.Scores)
	if err != nil {
		return false, fmt.Errorf("failed to marshal triage scores: %w", err)
	}
	borderline, err := json.Marshal(record.Borderline)
	if err != nil {
		return false, fmt.Errorf("failed to marshal borderline dimensions: %w", err)
	}
	query := `
		INSERT INTO triage_records (item_id, content_type, scores, borderline, text_length, suggested, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (item_id) DO NOTHING
	`
	tag, err := s.db.Exec(ctx, query,
		record.ItemID, record.ContentType, scores, borderline, record.TextLength, string(record.Suggested), record.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create triage record for item %s: %w", record.ItemID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetTriageRecord fetches one record, or store.ErrNotFound.
func (s *StoreImpl) GetTriageRecord(ctx context.Context, itemID string) (*models.TriageRecord, error) {
	query := `
		SELECT item_id, content_type, scores, borderline, text_length, suggested, resolved, resolved_at, created_at
		FROM triage_records
		WHERE item_id = $1
	`
	record, err := scanTriageRecord(s.db.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("triage record for item %s: %w", itemID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get triage record for item %s: %w", itemID, err)
	}
	return record, nil
}

// ListPendingTriage returns unresolved records, oldest first.
func (s *StoreImpl) ListPendingTriage(ctx context.Context, limit, offset int) ([]*models.TriageRecord, error) {
	query := `
		SELECT item_id, content_type, scores, borderline, text_length, suggested, resolved, resolved_at, created_at
		FROM triage_records
		WHERE resolved IS NULL
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending triage records: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.TriageRecord, error) {
		return scanTriageRecord(row)
	})
}

// MarkTriageResolved sets the human outcome on a still-pending record. A
// record that is missing or already resolved yields store.ErrConflict.
func (s *StoreImpl) MarkTriageResolved(ctx context.Context, itemID string, outcome models.Outcome, resolvedAt time.Time) error {
	query := `
		UPDATE triage_records
		SET resolved = $1, resolved_at = $2
		WHERE item_id = $3 AND resolved IS NULL
	`
	tag, err := s.db.Exec(ctx, query, string(outcome), resolvedAt, itemID)
	if err != nil {
		return fmt.Errorf("failed to resolve triage record for item %s: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("triage record for item %s missing or already resolved: %w", itemID, store.ErrConflict)
	}
	return nil
}

func scanTriageRecord(row rowScanner) (*models.TriageRecord, error) {
	var (
		record     models.TriageRecord
		scores     []byte
		borderline []byte
		suggested  string
		resolved   sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&record.ItemID,
		&record.ContentType,
		&scores,
		&borderline,
		&record.TextLength,
		&suggested,
		&resolved,
		&resolvedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.Suggested = models.Outcome(suggested)
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &record.Scores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal triage scores: %w", err)
		}
	}
	if len(borderline) > 0 {
		if err := json.Unmarshal(borderline, &record.Borderline); err != nil {
			return nil, fmt.Errorf("failed to unmarshal borderline dimensions: %w", err)
		}
	}
	if resolved.Valid {
		outcome := models.Outcome(resolved.String)
		record.Resolved = &outcome
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		record.ResolvedAt = &t
	}
	return &record, nil
}

var _ store.TriageStore = (*StoreImpl)(nil)
