package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"curator/internal/models"
	"curator/internal/store"
)

// SaveDecision upserts the decision for an item. Re-running a batch replaces
// the previous verdict rather than duplicating it.
func (s *StoreImpl) SaveDecision(ctx context.Context, decision *models.Decision) error {
	provenance, err := json.Marshal(decision.Provenance)
	if err != nil {
		return fmt.Errorf("failed to marshal decision provenance: %w", err)
	}
	query := `
		INSERT INTO decisions (
			item_id, content_type, outcome, suggested, reason,
			weighted_score, provenance, degraded, calibration_version, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (item_id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			outcome = EXCLUDED.outcome,
			suggested = EXCLUDED.suggested,
			reason = EXCLUDED.reason,
			weighted_score = EXCLUDED.weighted_score,
			provenance = EXCLUDED.provenance,
			degraded = EXCLUDED.degraded,
			calibration_version = EXCLUDED.calibration_version,
			decided_at = EXCLUDED.decided_at
	`
	_, err = s.db.Exec(ctx, query,
		decision.ItemID,
		decision.ContentType,
		string(decision.Outcome),
		string(decision.Suggested),
		decision.Reason,
		decision.WeightedScore,
		provenance,
		decision.Degraded,
		decision.CalibrationVersion,
		decision.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save decision for item %s: %w", decision.ItemID, err)
	}
	return nil
}

// GetDecision fetches the decision for an item, or store.ErrNotFound.
func (s *StoreImpl) GetDecision(ctx context.Context, itemID string) (*models.Decision, error) {
	query := `
		SELECT item_id, content_type, outcome, suggested, reason,
		       weighted_score, provenance, degraded, calibration_version, decided_at
		FROM decisions
		WHERE item_id = $1
	`
	row := s.db.QueryRow(ctx, query, itemID)
	decision, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("decision for item %s: %w", itemID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get decision for item %s: %w", itemID, err)
	}
	return decision, nil
}

// ListDecisions returns decisions newest first.
func (s *StoreImpl) ListDecisions(ctx context.Context, limit, offset int) ([]*models.Decision, error) {
	query := `
		SELECT item_id, content_type, outcome, suggested, reason,
		       weighted_score, provenance, degraded, calibration_version, decided_at
		FROM decisions
		ORDER BY decided_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Decision, error) {
		return scanDecision(row)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*models.Decision, error) {
	var (
		decision   models.Decision
		outcome    string
		suggested  string
		provenance []byte
	)
	err := row.Scan(
		&decision.ItemID,
		&decision.ContentType,
		&outcome,
		&suggested,
		&decision.Reason,
		&decision.WeightedScore,
		&provenance,
		&decision.Degraded,
		&decision.CalibrationVersion,
		&decision.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	decision.Outcome = models.Outcome(outcome)
	decision.Suggested = models.Outcome(suggested)
	if len(provenance) > 0 {
		if err := json.Unmarshal(provenance, &decision.Provenance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision provenance: %w", err)
		}
	}
	return &decision, nil
}

// SaveThemeAssignments replaces the theme assignments for each item present
// in the batch.
func (s *StoreImpl) SaveThemeAssignments(ctx context.Context, assignments []models.ThemeAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin theme assignment transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	seen := make(map[string]bool)
	for _, a := range assignments {
		if !seen[a.ItemID] {
			if _, err := tx.Exec(ctx, `DELETE FROM theme_assignments WHERE item_id = $1`, a.ItemID); err != nil {
				return fmt.Errorf("failed to clear theme assignments for item %s: %w", a.ItemID, err)
			}
			seen[a.ItemID] = true
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO theme_assignments (item_id, node_path, confidence, method, is_primary)
			VALUES ($1, $2, $3, $4, $5)`,
			a.ItemID, a.NodePath, a.Confidence, string(a.Method), a.Primary,
		)
		if err != nil {
			return fmt.Errorf("failed to insert theme assignment for item %s: %w", a.ItemID, err)
		}
	}
	return tx.Commit(ctx)
}

// GetThemeAssignments returns an item's themes, primary first.
func (s *StoreImpl) GetThemeAssignments(ctx context.Context, itemID string) ([]models.ThemeAssignment, error) {
	query := `
		SELECT item_id, node_path, confidence, method, is_primary
		FROM theme_assignments
		WHERE item_id = $1
		ORDER BY is_primary DESC, confidence DESC, node_path ASC
	`
	rows, err := s.db.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query theme assignments for item %s: %w", itemID, err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ThemeAssignment, error) {
		var (
			a      models.ThemeAssignment
			method string
		)
		err := row.Scan(&a.ItemID, &a.NodePath, &a.Confidence, &method, &a.Primary)
		a.Method = models.MatchMethod(method)
		return a, err
	})
}

// SaveClusters replaces the stored duplicate clusters with the batch's view.
func (s *StoreImpl) SaveClusters(ctx context.Context, clusters []models.DuplicateCluster) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin cluster transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, cluster := range clusters {
		members, err := json.Marshal(cluster.Members)
		if err != nil {
			return fmt.Errorf("failed to marshal cluster members: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO duplicate_clusters (canonical_id, members)
			VALUES ($1, $2)
			ON CONFLICT (canonical_id) DO UPDATE SET members = EXCLUDED.members`,
			cluster.CanonicalID, members,
		)
		if err != nil {
			return fmt.Errorf("failed to save cluster %s: %w", cluster.CanonicalID, err)
		}
	}
	return tx.Commit(ctx)
}

// ListClusters returns stored clusters ordered by canonical id.
func (s *StoreImpl) ListClusters(ctx context.Context, limit, offset int) ([]models.DuplicateCluster, error) {
	query := `
		SELECT canonical_id, members
		FROM duplicate_clusters
		ORDER BY canonical_id ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate clusters: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DuplicateCluster, error) {
		var (
			cluster models.DuplicateCluster
			members []byte
		)
		if err := row.Scan(&cluster.CanonicalID, &members); err != nil {
			return cluster, err
		}
		if err := json.Unmarshal(members, &cluster.Members); err != nil {
			return cluster, fmt.Errorf("failed to unmarshal cluster members: %w", err)
		}
		return cluster, nil
	})
}

var _ store.DecisionStore = (*StoreImpl)(nil)
