// Package local implements the curator stores on SQLite for single-machine
// use. Schema bootstrap happens on open, so a fresh file is immediately
// usable.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"curator/internal/models"
	"curator/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	item_id TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	outcome TEXT NOT NULL,
	suggested TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	weighted_score REAL NOT NULL DEFAULT 0,
	provenance TEXT NOT NULL DEFAULT '[]',
	degraded INTEGER NOT NULL DEFAULT 0,
	calibration_version INTEGER NOT NULL DEFAULT 0,
	decided_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS theme_assignments (
	item_id TEXT NOT NULL,
	node_path TEXT NOT NULL,
	confidence REAL NOT NULL,
	method TEXT NOT NULL,
	is_primary INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (item_id, node_path)
);

CREATE TABLE IF NOT EXISTS duplicate_clusters (
	canonical_id TEXT PRIMARY KEY,
	members TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS triage_records (
	item_id TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	scores TEXT NOT NULL DEFAULT '{}',
	borderline TEXT NOT NULL DEFAULT '[]',
	text_length INTEGER NOT NULL DEFAULT 0,
	suggested TEXT NOT NULL,
	resolved TEXT,
	resolved_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS calibration_models (
	id TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	version INTEGER NOT NULL,
	weights TEXT NOT NULL DEFAULT '{}',
	bias REAL NOT NULL DEFAULT 0,
	gold_size INTEGER NOT NULL DEFAULT 0,
	precision_score REAL NOT NULL DEFAULT 0,
	recall_score REAL NOT NULL DEFAULT 0,
	f1_score REAL NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (content_type, version)
);

CREATE TABLE IF NOT EXISTS gold_examples (
	item_id TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	scores TEXT NOT NULL DEFAULT '{}',
	text_length INTEGER NOT NULL DEFAULT 0,
	keep INTEGER NOT NULL DEFAULT 0,
	source TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS oracle_usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TIMESTAMP NOT NULL,
	provider_name TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	model_name TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost REAL NOT NULL DEFAULT 0,
	item_id TEXT
);

CREATE TABLE IF NOT EXISTS curation_jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL UNIQUE,
	task_type TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	queue TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// StoreImpl implements the store interfaces on a SQLite database.
type StoreImpl struct {
	db *sql.DB
}

// NewLocalStore opens (or creates) a SQLite database at path. ":memory:"
// yields an ephemeral store.
func NewLocalStore(path string) (*StoreImpl, error) {
	if path == "" {
		return nil, errors.New("sqlite database path cannot be empty")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database %q: %w", path, err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under the concurrent pipeline.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to initialize sqlite schema: %w", err)
	}
	return &StoreImpl{db: db}, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *StoreImpl) Close() error {
	return s.db.Close()
}

// --- Decision Store ---

func (s *StoreImpl) SaveDecision(ctx context.Context, decision *models.Decision) error {
	provenance, err := json.Marshal(decision.Provenance)
	if err != nil {
		return fmt.Errorf("failed to marshal decision provenance: %w", err)
	}
	query := `
		INSERT INTO decisions (
			item_id, content_type, outcome, suggested, reason,
			weighted_score, provenance, degraded, calibration_version, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET
			content_type = excluded.content_type,
			outcome = excluded.outcome,
			suggested = excluded.suggested,
			reason = excluded.reason,
			weighted_score = excluded.weighted_score,
			provenance = excluded.provenance,
			degraded = excluded.degraded,
			calibration_version = excluded.calibration_version,
			decided_at = excluded.decided_at
	`
	_, err = s.db.ExecContext(ctx, query,
		decision.ItemID, decision.ContentType, string(decision.Outcome), string(decision.Suggested),
		decision.Reason, decision.WeightedScore, string(provenance), decision.Degraded,
		decision.CalibrationVersion, decision.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save decision for item %s: %w", decision.ItemID, err)
	}
	return nil
}

func (s *StoreImpl) GetDecision(ctx context.Context, itemID string) (*models.Decision, error) {
	query := `
		SELECT item_id, content_type, outcome, suggested, reason,
		       weighted_score, provenance, degraded, calibration_version, decided_at
		FROM decisions
		WHERE item_id = ?
	`
	decision, err := scanDecision(s.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("decision for item %s: %w", itemID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get decision for item %s: %w", itemID, err)
	}
	return decision, nil
}

func (s *StoreImpl) ListDecisions(ctx context.Context, limit, offset int) ([]*models.Decision, error) {
	query := `
		SELECT item_id, content_type, outcome, suggested, reason,
		       weighted_score, provenance, degraded, calibration_version, decided_at
		FROM decisions
		ORDER BY decided_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, decision)
	}
	return decisions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*models.Decision, error) {
	var (
		decision   models.Decision
		outcome    string
		suggested  string
		provenance string
	)
	err := row.Scan(
		&decision.ItemID, &decision.ContentType, &outcome, &suggested, &decision.Reason,
		&decision.WeightedScore, &provenance, &decision.Degraded,
		&decision.CalibrationVersion, &decision.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	decision.Outcome = models.Outcome(outcome)
	decision.Suggested = models.Outcome(suggested)
	if provenance != "" {
		if err := json.Unmarshal([]byte(provenance), &decision.Provenance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision provenance: %w", err)
		}
	}
	return &decision, nil
}

func (s *StoreImpl) SaveThemeAssignments(ctx context.Context, assignments []models.ThemeAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin theme assignment transaction: %w", err)
	}
	defer tx.Rollback()

	seen := make(map[string]bool)
	for _, a := range assignments {
		if !seen[a.ItemID] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM theme_assignments WHERE item_id = ?`, a.ItemID); err != nil {
				return fmt.Errorf("failed to clear theme assignments for item %s: %w", a.ItemID, err)
			}
			seen[a.ItemID] = true
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO theme_assignments (item_id, node_path, confidence, method, is_primary)
			VALUES (?, ?, ?, ?, ?)`,
			a.ItemID, a.NodePath, a.Confidence, string(a.Method), a.Primary,
		)
		if err != nil {
			return fmt.Errorf("failed to insert theme assignment for item %s: %w", a.ItemID, err)
		}
	}
	return tx.Commit()
}

func (s *StoreImpl) GetThemeAssignments(ctx context.Context, itemID string) ([]models.ThemeAssignment, error) {
	query := `
		SELECT item_id, node_path, confidence, method, is_primary
		FROM theme_assignments
		WHERE item_id = ?
		ORDER BY is_primary DESC, confidence DESC, node_path ASC
	`
	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query theme assignments for item %s: %w", itemID, err)
	}
	defer rows.Close()

	var assignments []models.ThemeAssignment
	for rows.Next() {
		var (
			a      models.ThemeAssignment
			method string
		)
		if err := rows.Scan(&a.ItemID, &a.NodePath, &a.Confidence, &method, &a.Primary); err != nil {
			return nil, err
		}
		a.Method = models.MatchMethod(method)
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *StoreImpl) SaveClusters(ctx context.Context, clusters []models.DuplicateCluster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cluster transaction: %w", err)
	}
	defer tx.Rollback()

	for _, cluster := range clusters {
		members, err := json.Marshal(cluster.Members)
		if err != nil {
			return fmt.Errorf("failed to marshal cluster members: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO duplicate_clusters (canonical_id, members)
			VALUES (?, ?)
			ON CONFLICT (canonical_id) DO UPDATE SET members = excluded.members`,
			cluster.CanonicalID, string(members),
		)
		if err != nil {
			return fmt.Errorf("failed to save cluster %s: %w", cluster.CanonicalID, err)
		}
	}
	return tx.Commit()
}

func (s *StoreImpl) ListClusters(ctx context.Context, limit, offset int) ([]models.DuplicateCluster, error) {
	query := `
		SELECT canonical_id, members
		FROM duplicate_clusters
		ORDER BY canonical_id ASC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate clusters: %w", err)
	}
	defer rows.Close()

	var clusters []models.DuplicateCluster
	for rows.Next() {
		var (
			cluster models.DuplicateCluster
			members string
		)
		if err := rows.Scan(&cluster.CanonicalID, &members); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(members), &cluster.Members); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cluster members: %w", err)
		}
		clusters = append(clusters, cluster)
	}
	return clusters, rows.Err()
}

// --- Triage Store ---

func (s *StoreImpl) CreateTriageRecordIfAbsent(ctx context.Context, record *models.TriageRecord) (bool, error) {
	scores, err := json.Marshal(record.Scores)
	if err != nil {
		return false, fmt.Errorf("failed to marshal triage scores: %w", err)
	}
	borderline, err := json.Marshal(record.Borderline)
	if err != nil {
		return false, fmt.Errorf("failed to marshal borderline dimensions: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO triage_records (item_id, content_type, scores, borderline, text_length, suggested, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id) DO NOTHING`,
		record.ItemID, record.ContentType, string(scores), string(borderline),
		record.TextLength, string(record.Suggested), record.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create triage record for item %s: %w", record.ItemID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *StoreImpl) GetTriageRecord(ctx context.Context, itemID string) (*models.TriageRecord, error) {
	query := `
		SELECT item_id, content_type, scores, borderline, text_length, suggested, resolved, resolved_at, created_at
		FROM triage_records
		WHERE item_id = ?
	`
	record, err := scanTriageRecord(s.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("triage record for item %s: %w", itemID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get triage record for item %s: %w", itemID, err)
	}
	return record, nil
}

func (s *StoreImpl) ListPendingTriage(ctx context.Context, limit, offset int) ([]*models.TriageRecord, error) {
	query := `
		SELECT item_id, content_type, scores, borderline, text_length, suggested, resolved, resolved_at, created_at
		FROM triage_records
		WHERE resolved IS NULL
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending triage records: %w", err)
	}
	defer rows.Close()

	var records []*models.TriageRecord
	for rows.Next() {
		record, err := scanTriageRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *StoreImpl) MarkTriageResolved(ctx context.Context, itemID string, outcome models.Outcome, resolvedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE triage_records
		SET resolved = ?, resolved_at = ?
		WHERE item_id = ? AND resolved IS NULL`,
		string(outcome), resolvedAt, itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve triage record for item %s: %w", itemID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("triage record for item %s missing or already resolved: %w", itemID, store.ErrConflict)
	}
	return nil
}

func scanTriageRecord(row rowScanner) (*models.TriageRecord, error) {
	var (
		record     models.TriageRecord
		scores     string
		borderline string
		suggested  string
		resolved   sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&record.ItemID, &record.ContentType, &scores, &borderline,
		&record.TextLength, &suggested, &resolved, &resolvedAt, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.Suggested = models.Outcome(suggested)
	if scores != "" {
		if err := json.Unmarshal([]byte(scores), &record.Scores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal triage scores: %w", err)
		}
	}
	if borderline != "" {
		if err := json.Unmarshal([]byte(borderline), &record.Borderline); err != nil {
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

// --- Calibration Store ---

func (s *StoreImpl) SaveCalibrationModel(ctx context.Context, model *models.CalibrationModel) error {
	weights, err := json.Marshal(model.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration weights: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calibration_models (
			id, content_type, version, weights, bias, gold_size,
			precision_score, recall_score, f1_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.ID.String(), model.ContentType, model.Version, string(weights), model.Bias,
		model.GoldSize, model.Precision, model.Recall, model.F1, model.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save calibration model v%d for %q: %w", model.Version, model.ContentType, err)
	}
	return nil
}

func (s *StoreImpl) LatestCalibrationModel(ctx context.Context, contentType string) (*models.CalibrationModel, error) {
	query := `
		SELECT id, content_type, version, weights, bias, gold_size,
		       precision_score, recall_score, f1_score, created_at
		FROM calibration_models
		WHERE content_type = ?
		ORDER BY version DESC
		LIMIT 1
	`
	model, err := scanCalibrationModel(s.db.QueryRowContext(ctx, query, contentType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("calibration model for %q: %w", contentType, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get calibration model for %q: %w", contentType, err)
	}
	return model, nil
}

func (s *StoreImpl) ListCalibrationModels(ctx context.Context, contentType string) ([]*models.CalibrationModel, error) {
	query := `
		SELECT id, content_type, version, weights, bias, gold_size,
		       precision_score, recall_score, f1_score, created_at
		FROM calibration_models
		WHERE content_type = ?
		ORDER BY version DESC
	`
	rows, err := s.db.QueryContext(ctx, query, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration models for %q: %w", contentType, err)
	}
	defer rows.Close()

	var out []*models.CalibrationModel
	for rows.Next() {
		model, err := scanCalibrationModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, model)
	}
	return out, rows.Err()
}

func scanCalibrationModel(row rowScanner) (*models.CalibrationModel, error) {
	var (
		model   models.CalibrationModel
		id      string
		weights string
	)
	err := row.Scan(
		&id, &model.ContentType, &model.Version, &weights, &model.Bias,
		&model.GoldSize, &model.Precision, &model.Recall, &model.F1, &model.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	model.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calibration model id %q: %w", id, err)
	}
	if weights != "" {
		if err := json.Unmarshal([]byte(weights), &model.Weights); err != nil {
			return nil, fmt.Errorf("failed to unmarshal calibration weights: %w", err)
		}
	}
	return &model, nil
}

// --- Gold Store ---

func (s *StoreImpl) AddGoldExample(ctx context.Context, example *models.GoldExample) error {
	scores, err := json.Marshal(example.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal gold example scores: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO gold_examples (item_id, content_type, scores, text_length, keep, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET
			scores = excluded.scores,
			text_length = excluded.text_length,
			keep = excluded.keep,
			source = excluded.source,
			created_at = excluded.created_at`,
		example.ItemID, example.ContentType, string(scores), example.TextLength,
		example.Keep, example.Source, example.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add gold example for item %s: %w", example.ItemID, err)
	}
	return nil
}

func (s *StoreImpl) ListGoldExamples(ctx context.Context, contentType string) ([]*models.GoldExample, error) {
	query := `
		SELECT item_id, content_type, scores, text_length, keep, source, created_at
		FROM gold_examples
		WHERE content_type = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to query gold examples for %q: %w", contentType, err)
	}
	defer rows.Close()

	var out []*models.GoldExample
	for rows.Next() {
		var (
			example models.GoldExample
			scores  string
		)
		err := rows.Scan(
			&example.ItemID, &example.ContentType, &scores, &example.TextLength,
			&example.Keep, &example.Source, &example.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if scores != "" {
			if err := json.Unmarshal([]byte(scores), &example.Scores); err != nil {
				return nil, fmt.Errorf("failed to unmarshal gold example scores: %w", err)
			}
		}
		out = append(out, &example)
	}
	return out, rows.Err()
}

// --- Usage Store ---

func (s *StoreImpl) RecordUsage(ctx context.Context, usage *models.OracleUsage) error {
	if usage.Timestamp.IsZero() {
		usage.Timestamp = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO oracle_usage (
			timestamp, provider_name, stage, model_name,
			input_tokens, output_tokens, cost, item_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		usage.Timestamp, usage.ProviderName, usage.Stage, usage.ModelName,
		usage.InputTokens, usage.OutputTokens, usage.Cost, usage.ItemID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert oracle usage log: %w", err)
	}
	usage.ID, err = result.LastInsertId()
	return err
}

func (s *StoreImpl) ListUsage(ctx context.Context, limit, offset int) ([]*models.OracleUsage, error) {
	query := `
		SELECT id, timestamp, provider_name, stage, model_name,
		       input_tokens, output_tokens, cost, item_id
		FROM oracle_usage
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query oracle usage logs: %w", err)
	}
	defer rows.Close()

	var out []*models.OracleUsage
	for rows.Next() {
		var usage models.OracleUsage
		err := rows.Scan(
			&usage.ID, &usage.Timestamp, &usage.ProviderName, &usage.Stage, &usage.ModelName,
			&usage.InputTokens, &usage.OutputTokens, &usage.Cost, &usage.ItemID,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, &usage)
	}
	return out, rows.Err()
}

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
	if err := s.db.QueryRowContext(ctx, query).Scan(&totalCost, &inputTokens, &outputTokens); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to summarize oracle usage: %w", err)
	}
	return totalCost, inputTokens, outputTokens, nil
}

// --- Job Store ---

func (s *StoreImpl) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	payload := "{}"
	if params.Payload != nil {
		payload = string(params.Payload)
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO curation_jobs (job_id, task_type, payload, queue, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`,
		params.JobID.String(), params.TaskType, payload, params.Queue, params.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record job enqueue event for job %s: %w", params.JobID, err)
	}
	return nil
}

func (s *StoreImpl) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE curation_jobs SET status = ?, updated_at = ? WHERE job_id = ?`,
		status, time.Now(), jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
	}
	return nil
}

func (s *StoreImpl) ListJobs(ctx context.Context, limit, offset int) ([]*models.CurationJob, error) {
	query := `
		SELECT id, job_id, task_type, payload, queue, status, created_at, updated_at
		FROM curation_jobs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query curation jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.CurationJob
	for rows.Next() {
		var (
			job     models.CurationJob
			jobID   string
			payload string
		)
		err := rows.Scan(
			&job.ID, &jobID, &job.TaskType, &payload, &job.Queue,
			&job.Status, &job.CreatedAt, &job.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		job.JobID, err = uuid.Parse(jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse job id %q: %w", jobID, err)
		}
		job.Payload = json.RawMessage(payload)
		out = append(out, &job)
	}
	return out, rows.Err()
}

var (
	_ store.DecisionStore    = (*StoreImpl)(nil)
	_ store.TriageStore      = (*StoreImpl)(nil)
	_ store.CalibrationStore = (*StoreImpl)(nil)
	_ store.GoldStore        = (*StoreImpl)(nil)
	_ store.UsageStore       = (*StoreImpl)(nil)
	_ store.JobStore         = (*StoreImpl)(nil)
)
