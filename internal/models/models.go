package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state the aggregator assigns to an item.
type Outcome string

const (
	OutcomeKeep    Outcome = "keep"
	OutcomeRefine  Outcome = "refine"
	OutcomeArchive Outcome = "archive"
	OutcomeDelete  Outcome = "delete"
	OutcomeTriage  Outcome = "triage"
	// OutcomeError marks an item whose pipeline failed. It is distinct from
	// delete so the item can be retried without looking like a quality rejection.
	OutcomeError Outcome = "error"
)

// ValidOutcome reports whether s names a resolvable outcome. Triage and error
// are excluded: a human resolution must land on a terminal outcome.
func ValidOutcome(s string) bool {
	switch Outcome(s) {
	case OutcomeKeep, OutcomeRefine, OutcomeArchive, OutcomeDelete:
		return true
	}
	return false
}

// MatchMethod records how a theme assignment was produced.
type MatchMethod string

const (
	MatchExact    MatchMethod = "exact"
	MatchKeyword  MatchMethod = "keyword"
	MatchFuzzy    MatchMethod = "fuzzy"
	MatchFallback MatchMethod = "fallback"
)

// ContentItem is one unit of curated material. It is produced by the content
// source and treated as read-only by the engine.
type ContentItem struct {
	ID          string          `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Text        string          `db:"text" json:"text"`
	ContentType string          `db:"content_type" json:"content_type"` // e.g. personal_note, web_clipping
	URL         string          `db:"url" json:"url,omitempty"`
	Author      string          `db:"author" json:"author,omitempty"`
	Timestamp   time.Time       `db:"timestamp" json:"timestamp"`
	Metadata    json.RawMessage `db:"metadata" json:"metadata,omitempty"`
}

// DimensionScore maps a quality dimension (overall, relevance, credibility, ...)
// to a score in [0,1]. One instance per routing stage attempt.
type DimensionScore map[string]float64

// ThemeHint is a free-text theme label suggested by the oracle alongside scores.
type ThemeHint struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// StageResult holds the outcome of one executed cascade stage.
type StageResult struct {
	Stage      string         `json:"stage"` // stage name, e.g. "fast"
	Model      string         `json:"model"` // provider model ref
	Scores     DimensionScore `json:"scores"`
	ThemeHints []ThemeHint    `json:"theme_hints,omitempty"`
	Latency    time.Duration  `json:"latency"`
}

// ScoreBundle is the ordered sequence of stage results for one item, owned by
// the routing cascade for the duration of one decision.
type ScoreBundle struct {
	ItemID string        `json:"item_id"`
	Stages []StageResult `json:"stages"`
	// Degraded is set when the terminal stage failed twice and the bundle
	// carries the last successful stage's scores instead.
	Degraded bool `json:"degraded"`
}

// Final returns the last executed stage, whose scores the aggregator weighs.
// Earlier stages are provenance only.
func (b *ScoreBundle) Final() *StageResult {
	if len(b.Stages) == 0 {
		return nil
	}
	return &b.Stages[len(b.Stages)-1]
}

// Decision is the aggregator's verdict on one item.
type Decision struct {
	ItemID        string    `db:"item_id" json:"item_id"`
	ContentType   string    `db:"content_type" json:"content_type"`
	Outcome       Outcome   `db:"outcome" json:"outcome"`
	Suggested     Outcome   `db:"suggested" json:"suggested,omitempty"` // set when Outcome is triage
	Reason        string    `db:"reason" json:"reason"`
	WeightedScore float64   `db:"weighted_score" json:"weighted_score"`
	// Provenance keeps every executed stage's scores and latency even though
	// only the final stage was weighed.
	Provenance         []StageResult `db:"provenance" json:"provenance,omitempty"`
	Degraded           bool          `db:"degraded" json:"degraded"`
	CalibrationVersion int           `db:"calibration_version" json:"calibration_version"` // 0 = static policy
	DecidedAt          time.Time     `db:"decided_at" json:"decided_at"`
}

// ThemeAssignment maps an item onto one hierarchy node. An item may carry
// several, ranked by confidence; exactly one is primary. Never created for
// discarded items.
type ThemeAssignment struct {
	ItemID     string      `db:"item_id" json:"item_id"`
	NodePath   string      `db:"node_path" json:"node_path"` // e.g. "infrastructure/financing"
	Confidence float64     `db:"confidence" json:"confidence"`
	Method     MatchMethod `db:"method" json:"method"`
	Primary    bool        `db:"is_primary" json:"primary"`
}

// ClusterMember is one item inside a duplicate cluster with its similarity to
// the canonical item (1.0 for exact duplicates, 0 for the canonical itself).
type ClusterMember struct {
	ItemID     string  `db:"item_id" json:"item_id"`
	Similarity float64 `db:"similarity" json:"similarity"`
}

// DuplicateCluster is a transitively closed set of near- or exact-duplicate
// items with one canonical representative.
type DuplicateCluster struct {
	CanonicalID string          `db:"canonical_id" json:"canonical_id"`
	Members     []ClusterMember `db:"members" json:"members"` // non-canonical members
}

// Size counts every item in the cluster, canonical included.
func (c *DuplicateCluster) Size() int { return len(c.Members) + 1 }

// CalibrationModel holds fitted per-content-type decision parameters. Written
// by the calibrator, read (never mutated) by the aggregator.
type CalibrationModel struct {
	ID          uuid.UUID          `db:"id" json:"id"`
	ContentType string             `db:"content_type" json:"content_type"`
	Version     int                `db:"version" json:"version"`
	Weights     map[string]float64 `db:"weights" json:"weights"` // per-dimension + "_length"
	Bias        float64            `db:"bias" json:"bias"`
	GoldSize    int                `db:"gold_size" json:"gold_size"`
	Precision   float64            `db:"precision" json:"precision"`
	Recall      float64            `db:"recall" json:"recall"`
	F1          float64            `db:"f1" json:"f1"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
}

// BorderlineDimension records one triage-gated dimension that landed within
// the margin of its threshold.
type BorderlineDimension struct {
	Dimension string  `json:"dimension"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}

// TriageRecord is a deferred decision awaiting a human. Mutated exactly once,
// by Resolve.
type TriageRecord struct {
	ItemID      string                `db:"item_id" json:"item_id"`
	ContentType string                `db:"content_type" json:"content_type"`
	Scores      DimensionScore        `db:"scores" json:"scores"`
	Borderline  []BorderlineDimension `db:"borderline" json:"borderline"`
	// TextLength is the normalized rune count captured at enqueue time; the
	// gold example produced by Resolve trains the calibrator's length
	// feature from it.
	TextLength int        `db:"text_length" json:"text_length"`
	Suggested  Outcome    `db:"suggested" json:"suggested"`
	Resolved   *Outcome   `db:"resolved" json:"resolved,omitempty"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// GoldExample is one human-labeled training example for the calibrator.
type GoldExample struct {
	ItemID      string         `db:"item_id" json:"item_id"`
	ContentType string         `db:"content_type" json:"content_type"`
	Scores      DimensionScore `db:"scores" json:"scores"`
	TextLength  int            `db:"text_length" json:"text_length"`
	Keep        bool           `db:"keep" json:"keep"` // true for keep/refine labels
	Source      string         `db:"source" json:"source"` // e.g. "triage", "import"
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// OracleUsage is a record of one oracle call for cost tracking.
type OracleUsage struct {
	ID           int64     `db:"id"`
	Timestamp    time.Time `db:"timestamp"`
	ProviderName string    `db:"provider_name"`
	Stage        string    `db:"stage"`
	ModelName    string    `db:"model_name"`
	InputTokens  int       `db:"input_tokens"`
	OutputTokens int       `db:"output_tokens"`
	Cost         float64   `db:"cost"`
	ItemID       *string   `db:"item_id"` // nullable
}

// CurationJob mirrors the curation_jobs table backing asynq task bookkeeping.
type CurationJob struct {
	ID        int64           `db:"id"`
	JobID     uuid.UUID       `db:"job_id"` // asynq task ID
	TaskType  string          `db:"task_type"`
	Payload   json.RawMessage `db:"payload"`
	Queue     string          `db:"queue"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}
