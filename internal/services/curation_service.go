// Package services orchestrates the curation pipeline over batches of
// content items.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"curator/internal/dedup"
	"curator/internal/fingerprint"
	"curator/internal/models"
	"curator/internal/routing"
	"curator/internal/scoring"
	"curator/internal/source"
	"curator/internal/store"
	"curator/internal/themes"
	"curator/internal/triage"
)

// BatchSummary reports what happened to one batch.
type BatchSummary struct {
	Total      int                    `json:"total"`
	Duplicates int                    `json:"duplicates"` // non-canonical cluster members
	Clusters   int                    `json:"clusters"`
	Outcomes   map[models.Outcome]int `json:"outcomes"`
	Elapsed    time.Duration          `json:"elapsed"`
}

// CurationService runs the pipeline: fingerprint the whole batch, cluster
// duplicates, then route, aggregate, and classify each canonical item under a
// bounded concurrency limit. Per-item failures become error decisions; the
// batch always runs to completion.
type CurationService struct {
	sanitizer    *fingerprint.Sanitizer
	shingleSize  int
	dedupEngine  *dedup.Engine
	cascade      *routing.Cascade
	classifier   *themes.Classifier
	policies     *models.PolicyTable
	triageQueue  *triage.Queue
	decisions    store.DecisionStore
	calibrations store.CalibrationStore // nil disables calibrated scoring
	concurrency  int
}

// CurationDeps collects the pipeline's collaborators.
type CurationDeps struct {
	Sanitizer    *fingerprint.Sanitizer
	ShingleSize  int
	DedupEngine  *dedup.Engine
	Cascade      *routing.Cascade
	Classifier   *themes.Classifier
	Policies     *models.PolicyTable
	TriageQueue  *triage.Queue
	Decisions    store.DecisionStore
	Calibrations store.CalibrationStore
	Concurrency  int
}

// NewCurationService wires the pipeline. Policies, cascade, decision store,
// and triage queue are mandatory.
func NewCurationService(deps CurationDeps) (*CurationService, error) {
	if deps.Policies == nil {
		return nil, errors.New("curation service requires a policy table")
	}
	if deps.Cascade == nil {
		return nil, errors.New("curation service requires a routing cascade")
	}
	if deps.Decisions == nil {
		return nil, errors.New("curation service requires a decision store")
	}
	if deps.TriageQueue == nil {
		return nil, errors.New("curation service requires a triage queue")
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = &fingerprint.Sanitizer{}
	}
	if deps.ShingleSize <= 0 {
		deps.ShingleSize = fingerprint.DefaultShingleSize
	}
	if deps.DedupEngine == nil {
		deps.DedupEngine = dedup.NewEngine(dedup.DefaultThreshold)
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 4
	}
	return &CurationService{
		sanitizer:    deps.Sanitizer,
		shingleSize:  deps.ShingleSize,
		dedupEngine:  deps.DedupEngine,
		cascade:      deps.Cascade,
		classifier:   deps.Classifier,
		policies:     deps.Policies,
		triageQueue:  deps.TriageQueue,
		decisions:    deps.Decisions,
		calibrations: deps.Calibrations,
		concurrency:  deps.Concurrency,
	}, nil
}

// preparedItem carries an item through the pipeline with its normalized text
// already substituted in.
type preparedItem struct {
	item models.ContentItem
	fp   fingerprint.Fingerprint
}

// CurateFile runs the pipeline over a JSONL content source.
func (s *CurationService) CurateFile(ctx context.Context, path string) (*BatchSummary, error) {
	items, err := source.ReadJSONLFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.CurateBatch(ctx, items)
}

// CurateBatch decides every item in the batch. Clustering completes over the
// whole batch before any item is dispatched to routing, so no oracle call is
// spent on content that will be discarded as a duplicate.
func (s *CurationService) CurateBatch(ctx context.Context, items []models.ContentItem) (*BatchSummary, error) {
	start := time.Now()
	summary := &BatchSummary{
		Total:    len(items),
		Outcomes: make(map[models.Outcome]int),
	}
	if len(items) == 0 {
		return summary, nil
	}

	prepared := make([]preparedItem, 0, len(items))
	dedupItems := make([]dedup.Item, 0, len(items))
	for _, item := range items {
		normalized := s.sanitizer.Sanitize(item.Text)
		fp := fingerprint.Compute(normalized, s.shingleSize)
		item.Text = normalized
		prepared = append(prepared, preparedItem{item: item, fp: fp})
		dedupItems = append(dedupItems, dedup.Item{
			ID:          item.ID,
			Fingerprint: fp,
			Timestamp:   item.Timestamp,
		})
	}

	// Dedup barrier: canonical status is final before routing starts.
	clusters := s.dedupEngine.Cluster(dedupItems)
	summary.Clusters = len(clusters)
	if len(clusters) > 0 {
		if err := s.decisions.SaveClusters(ctx, clusters); err != nil {
			return nil, fmt.Errorf("save duplicate clusters: %w", err)
		}
	}

	duplicateOf := make(map[string]string)
	for _, cluster := range clusters {
		for _, member := range cluster.Members {
			duplicateOf[member.ItemID] = cluster.CanonicalID
		}
	}

	calibrationFor := s.loadCalibrations(ctx, prepared)

	var (
		mu sync.Mutex
		g  *errgroup.Group
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	record := func(outcome models.Outcome) {
		mu.Lock()
		summary.Outcomes[outcome]++
		mu.Unlock()
	}

	for _, p := range prepared {
		p := p
		if canonical, dup := duplicateOf[p.item.ID]; dup {
			summary.Duplicates++
			decision := models.Decision{
				ItemID:      p.item.ID,
				ContentType: p.item.ContentType,
				Outcome:     models.OutcomeDelete,
				Reason:      fmt.Sprintf("duplicate of %s", canonical),
				DecidedAt:   time.Now().UTC(),
			}
			if err := s.decisions.SaveDecision(ctx, &decision); err != nil {
				return nil, fmt.Errorf("save duplicate decision for %s: %w", p.item.ID, err)
			}
			record(models.OutcomeDelete)
			continue
		}
		g.Go(func() error {
			outcome := s.curateItem(gctx, p, calibrationFor[p.item.ContentType])
			record(outcome)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary.Elapsed = time.Since(start)
	log.Infof("curated batch: %d items, %d duplicates, %d clusters, outcomes=%v (%s)",
		summary.Total, summary.Duplicates, summary.Clusters, summary.Outcomes, summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

// curateItem runs one canonical item through routing, aggregation, triage, and
// theme classification. It never returns an error: a failure is recorded as an
// error decision so the rest of the batch proceeds.
func (s *CurationService) curateItem(ctx context.Context, p preparedItem, calib *models.CalibrationModel) models.Outcome {
	policy := s.policies.For(p.item.ContentType)

	bundle, routeErr := s.cascade.Route(ctx, p.item, policy)
	if routeErr != nil && bundle == nil {
		log.Warnf("routing failed for item %s: %v", p.item.ID, routeErr)
	}

	decision, borderline := scoring.Aggregate(p.item, bundle, policy, calib)
	if routeErr != nil && bundle == nil {
		decision.Reason = fmt.Sprintf("routing failed: %v", routeErr)
	}

	if decision.Outcome == models.OutcomeTriage {
		var scores models.DimensionScore
		if final := bundle.Final(); final != nil {
			scores = final.Scores
		}
		if err := s.triageQueue.Enqueue(ctx, decision, scores, borderline, utf8.RuneCountInString(p.item.Text)); err != nil {
			log.Errorf("triage enqueue failed for item %s: %v", p.item.ID, err)
			decision.Outcome = models.OutcomeError
			decision.Reason = fmt.Sprintf("triage enqueue failed: %v", err)
		}
	}

	if err := s.decisions.SaveDecision(ctx, &decision); err != nil {
		log.Errorf("failed to save decision for item %s: %v", p.item.ID, err)
		return models.OutcomeError
	}

	// Themes are only assigned to retained items.
	if s.classifier != nil && (decision.Outcome == models.OutcomeKeep || decision.Outcome == models.OutcomeRefine) {
		var hints []models.ThemeHint
		if final := bundle.Final(); final != nil {
			hints = final.ThemeHints
		}
		assignments := s.classifier.Classify(p.item.ID, hints)
		if err := s.decisions.SaveThemeAssignments(ctx, assignments); err != nil {
			log.Errorf("failed to save theme assignments for item %s: %v", p.item.ID, err)
		}
	}

	return decision.Outcome
}

// loadCalibrations fetches the latest model per content type present in the
// batch. Absence is normal: the static policy applies.
func (s *CurationService) loadCalibrations(ctx context.Context, prepared []preparedItem) map[string]*models.CalibrationModel {
	out := make(map[string]*models.CalibrationModel)
	if s.calibrations == nil {
		return out
	}
	for _, p := range prepared {
		ct := p.item.ContentType
		if _, seen := out[ct]; seen {
			continue
		}
		model, err := s.calibrations.LatestCalibrationModel(ctx, ct)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Warnf("failed to load calibration model for %q, using static policy: %v", ct, err)
			}
			out[ct] = nil
			continue
		}
		out[ct] = model
		log.Debugf("using calibration model v%d for %q", model.Version, ct)
	}
	return out
}
