package app

import (
	"context"
	"fmt"

	"curator/internal/calibration"
	"curator/internal/config"
	"curator/internal/costtracker"
	"curator/internal/dedup"
	"curator/internal/fingerprint"
	"curator/internal/models"
	"curator/internal/routing"
	"curator/internal/services"
	"curator/internal/store"
	"curator/internal/store/local"
	"curator/internal/store/primary"
	"curator/internal/themes"
	"curator/internal/triage"

	log "github.com/sirupsen/logrus"
)

// App wires configuration, stores, oracles, and services together. Commands
// pull it out of the cobra context after PersistentPreRunE builds it.
type App struct {
	Config   *config.Config
	Policies *models.PolicyTable

	// Store facets. Both backends implement all of them on one StoreImpl.
	Decisions    store.DecisionStore
	Triage       store.TriageStore
	Calibrations store.CalibrationStore
	Gold         store.GoldStore
	Usage        store.UsageStore
	Jobs         store.JobStore

	JobClient   store.JobClient
	CostTracker costtracker.CostTracker

	Cascade         *routing.Cascade
	Classifier      *themes.Classifier
	TriageQueue     *triage.Queue
	Calibrator      *calibration.Calibrator
	CurationService *services.CurationService

	storePing  func(ctx context.Context) error
	storeClose func() error
	oracles    []routing.ScoringOracle
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg}

	if err := app.initPolicies(); err != nil {
		return nil, err
	}
	if err := app.initStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initOracles(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initCascade(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initClassifier(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}

	log.Debug("application initialization complete")
	return app, nil
}

func (a *App) initPolicies() error {
	table, err := a.Config.PolicyTable()
	if err != nil {
		return fmt.Errorf("init policies: %w", err)
	}
	a.Policies = table
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case "postgres":
		ps, err := primary.NewPrimaryStore(ctx, a.Config.Database.DSN)
		if err != nil {
			return fmt.Errorf("init primary store: %w", err)
		}
		a.Decisions = ps
		a.Triage = ps
		a.Calibrations = ps
		a.Gold = ps
		a.Usage = ps
		a.Jobs = ps
		a.storePing = ps.Ping
		a.storeClose = func() error { ps.Close(); return nil }
	case "sqlite":
		ls, err := local.NewLocalStore(a.Config.Database.Path)
		if err != nil {
			return fmt.Errorf("init local store: %w", err)
		}
		a.Decisions = ls
		a.Triage = ls
		a.Calibrations = ls
		a.Gold = ls
		a.Usage = ls
		a.Jobs = ls
		a.storePing = ls.Ping
		a.storeClose = ls.Close
	default:
		return fmt.Errorf("%w: unknown database driver %q", models.ErrPolicyMisconfigured, a.Config.Database.Driver)
	}
	a.CostTracker = costtracker.NewStoreTracker(a.Usage)
	return nil
}

func (a *App) initJobClient() error {
	if a.Config.Redis.Address == "" {
		log.Debug("redis address not configured, background enqueue disabled")
		return nil
	}
	jc, err := store.NewAsynqJobClient(a.Config.Redis.Address, a.Config.Redis.Password, a.Config.Redis.DB, a.Jobs)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

func (a *App) initOracles(ctx context.Context) error {
	cfg := a.Config

	prompt, err := config.LoadPromptContent(cfg.Routing.PromptTemplate, "score.txt")
	if err != nil {
		log.Warnf("Failed to load scoring prompt: %v. Oracles will use the embedded default prompt.", err)
		prompt = ""
	}

	if cfg.Oracles.OpenAIAPIKey != "" {
		oracle := routing.NewOpenAIOracle(cfg.Oracles.OpenAIAPIKey, prompt, a.CostTracker, cfg.Pricing["openai"])
		a.oracles = append(a.oracles, oracle)
		log.Debug("initialized openai scoring oracle")
	}
	if cfg.Oracles.GoogleAPIKey != "" {
		oracle, err := routing.NewGeminiOracle(ctx, cfg.Oracles.GoogleAPIKey, prompt, a.CostTracker, cfg.Pricing["gemini"])
		if err != nil {
			return fmt.Errorf("init gemini oracle: %w", err)
		}
		a.oracles = append(a.oracles, oracle)
		log.Debug("initialized gemini scoring oracle")
	}

	if len(a.oracles) == 0 {
		return fmt.Errorf("%w: no scoring oracle configured; set an openai or google API key", models.ErrPolicyMisconfigured)
	}
	return nil
}

func (a *App) initCascade() error {
	cfg := a.Config
	stages := make([]routing.Stage, 0, len(cfg.Routing.Stages))
	for _, sc := range cfg.Routing.Stages {
		stages = append(stages, routing.Stage{
			Name:     sc.Name,
			Provider: sc.Provider,
			Model:    sc.Model,
			Margin:   sc.Margin,
		})
	}

	cascade, err := routing.NewCascade(
		stages,
		a.oracles,
		routing.Retry{BaseDelayMs: cfg.Routing.RetryBaseDelayMs},
		routing.NewExcerpter(cfg.Routing.ExcerptSentences),
	)
	if err != nil {
		return fmt.Errorf("init routing cascade: %w", err)
	}
	a.Cascade = cascade
	return nil
}

func (a *App) initClassifier() error {
	path := a.Config.Themes.HierarchyPath
	if path == "" {
		log.Warn("no theme hierarchy configured, kept items will not be classified")
		return nil
	}
	hierarchy, err := themes.LoadHierarchy(path)
	if err != nil {
		return fmt.Errorf("init theme classifier: %w", err)
	}
	a.Classifier = themes.NewClassifier(hierarchy)
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config
	a.TriageQueue = triage.NewQueue(a.Triage, a.Gold)
	a.Calibrator = calibration.NewCalibrator(cfg.Calibration.MinGoldExamples)

	var calibrations store.CalibrationStore
	if cfg.Calibration.Enabled {
		calibrations = a.Calibrations
	}

	dedupEngine := dedup.NewEngine(cfg.Dedup.SimilarityThreshold)
	if cfg.Dedup.SketchSize > 0 {
		dedupEngine.SketchSize = cfg.Dedup.SketchSize
	}

	svc, err := services.NewCurationService(services.CurationDeps{
		Sanitizer:    &fingerprint.Sanitizer{Boilerplate: cfg.Sanitizer.Boilerplate},
		ShingleSize:  cfg.Dedup.ShingleSize,
		DedupEngine:  dedupEngine,
		Cascade:      a.Cascade,
		Classifier:   a.Classifier,
		Policies:     a.Policies,
		TriageQueue:  a.TriageQueue,
		Decisions:    a.Decisions,
		Calibrations: calibrations,
		Concurrency:  cfg.Pipeline.Concurrency,
	})
	if err != nil {
		return fmt.Errorf("init curation service: %w", err)
	}
	a.CurationService = svc
	return nil
}

// FeatureSpec builds the calibration feature layout from config.
func (a *App) FeatureSpec() calibration.FeatureSpec {
	return calibration.FeatureSpec{
		Dimensions:    a.Config.Calibration.Dimensions,
		IncludeLength: a.Config.Calibration.IncludeLength,
	}
}

// Ping checks the backing store connection.
func (a *App) Ping(ctx context.Context) error {
	if a.storePing == nil {
		return fmt.Errorf("store not initialized")
	}
	return a.storePing(ctx)
}

// Close releases the job client, oracle clients, and store connections.
func (a *App) Close() error {
	var firstErr error
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, o := range a.oracles {
		if closer, ok := o.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if a.storeClose != nil {
		if err := a.storeClose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) cleanupPartialInit() {
	if a.JobClient != nil {
		a.JobClient.Close()
	}
	for _, o := range a.oracles {
		if closer, ok := o.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Warnf("Error closing oracle client: %v", err)
			}
		}
	}
	if a.storeClose != nil {
		if err := a.storeClose(); err != nil {
			log.Warnf("Error closing store: %v", err)
		}
	}
}
