package config

import (
	"errors"
	"fmt"
)

// Validate checks the non-policy parts of the configuration. Policy table
// invariants are enforced separately by PolicyTable. Validation runs once at
// startup; any error is fatal.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be \"postgres\" or \"sqlite\", got %q", c.Database.Driver)
	}

	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("dedup.similarity_threshold (%f) must be in (0,1]", c.Dedup.SimilarityThreshold)
	}
	if c.Dedup.ShingleSize <= 0 {
		return errors.New("dedup.shingle_size must be a positive integer")
	}
	if c.Dedup.SketchSize < 0 {
		return errors.New("dedup.sketch_size must not be negative")
	}

	if len(c.Routing.Stages) == 0 {
		return errors.New("routing.stages must define at least one stage")
	}
	for i, stage := range c.Routing.Stages {
		if stage.Name == "" {
			return fmt.Errorf("routing.stages[%d] has no name", i)
		}
		if stage.Provider == "" || stage.Model == "" {
			return fmt.Errorf("routing.stages[%d] (%s) needs a provider and a model", i, stage.Name)
		}
	}
	if c.Routing.RetryBaseDelayMs < 0 {
		return errors.New("routing.retry_base_delay_ms must be non-negative")
	}

	if len(c.Policies) == 0 {
		return errors.New("policies must define at least a default entry")
	}

	if c.Calibration.Enabled {
		if c.Calibration.MinGoldExamples <= 0 {
			return errors.New("calibration.min_gold_examples must be a positive integer")
		}
		if len(c.Calibration.Dimensions) == 0 && !c.Calibration.IncludeLength {
			return errors.New("calibration needs at least one feature dimension or include_length")
		}
	}

	if c.Pipeline.Concurrency <= 0 {
		return errors.New("pipeline.concurrency must be a positive integer")
	}

	// Redis and the worker are only exercised in worker/enqueue modes, but a
	// partially configured worker block is always a mistake.
	if len(c.Worker.Queues) > 0 {
		if c.Worker.Concurrency <= 0 {
			return errors.New("worker.concurrency must be a positive integer")
		}
		for name, priority := range c.Worker.Queues {
			if name == "" {
				return errors.New("worker.queues contains an empty queue name")
			}
			if priority <= 0 {
				return fmt.Errorf("worker.queues priority for queue %q must be positive", name)
			}
		}
	}

	for provider, providerModels := range c.Pricing {
		if provider == "" {
			return errors.New("pricing contains an empty provider name")
		}
		for model, price := range providerModels {
			if price.InputPerToken < 0 || price.OutputPerToken < 0 {
				return fmt.Errorf("pricing for %s/%s has a negative token cost", provider, model)
			}
		}
	}

	return nil
}
