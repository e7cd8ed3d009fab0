package config

import (
	"fmt"

	"github.com/spf13/viper"

	"curator/internal/models"
)

// PricingInfo holds cost details per token for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

// StageConfig is one routing cascade tier as declared in config.yaml. Stages
// run in declaration order; margins must be non-increasing.
type StageConfig struct {
	Name     string  `mapstructure:"name"`
	Provider string  `mapstructure:"provider"`
	Model    string  `mapstructure:"model"`
	Margin   float64 `mapstructure:"margin"`
}

type Config struct {
	Database struct {
		// Driver selects the store backend: "postgres" or "sqlite".
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`  // postgres connection string
		Path   string `mapstructure:"path"` // sqlite file path
	} `mapstructure:"database"`

	Source struct {
		// Path is the default JSONL content source for curate runs.
		Path string `mapstructure:"path"`
	} `mapstructure:"source"`

	Sanitizer struct {
		Boilerplate []string `mapstructure:"boilerplate"`
	} `mapstructure:"sanitizer"`

	Dedup struct {
		SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
		ShingleSize         int     `mapstructure:"shingle_size"`
		SketchSize          int     `mapstructure:"sketch_size"`
	} `mapstructure:"dedup"`

	Routing struct {
		Stages           []StageConfig `mapstructure:"stages"`
		RetryBaseDelayMs int64         `mapstructure:"retry_base_delay_ms"`
		ExcerptSentences int           `mapstructure:"excerpt_sentences"`
		PromptTemplate   string        `mapstructure:"prompt_template"` // path or filename under the prompt dir
	} `mapstructure:"routing"`

	Oracles struct {
		OpenAIAPIKey string `mapstructure:"openai_api_key"`
		GoogleAPIKey string `mapstructure:"google_api_key"`
	} `mapstructure:"oracles"`

	// Policies keyed by content type; a "default" entry is required.
	Policies map[string]models.Policy `mapstructure:"policies"`

	Themes struct {
		HierarchyPath string `mapstructure:"hierarchy_path"`
	} `mapstructure:"themes"`

	Calibration struct {
		Enabled         bool     `mapstructure:"enabled"`
		MinGoldExamples int      `mapstructure:"min_gold_examples"`
		Dimensions      []string `mapstructure:"dimensions"`
		IncludeLength   bool     `mapstructure:"include_length"`
	} `mapstructure:"calibration"`

	Pipeline struct {
		Concurrency int `mapstructure:"concurrency"`
	} `mapstructure:"pipeline"`

	Serve struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"serve"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token}
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`
}

// LoadConfig reads config.yaml from the working directory, layered with
// environment variables. A missing file is not an error; env vars and
// defaults can carry a full configuration.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	// API keys usually arrive through the conventional env vars rather than
	// the config file.
	viper.BindEnv("oracles.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("oracles.google_api_key", "GOOGLE_API_KEY")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "curator.db")
	viper.SetDefault("dedup.similarity_threshold", 0.90)
	viper.SetDefault("dedup.shingle_size", 5)
	viper.SetDefault("dedup.sketch_size", 8)
	viper.SetDefault("routing.retry_base_delay_ms", 250)
	viper.SetDefault("routing.excerpt_sentences", 40)
	viper.SetDefault("calibration.min_gold_examples", 20)
	viper.SetDefault("calibration.include_length", true)
	viper.SetDefault("pipeline.concurrency", 4)
	viper.SetDefault("serve.address", ":8080")
	viper.SetDefault("worker.concurrency", 5)
}

// PolicyTable builds the validated per-content-type policy table. Any
// violation wraps models.ErrPolicyMisconfigured and is fatal at startup.
func (c *Config) PolicyTable() (*models.PolicyTable, error) {
	return models.NewPolicyTable(c.Policies)
}
