package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
)

func validConfig() *Config {
	c := &Config{}
	c.Database.Driver = "sqlite"
	c.Database.Path = "curator.db"
	c.Dedup.SimilarityThreshold = 0.90
	c.Dedup.ShingleSize = 5
	c.Routing.Stages = []StageConfig{
		{Name: "fast", Provider: "openai", Model: "gpt-4o-mini", Margin: 0.10},
		{Name: "deep", Provider: "openai", Model: "gpt-4o", Margin: 0.05},
	}
	c.Policies = map[string]models.Policy{
		"default": {
			Weights:  map[string]float64{"overall": 1},
			Outcomes: map[string]float64{"keep": 0.8},
		},
	}
	c.Pipeline.Concurrency = 4
	return c
}

func TestValidateAcceptsWorkingConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }},
		{"no stages", func(c *Config) { c.Routing.Stages = nil }},
		{"stage missing model", func(c *Config) { c.Routing.Stages[0].Model = "" }},
		{"threshold above one", func(c *Config) { c.Dedup.SimilarityThreshold = 1.5 }},
		{"negative sketch size", func(c *Config) { c.Dedup.SketchSize = -1 }},
		{"no policies", func(c *Config) { c.Policies = nil }},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }},
		{"calibration without features", func(c *Config) {
			c.Calibration.Enabled = true
			c.Calibration.MinGoldExamples = 20
			c.Calibration.Dimensions = nil
			c.Calibration.IncludeLength = false
		}},
		{"negative pricing", func(c *Config) {
			c.Pricing = map[string]map[string]PricingInfo{"openai": {"gpt-4o": {InputPerToken: -1}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestPolicyTableRequiresDefault(t *testing.T) {
	c := validConfig()
	table, err := c.PolicyTable()
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, table.ContentTypes())

	c.Policies = map[string]models.Policy{"web_clipping": c.Policies["default"]}
	_, err = c.PolicyTable()
	assert.ErrorIs(t, err, models.ErrPolicyMisconfigured)
}
