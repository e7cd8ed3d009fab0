package routing

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"curator/internal/config"
	"curator/internal/costtracker"
	"curator/internal/models"
)

// GeminiOracle scores text through the Google Gemini API, typically wired as
// the deeper (more expensive) cascade stage.
type GeminiOracle struct {
	client         *genai.Client
	promptTemplate string

	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewGeminiOracle creates the provider. An empty API key falls back to the
// GEMINI_API_KEY environment variable; with neither the provider is created
// disabled and fails on first use.
func NewGeminiOracle(ctx context.Context, apiKey, prompt string, costTracker costtracker.CostTracker, pricing map[string]config.PricingInfo) (*GeminiOracle, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		log.Warn("Gemini API key not provided. Gemini oracle will be disabled.")
		return &GeminiOracle{promptTemplate: prompt, costTracker: costTracker, pricing: pricing}, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiOracle{
		client:         client,
		promptTemplate: prompt,
		costTracker:    costTracker,
		pricing:        pricing,
	}, nil
}

// Name returns the provider name used in stage wiring.
func (o *GeminiOracle) Name() string { return "gemini" }

// Score implements ScoringOracle.
func (o *GeminiOracle) Score(ctx context.Context, text, modelRef string) (ScoreResult, error) {
	if o.client == nil {
		return ScoreResult{}, fmt.Errorf("Gemini oracle is not initialized (missing API key)")
	}

	prompt := effectivePrompt(o.promptTemplate, text)

	model := o.client.GenerativeModel(modelRef)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ScoreResult{}, fmt.Errorf("%w: gemini generate content failed: %v", models.ErrOracleUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ScoreResult{}, fmt.Errorf("%w: gemini returned no candidates", models.ErrOracleUnavailable)
	}

	textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return ScoreResult{}, fmt.Errorf("gemini returned a non-text part")
	}

	result, err := parseOracleResponse(string(textPart))
	if err != nil {
		return ScoreResult{}, err
	}

	o.recordCost(ctx, modelRef, resp.UsageMetadata)
	return result, nil
}

func (o *GeminiOracle) recordCost(ctx context.Context, modelRef string, usage *genai.UsageMetadata) {
	if o.costTracker == nil || usage == nil {
		return
	}
	priceInfo, ok := o.pricing[modelRef]
	if !ok {
		log.Warnf("Pricing info not found for model '%s'. Cannot record cost for scoring.", modelRef)
		return
	}
	cost := float64(usage.PromptTokenCount)*priceInfo.InputPerToken +
		float64(usage.CandidatesTokenCount)*priceInfo.OutputPerToken
	event := costtracker.CostEvent{
		Provider:     o.Name(),
		Model:        modelRef,
		InputTokens:  int(usage.PromptTokenCount),
		OutputTokens: int(usage.CandidatesTokenCount),
		AmountUSD:    cost,
	}
	if err := o.costTracker.RecordCost(ctx, event); err != nil {
		log.Errorf("Failed to record oracle usage for scoring: %v", err)
	}
}

// Close cleans up the Gemini client resources.
func (o *GeminiOracle) Close() error {
	if o.client != nil {
		return o.client.Close()
	}
	return nil
}

var _ ScoringOracle = (*GeminiOracle)(nil)
