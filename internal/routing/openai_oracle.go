package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"curator/internal/config"
	"curator/internal/costtracker"
	"curator/internal/models"
)

// chatCompleter is the minimal OpenAI client surface the oracle needs,
// narrow so tests can substitute a mock.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIOracle scores text through OpenAI chat completions. The prompt
// template instructs the model to answer with a single JSON object of
// dimension scores and theme hints.
type OpenAIOracle struct {
	client         chatCompleter
	promptTemplate string

	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewOpenAIOracle creates the provider. An empty API key falls back to the
// OPENAI_API_KEY environment variable; with neither, the provider is created
// disabled and fails on first use.
func NewOpenAIOracle(apiKey, prompt string, costTracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *OpenAIOracle {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	var client chatCompleter
	if apiKey == "" {
		log.Warn("OpenAI API key not provided. OpenAI oracle will be disabled.")
	} else {
		client = openai.NewClient(apiKey)
	}
	return &OpenAIOracle{
		client:         client,
		promptTemplate: prompt,
		costTracker:    costTracker,
		pricing:        pricing,
	}
}

// newOpenAIOracleWithClient is used by tests to inject a mock client.
func newOpenAIOracleWithClient(client chatCompleter, prompt string) *OpenAIOracle {
	return &OpenAIOracle{client: client, promptTemplate: prompt, costTracker: costtracker.NewNoop()}
}

// Name returns the provider name used in stage wiring.
func (o *OpenAIOracle) Name() string { return "openai" }

// Score implements ScoringOracle.
func (o *OpenAIOracle) Score(ctx context.Context, text, modelRef string) (ScoreResult, error) {
	if o.client == nil {
		return ScoreResult{}, fmt.Errorf("OpenAI oracle is not initialized (missing API key)")
	}

	prompt := effectivePrompt(o.promptTemplate, text)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelRef,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return ScoreResult{}, fmt.Errorf("%w: openai chat completion failed: %v", models.ErrOracleUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return ScoreResult{}, fmt.Errorf("%w: no choices returned from OpenAI", models.ErrOracleUnavailable)
	}

	result, err := parseOracleResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return ScoreResult{}, err
	}

	o.recordCost(ctx, modelRef, resp.Usage)
	return result, nil
}

func (o *OpenAIOracle) recordCost(ctx context.Context, modelRef string, usage openai.Usage) {
	if o.costTracker == nil || usage.TotalTokens == 0 {
		return
	}
	priceInfo, ok := o.pricing[modelRef]
	if !ok {
		log.Warnf("Pricing info not found for model '%s'. Cannot record cost for scoring.", modelRef)
		return
	}
	cost := float64(usage.PromptTokens)*priceInfo.InputPerToken +
		float64(usage.CompletionTokens)*priceInfo.OutputPerToken
	event := costtracker.CostEvent{
		Provider:     o.Name(),
		Model:        modelRef,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		AmountUSD:    cost,
	}
	if err := o.costTracker.RecordCost(ctx, event); err != nil {
		log.Errorf("Failed to record oracle usage for scoring: %v", err)
	} else {
		log.Debugf("Recorded oracle usage: Provider=%s, Model=%s, InputTokens=%d, OutputTokens=%d, Cost=%.8f",
			event.Provider, event.Model, event.InputTokens, event.OutputTokens, event.AmountUSD)
	}
}

// parseOracleResponse decodes the JSON scoring payload shared by every
// provider: {"scores": {...}, "themes": [{"label": ..., "confidence": ...}]}.
// Scores outside [0,1] are clamped rather than rejected.
func parseOracleResponse(content string) (ScoreResult, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in markdown fences despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed struct {
		Scores map[string]float64 `json:"scores"`
		Themes []struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
		} `json:"themes"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ScoreResult{}, fmt.Errorf("failed to parse oracle response as JSON: %w\nResponse content: %s", err, content)
	}
	if len(parsed.Scores) == 0 {
		return ScoreResult{}, fmt.Errorf("oracle response contained no scores: %s", content)
	}

	result := ScoreResult{Scores: make(models.DimensionScore, len(parsed.Scores))}
	for dim, score := range parsed.Scores {
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		result.Scores[dim] = score
	}
	for _, theme := range parsed.Themes {
		conf := theme.Confidence
		if conf <= 0 {
			conf = 1.0 // absent confidence means the model did not hedge
		}
		if conf > 1 {
			conf = 1
		}
		result.ThemeHints = append(result.ThemeHints, models.ThemeHint{Label: theme.Label, Confidence: conf})
	}
	return result, nil
}

var _ ScoringOracle = (*OpenAIOracle)(nil)
