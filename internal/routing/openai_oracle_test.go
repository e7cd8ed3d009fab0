package routing

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// mockChatClient implements chatCompleter for oracle tests.
type mockChatClient struct {
	content    string
	err        error
	lastPrompt string
}

func (m *mockChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if len(req.Messages) > 0 {
		m.lastPrompt = req.Messages[0].Content
	}
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.content}},
		},
	}, nil
}
