package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// defaultOpenAIModel is used when --model is unset and --provider=openai.
const defaultOpenAIModel = openai.GPT4o

// OpenAIClient adapts github.com/sashabaranov/go-openai to Client, the same
// shape hyperifyio-goresearch uses for its own LLM client interface.
type OpenAIClient struct {
	inner *openai.Client
	model string
}

// NewOpenAIClient creates a Client for the OpenAI chat completions API.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{inner: openai.NewClient(apiKey), model: model}
}

// Generate sends system+user as the first two chat messages.
func (c *OpenAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := c.inner.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
