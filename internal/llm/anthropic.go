package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultAnthropicModel is used when --model is unset and --provider=anthropic.
const defaultAnthropicModel = "claude-sonnet-4-5"

const defaultMaxTokens = 4096

// AnthropicClient adapts github.com/anthropics/anthropic-sdk-go to Client.
type AnthropicClient struct {
	inner *anthropic.Client
	model string
}

// NewAnthropicClient creates a Client for the Anthropic Messages API. If
// model is empty, a current Claude model is used.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = defaultAnthropicModel
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{inner: &c, model: model}
}

// Generate sends system+user as a single-turn Messages request and
// concatenates the returned text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, system, user string) (string, error) {
	msg, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: generate: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}
