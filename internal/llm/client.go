// Package llm defines the transport contract mcpboot uses to talk to a
// large language model, plus thin adapters over the Anthropic and OpenAI
// SDKs. The core planner and compiler care only about this interface; they
// never see a provider-specific type.
package llm

import "context"

// Client generates text from a system and a user prompt. Implementations
// throw (return a non-nil error) on transport failure; they do not retry —
// retry policy belongs to the caller (see internal/plan and
// internal/compile, which each retry at most once on recoverable errors).
type Client interface {
	Generate(ctx context.Context, system, user string) (string, error)
}
