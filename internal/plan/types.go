// Package plan turns a prompt, fetched documents, and a whitelist into a
// validated GenerationPlan via one LLM call (with one blind retry).
package plan

import "encoding/json"

// PlannedTool is the LLM's intent for one tool.
type PlannedTool struct {
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	InputSchema         json.RawMessage `json:"inputSchema"`
	EndpointsUsed       []string        `json:"endpointsUsed"`
	ImplementationNotes string          `json:"implementationNotes"`
	NeedsNetwork        bool            `json:"needsNetwork"`
}

// GenerationPlan is the planner's full output: at least one tool.
type GenerationPlan struct {
	Tools []PlannedTool `json:"tools"`
}
