package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vivekhaldar/mcpboot/internal/fetcher"
	"github.com/vivekhaldar/mcpboot/internal/llm"
	"github.com/vivekhaldar/mcpboot/internal/llmtext"
	"github.com/vivekhaldar/mcpboot/internal/whitelist"
)

// maxAttempts bounds the planner's single LLM call plus one blind retry.
const maxAttempts = 2

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var urlInTextPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

const systemPrompt = `You design MCP (Model Context Protocol) tools from a user's request.

Respond with JSON only, matching this shape:
{"tools":[{"name":"...","description":"...","inputSchema":{...},"endpointsUsed":["..."],"implementationNotes":"...","needsNetwork":true|false}]}

Rules:
- tools is a nonempty array.
- name is a unique identifier: lowercase letters, digits, underscore, starting with a lowercase letter.
- description and implementationNotes are nonempty prose.
- inputSchema is a JSON Schema object (type "object") describing the tool's arguments.
- needsNetwork is true only if the tool's handler must call fetch at runtime.
- endpointsUsed lists the URLs or endpoint templates the tool's handler will call, empty if needsNetwork is false.
- Emit JSON only. No prose before or after.`

// LLMError wraps a transport failure from the LLM client during planning,
// or a reply that does not parse as JSON. It always names the phase ("planning") so cmd/mcpboot can format a
// one-line message without string-sniffing the underlying error.
type LLMError struct {
	Phase string
	Err   error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("planner: %s: %v", e.Phase, e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// PlanValidationError names the offending tool and field of a plan that
// failed structural or whitelist validation.
type PlanValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *PlanValidationError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("planner: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("planner: tool %q: %s: %s", e.Tool, e.Field, e.Reason)
}

// Planner turns a prompt, its fetched documents, and a whitelist into a
// validated GenerationPlan.
type Planner struct {
	client llm.Client
}

// New creates a Planner backed by client.
func New(client llm.Client) *Planner {
	return &Planner{client: client}
}

// Plan runs the planner's LLM round trip (with one blind retry on failure)
// and returns a structurally and whitelist validated plan.
func (p *Planner) Plan(ctx context.Context, prompt string, documents []fetcher.FetchedContent, wl *whitelist.Whitelist) (*GenerationPlan, error) {
	user := buildUserPrompt(prompt, documents, wl)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw, err := p.client.Generate(ctx, systemPrompt, user)
		if err != nil {
			lastErr = &LLMError{Phase: "planning", Err: err}
			continue
		}

		blob := llmtext.ExtractJSON(raw)

		var gp GenerationPlan
		if err := json.Unmarshal([]byte(blob), &gp); err != nil {
			lastErr = &LLMError{Phase: "planning", Err: fmt.Errorf("parse plan: %w", err)}
			continue
		}

		if err := validateStructure(&gp); err != nil {
			lastErr = err
			continue
		}

		if err := validateWhitelist(&gp, wl); err != nil {
			lastErr = err
			continue
		}

		return &gp, nil
	}

	return nil, fmt.Errorf("planner: failed after %d attempts: %w", maxAttempts, lastErr)
}

func buildUserPrompt(prompt string, documents []fetcher.FetchedContent, wl *whitelist.Whitelist) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n")

	if len(documents) == 0 {
		sb.WriteString("No documents were fetched for this prompt.\n\n")
	}
	for _, d := range documents {
		fmt.Fprintf(&sb, "--- document: %s (%s) ---\n%s\n\n", d.URL, d.ContentType, d.Text)
	}

	domains := wl.Domains()
	if len(domains) == 0 {
		sb.WriteString("Allowed domains: none — emit only pure-computation tools.\n")
	} else {
		fmt.Fprintf(&sb, "Allowed domains: %s\n", strings.Join(domains, ", "))
	}

	return sb.String()
}

func validateStructure(gp *GenerationPlan) error {
	if len(gp.Tools) == 0 {
		return &PlanValidationError{Field: "tools", Reason: "plan has no tools"}
	}

	seen := make(map[string]bool, len(gp.Tools))
	for _, t := range gp.Tools {
		if t.Name == "" || !identifierPattern.MatchString(t.Name) {
			return &PlanValidationError{Tool: t.Name, Field: "name", Reason: "does not match the identifier pattern"}
		}
		if seen[t.Name] {
			return &PlanValidationError{Tool: t.Name, Field: "name", Reason: "duplicate tool name"}
		}
		seen[t.Name] = true

		if t.Description == "" {
			return &PlanValidationError{Tool: t.Name, Field: "description", Reason: "empty"}
		}
		if t.ImplementationNotes == "" {
			return &PlanValidationError{Tool: t.Name, Field: "implementationNotes", Reason: "empty"}
		}
		if !isJSONObject(t.InputSchema) {
			return &PlanValidationError{Tool: t.Name, Field: "inputSchema", Reason: "not a JSON object"}
		}
		if t.EndpointsUsed == nil {
			return &PlanValidationError{Tool: t.Name, Field: "endpointsUsed", Reason: "must be an array"}
		}
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	_, ok := v.(map[string]interface{})
	return ok
}

func validateWhitelist(gp *GenerationPlan, wl *whitelist.Whitelist) error {
	for _, t := range gp.Tools {
		if !t.NeedsNetwork {
			continue
		}
		for _, ep := range t.EndpointsUsed {
			for _, u := range urlInTextPattern.FindAllString(ep, -1) {
				if !wl.Allows(u) {
					return &PlanValidationError{
						Tool:   t.Name,
						Field:  "endpointsUsed",
						Reason: fmt.Sprintf("endpoint %q uses a domain not in the whitelist", u),
					}
				}
			}
		}
	}
	return nil
}
