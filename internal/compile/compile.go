// Package compile turns each PlannedTool in a GenerationPlan into a
// CompiledTool via one LLM call per tool (with one blind retry), validating
// that the emitted source is forbidden-pattern-free and syntactically valid
// before it is trusted to run in the sandbox.
package compile

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"

	"github.com/vivekhaldar/mcpboot/internal/fetcher"
	"github.com/vivekhaldar/mcpboot/internal/llm"
	"github.com/vivekhaldar/mcpboot/internal/llmtext"
	"github.com/vivekhaldar/mcpboot/internal/plan"
)

// maxAttempts bounds the compiler's single LLM call per tool plus one
// blind retry, mirroring the planner's retry budget.
const maxAttempts = 2

// CompiledTool is a PlannedTool enriched with a validated handler body.
type CompiledTool struct {
	plan.PlannedTool
	HandlerSource string `json:"handlerSource"`
}

// CompiledTools is the compiler's (or cache's) full output: the compiled
// tool table plus the whitelist domains it was built against, so a
// cache-only restart can reconstruct the whitelist without refetching.
type CompiledTools struct {
	Tools            map[string]CompiledTool
	order            []string
	WhitelistDomains []string
}

// NewCompiledTools creates an empty CompiledTools with no tools yet.
func NewCompiledTools(whitelistDomains []string) *CompiledTools {
	return &CompiledTools{
		Tools:            make(map[string]CompiledTool),
		WhitelistDomains: whitelistDomains,
	}
}

// Add appends a tool, preserving insertion order for ListTools.
func (ct *CompiledTools) Add(t CompiledTool) {
	if _, exists := ct.Tools[t.Name]; !exists {
		ct.order = append(ct.order, t.Name)
	}
	ct.Tools[t.Name] = t
}

// Ordered returns the compiled tools in insertion order.
func (ct *CompiledTools) Ordered() []CompiledTool {
	out := make([]CompiledTool, 0, len(ct.order))
	for _, name := range ct.order {
		out = append(out, ct.Tools[name])
	}
	return out
}

const forbiddenImport = "import"
const forbiddenRequire = "require("

const networkSystemPrompt = `You write a single MCP tool handler as a JavaScript async function body.

Two free variables are available: args (the tool's parsed input arguments) and
fetch (an async function(url, options) -> Response, gated to a whitelist of
domains — calls to other hosts will throw).

Only these globals exist: JSON, Math, String, Number, Boolean, Array, Object,
Map, Set, Date, RegExp, parseInt, parseFloat, isNaN, isFinite,
structuredClone, Promise, URL, URLSearchParams, TextEncoder, TextDecoder,
Headers, Response, console.log, fetch. There is no import, no require, no
process, no filesystem, no module loader.

Wrap your logic in try/catch and return exactly:
  { content: [{ type: "text", text: "..." }] }
on success, or
  { content: [{ type: "text", text: "<error message>" }], isError: true }
on failure.

Respond with ONLY the function body (the statements that go inside
async function(args, fetch) { ... }), optionally fenced in a javascript code
block. No import statements, no require calls, no prose.`

const pureSystemPrompt = `You write a single MCP tool handler as a JavaScript async function body.

One free variable is available: args (the tool's parsed input arguments).
There is no fetch in this handler — it performs pure computation only; do
not reference fetch.

Only these globals exist: JSON, Math, String, Number, Boolean, Array, Object,
Map, Set, Date, RegExp, parseInt, parseFloat, isNaN, isFinite,
structuredClone, Promise, URL, URLSearchParams, TextEncoder, TextDecoder,
Headers, Response, console.log. There is no import, no require, no process,
no filesystem, no module loader.

Wrap your logic in try/catch and return exactly:
  { content: [{ type: "text", text: "..." }] }
on success, or
  { content: [{ type: "text", text: "<error message>" }], isError: true }
on failure.

Respond with ONLY the function body (the statements that go inside
async function(args) { ... }), optionally fenced in a javascript code block.
No import statements, no require calls, no prose.`

// LLMError wraps a transport failure from the LLM client during
// compilation of a specific tool.
type LLMError struct {
	Tool string
	Err  error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("compile %q: %v", e.Tool, e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// CodeValidationError names the tool and the diagnostic for a handler body
// that failed the forbidden-pattern or syntax check.
type CodeValidationError struct {
	Tool       string
	Diagnostic string
}

func (e *CodeValidationError) Error() string {
	return fmt.Sprintf("compile %q: %s", e.Tool, e.Diagnostic)
}

// Compiler turns each planned tool into a CompiledTool via one LLM call.
type Compiler struct {
	client llm.Client
}

// New creates a Compiler backed by client.
func New(client llm.Client) *Compiler {
	return &Compiler{client: client}
}

// CompileAll compiles every tool in gp sequentially (deterministic, easier
// LLM budgeting and retry) and returns the fully populated CompiledTools.
func (c *Compiler) CompileAll(ctx context.Context, prompt string, gp *plan.GenerationPlan, documents []fetcher.FetchedContent, whitelistDomains []string) (*CompiledTools, error) {
	out := NewCompiledTools(whitelistDomains)
	for _, t := range gp.Tools {
		ct, err := c.compileOne(ctx, prompt, t, documents)
		if err != nil {
			return nil, err
		}
		out.Add(ct)
	}
	return out, nil
}

func (c *Compiler) compileOne(ctx context.Context, prompt string, t plan.PlannedTool, documents []fetcher.FetchedContent) (CompiledTool, error) {
	system := pureSystemPrompt
	if t.NeedsNetwork {
		system = networkSystemPrompt
	}
	user := buildUserPrompt(prompt, t, documents)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw, err := c.client.Generate(ctx, system, user)
		if err != nil {
			lastErr = &LLMError{Tool: t.Name, Err: err}
			continue
		}

		source := llmtext.ExtractCode(raw)

		if err := checkForbiddenPatterns(source); err != nil {
			lastErr = &CodeValidationError{Tool: t.Name, Diagnostic: err.Error()}
			continue
		}

		if err := checkSyntax(source); err != nil {
			lastErr = &CodeValidationError{Tool: t.Name, Diagnostic: err.Error()}
			continue
		}

		if err := checkNetworkConsistency(t, source); err != nil {
			lastErr = &CodeValidationError{Tool: t.Name, Diagnostic: err.Error()}
			continue
		}

		return CompiledTool{PlannedTool: t, HandlerSource: source}, nil
	}

	return CompiledTool{}, fmt.Errorf("compile %q: failed after %d attempts: %w", t.Name, maxAttempts, lastErr)
}

func buildUserPrompt(prompt string, t plan.PlannedTool, documents []fetcher.FetchedContent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tool: %s\nDescription: %s\nInput schema: %s\nImplementation notes: %s\nEndpoints used: %s\n\n",
		t.Name, t.Description, string(t.InputSchema), t.ImplementationNotes, strings.Join(t.EndpointsUsed, ", "))

	sb.WriteString("Original user request (for context):\n")
	sb.WriteString(prompt)
	sb.WriteString("\n\n")

	for _, d := range documents {
		fmt.Fprintf(&sb, "--- document: %s (%s) ---\n%s\n\n", d.URL, d.ContentType, d.Text)
	}

	return sb.String()
}

func checkForbiddenPatterns(source string) error {
	if strings.Contains(source, forbiddenImport) {
		return fmt.Errorf("handler source contains a forbidden %q statement", forbiddenImport)
	}
	if strings.Contains(source, forbiddenRequire) {
		return fmt.Errorf("handler source contains a forbidden require() call")
	}
	return nil
}

var fetchReferencePattern = regexp.MustCompile(`\bfetch\b`)

// checkNetworkConsistency enforces that needsNetwork agrees with whether
// the body actually references the fetch capability. A plan that claims
// needsNetwork=true but never calls fetch (or the reverse) indicates the
// plan and the generated handler have drifted apart, so it is rejected the
// same way a syntax error is.
func checkNetworkConsistency(t plan.PlannedTool, source string) error {
	referencesFetch := fetchReferencePattern.MatchString(source)
	if t.NeedsNetwork && !referencesFetch {
		return fmt.Errorf("tool declares needsNetwork=true but its handler source never references fetch")
	}
	if !t.NeedsNetwork && referencesFetch {
		return fmt.Errorf("tool declares needsNetwork=false but its handler source references fetch")
	}
	return nil
}

// checkSyntax wraps source as the async function body it will run as and
// attempts to compile it with goja — the same engine the sandbox later
// executes it with, so a handler that parses here is guaranteed loadable.
func checkSyntax(source string) error {
	wrapped := "(async function(args, fetch) {\n" + source + "\n})"
	if _, err := goja.Compile("handler.js", wrapped, true); err != nil {
		return fmt.Errorf("handler source does not parse: %w", err)
	}
	return nil
}
