// Package executor adapts a compiled tool table and a sandbox to the MCP
// surface: resolve a tool by name, run it, and shape the result (or error)
// into a ToolResult that never propagates a Go panic or error to the caller.
package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vivekhaldar/mcpboot/internal/compile"
	"github.com/vivekhaldar/mcpboot/internal/sandbox"
)

// Sandbox is the subset of sandbox.Sandbox the executor depends on.
type Sandbox interface {
	RunHandler(ctx context.Context, source string, args json.RawMessage) (sandbox.ToolResult, error)
}

// ToolSummary is the listTools() surface for one tool.
type ToolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Executor owns a CompiledTools table and the sandbox that runs them. There
// is no fallback to any upstream service — the compiled handler is the
// implementation.
type Executor struct {
	tools   *compile.CompiledTools
	sandbox Sandbox
}

// New creates an Executor over tools, running handlers in sandbox.
func New(tools *compile.CompiledTools, sandbox Sandbox) *Executor {
	return &Executor{tools: tools, sandbox: sandbox}
}

// ListTools returns every entry of the tool table in insertion order. The
// hidden _mcp_metadata tool is not part of the table; internal/mcpserver
// answers it separately.
func (e *Executor) ListTools() []ToolSummary {
	ordered := e.tools.Ordered()
	out := make([]ToolSummary, 0, len(ordered))
	for _, t := range ordered {
		out = append(out, ToolSummary{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

// Execute resolves name against the tool table and runs its handler. An
// unknown name or a handler error both return an isError ToolResult rather
// than a Go error — the executor never throws.
func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage) sandbox.ToolResult {
	tool, ok := e.tools.Tools[name]
	if !ok {
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}

	result, err := e.sandbox.RunHandler(ctx, tool.HandlerSource, args)
	if err != nil {
		return errorResult(fmt.Sprintf("Handler error: %s", err.Error()))
	}
	return result
}

func errorResult(message string) sandbox.ToolResult {
	item, _ := json.Marshal(map[string]string{"type": "text", "text": message})
	return sandbox.ToolResult{
		Content: []json.RawMessage{item},
		IsError: true,
	}
}
