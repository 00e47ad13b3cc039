// Package sandbox executes untrusted LLM-generated handler source text
// with a gated network capability and a curated set of globals. It is the
// only place in mcpboot that runs code it didn't write: restrictGlobals
// (globals.go) prunes every binding goja supplies beyond the named
// capability surface before a handler body ever runs.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/vivekhaldar/mcpboot/internal/whitelist"
)

// Timeout bounds a single handler invocation's wall-clock execution,
// covering the async path (awaited fetch calls), not only synchronous spin.
const Timeout = 30 * time.Second

// ToolResult is the MCP-shaped value every handler must return. The
// sandbox validates only that it is an object with an array `content`;
// individual content items pass through unexamined.
type ToolResult struct {
	Content []json.RawMessage `json:"content"`
	IsError bool              `json:"isError,omitempty"`
}

// Sandbox runs handler source text. fetch is nil for pure-computation
// handlers, omitting the global entirely — inside such a handler fetch is
// undefined, so calling it throws a TypeError rather than reaching the
// network.
type Sandbox struct {
	fetch whitelist.Fetch
}

// New creates a Sandbox. A nil fetch means no network capability is exposed.
func New(fetch whitelist.Fetch) *Sandbox {
	return &Sandbox{fetch: fetch}
}

// RunHandler executes source (an async function body referencing args and,
// for network tools, fetch) against args and returns the validated
// ToolResult. Arguments are deep-cloned before entry via a JSON round trip
// through an embedded string literal, so in-sandbox mutation can never leak
// back to the caller. A synchronous compile error, a runtime exception, or
// a timeout all surface as a returned error; the caller (the executor) is
// responsible for shaping that into a ToolResult with isError: true.
func (s *Sandbox) RunHandler(ctx context.Context, source string, args json.RawMessage) (ToolResult, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	argsJSON, err := json.Marshal(string(args))
	if err != nil {
		return ToolResult{}, fmt.Errorf("sandbox: marshal args: %w", err)
	}

	rt := goja.New()
	rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if _, err := rt.RunString(prelude); err != nil {
		return ToolResult{}, fmt.Errorf("sandbox: load prelude: %w", err)
	}

	rt.Set("console", map[string]interface{}{
		"log": func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				if str, ok := arg.Export().(string); ok {
					parts = append(parts, str)
				} else if b, err := json.Marshal(arg.Export()); err == nil {
					parts = append(parts, string(b))
				}
			}
			slog.Debug("handler console.log", "message", strings.Join(parts, " "))
			return goja.Undefined()
		},
	})

	callCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	if s.fetch != nil {
		registerFetch(callCtx, rt, s.fetch)
	}

	restrictGlobals(rt, s.fetch != nil)

	wrapped := fmt.Sprintf(`
(function() {
  var args = JSON.parse(%s);
  var __fetch = (typeof fetch !== 'undefined') ? fetch : undefined;
  return (async function(args, fetch) {
%s
  })(args, __fetch);
})()
`, string(argsJSON), source)

	program, err := goja.Compile("handler.js", wrapped, true)
	if err != nil {
		return ToolResult{}, fmt.Errorf("sandbox: compile handler: %w", err)
	}

	timer := time.AfterFunc(Timeout, func() {
		rt.Interrupt("handler execution timed out")
	})
	defer timer.Stop()

	result, err := rt.RunProgram(program)
	if err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			return ToolResult{}, fmt.Errorf("sandbox: timed out after %s", Timeout)
		}
		return ToolResult{}, fmt.Errorf("sandbox: handler error: %w", err)
	}

	value, err := resolvePromise(result)
	if err != nil {
		return ToolResult{}, fmt.Errorf("sandbox: handler error: %w", err)
	}

	return validateResult(rt, value)
}

// resolvePromise unwraps the top-level Promise an async handler function
// always returns. Because fetch (the only suspension point) runs its HTTP
// round trip synchronously before resolving, the promise is always settled
// by the time RunProgram returns — there is no event loop to drive.
func resolvePromise(v goja.Value) (goja.Value, error) {
	promise, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result(), nil
	case goja.PromiseStateRejected:
		reason := promise.Result()
		return nil, fmt.Errorf("%s", describeRejection(reason))
	default:
		return nil, fmt.Errorf("handler returned a promise that never settled")
	}
}

func describeRejection(reason goja.Value) string {
	if reason == nil {
		return "handler rejected with no reason"
	}
	exported := reason.Export()
	if m, ok := exported.(map[string]interface{}); ok {
		if msg, ok := m["message"]; ok {
			return fmt.Sprintf("%v", msg)
		}
	}
	return fmt.Sprintf("%v", exported)
}

// validateResult checks that value is an object with an array `content`,
// per the sandbox's shallow result validation contract.
func validateResult(rt *goja.Runtime, value goja.Value) (ToolResult, error) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return ToolResult{}, errors.New("Handler must return {content: [...]}")
	}

	raw, err := json.Marshal(value.Export())
	if err != nil {
		return ToolResult{}, fmt.Errorf("Handler must return {content: [...]}: %w", err)
	}

	var generic struct {
		Content json.RawMessage `json:"content"`
		IsError bool            `json:"isError"`
	}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ToolResult{}, errors.New("Handler must return {content: [...]}")
	}
	if generic.Content == nil {
		return ToolResult{}, errors.New("Handler must return {content: [...]}")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(generic.Content, &items); err != nil {
		return ToolResult{}, errors.New("Handler must return {content: [...]}")
	}

	return ToolResult{Content: items, IsError: generic.IsError}, nil
}
