package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vivekhaldar/mcpboot/internal/executor"
)

// Server holds the JSON-RPC dispatch logic for the MCP methods mcpboot
// speaks. It has no knowledge of HTTP; Handler (in http.go) wraps it with
// the streamable-HTTP transport.
type Server struct {
	handler *handler
}

// NewServer creates a Server exposing exec, with meta answering the hidden
// _mcp_metadata tool's introspection questions.
func NewServer(exec *executor.Executor, meta metadataSource) *Server {
	return &Server{handler: newHandler(exec, meta)}
}

// ToolCount reports the number of non-hidden tools, for the health handler.
func (s *Server) ToolCount() int {
	return len(s.handler.exec.ListTools())
}

// Dispatch decodes one JSON-RPC request and returns its response. A
// notification (no id) returns nil — the caller must not write a response
// for it.
func (s *Server) Dispatch(ctx context.Context, line []byte) *Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return &Response{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: CodeParseError, Message: "invalid JSON: " + err.Error()},
		}
	}

	if req.ID == nil {
		s.handleNotification(req)
		return nil
	}

	var result json.RawMessage
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result, rpcErr = s.handler.handleInitialize(req.Params)
	case "ping":
		result, _ = json.Marshal(map[string]any{})
	case "tools/list":
		result, rpcErr = s.handler.handleToolsList()
	case "tools/call":
		result, rpcErr = s.handler.handleToolsCall(ctx, req.Params)
	default:
		rpcErr = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)}
	}

	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

func (s *Server) handleNotification(req Request) {
	switch req.Method {
	case "notifications/initialized":
		slog.Debug("client initialized")
	default:
		slog.Debug("unhandled notification", "method", req.Method)
	}
}
