package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vivekhaldar/mcpboot/internal/executor"
	"github.com/vivekhaldar/mcpboot/internal/sandbox"
)

// metadataToolName is the hidden tool: callable via tools/call but never
// reported by tools/list.
const metadataToolName = "_mcp_metadata"

const serverName = "mcpboot"

// ServerVersion is the mcpboot server's own version string, reported by
// initialize and by the _mcp_metadata tool.
const ServerVersion = "0.1.0"

// metadataSource carries the information the _mcp_metadata tool reports;
// the handler never reaches into the cache directly for it.
type metadataSource interface {
	WhitelistDomains() []string
	ToolSources() []ToolSource
}

// ToolSource pairs a compiled tool's name with the handler source text that
// implements it, for _mcp_metadata's introspection blob.
type ToolSource struct {
	Name          string `json:"name"`
	HandlerSource string `json:"handlerSource"`
}

// metadataBlob is the JSON shape _mcp_metadata returns.
type metadataBlob struct {
	Stage            string       `json:"stage"`
	Version          string       `json:"version"`
	WhitelistDomains []string     `json:"whitelistDomains"`
	Tools            []ToolSource `json:"tools"`
}

// handler implements the MCP methods mcpboot speaks: one method per switch
// case in dispatch, each returning a raw JSON result or an RPCError.
type handler struct {
	exec *executor.Executor
	meta metadataSource
}

func newHandler(exec *executor.Executor, meta metadataSource) *handler {
	return &handler{exec: exec, meta: meta}
}

func (h *handler) handleInitialize(params json.RawMessage) (json.RawMessage, *RPCError) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
	}

	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    ServerCapability{Tools: &ToolCapability{ListChanged: false}},
		ServerInfo:      ServerInfo{Name: serverName, Version: ServerVersion},
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (h *handler) handleToolsList() (json.RawMessage, *RPCError) {
	summaries := h.exec.ListTools()
	tools := make([]mcp.Tool, 0, len(summaries))
	for _, s := range summaries {
		tools = append(tools, toMCPTool(s))
	}

	data, err := json.Marshal(map[string]any{"tools": tools})
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (h *handler) handleToolsCall(ctx context.Context, params json.RawMessage) (json.RawMessage, *RPCError) {
	var p CallToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	if p.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "tools/call: name is required"}
	}

	var result *mcp.CallToolResult
	if p.Name == metadataToolName {
		result = h.handleMetadataCall()
	} else {
		result = toMCPResult(h.exec.Execute(ctx, p.Name, p.Arguments))
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (h *handler) handleMetadataCall() *mcp.CallToolResult {
	blob := metadataBlob{
		Stage:            "boot",
		Version:          ServerVersion,
		WhitelistDomains: h.meta.WhitelistDomains(),
		Tools:            h.meta.ToolSources(),
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("_mcp_metadata: %s", err.Error()))
	}
	return mcp.NewToolResultText(string(data))
}

// toMCPTool converts an executor.ToolSummary into mcp-go's Tool wire type,
// carrying the arbitrary JSON-Schema input shape through RawInputSchema
// rather than mcp.ToolInputSchema's fixed object-with-properties shape,
// since a compiled tool's schema isn't guaranteed to fit that narrower type.
func toMCPTool(s executor.ToolSummary) mcp.Tool {
	return mcp.Tool{
		Name:           s.Name,
		Description:    s.Description,
		RawInputSchema: s.InputSchema,
	}
}

// toMCPResult converts a sandbox.ToolResult (whose content items are
// already {type, text} shaped JSON, per the compiler's contract) into
// mcp-go's CallToolResult.
func toMCPResult(r sandbox.ToolResult) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(r.Content))
	for _, item := range r.Content {
		var tc struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(item, &tc); err != nil || tc.Type != "text" {
			content = append(content, mcp.TextContent{Type: "text", Text: string(item)})
			continue
		}
		content = append(content, mcp.TextContent{Type: "text", Text: tc.Text})
	}
	return &mcp.CallToolResult{Content: content, IsError: r.IsError}
}
