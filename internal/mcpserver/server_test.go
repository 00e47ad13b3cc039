package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vivekhaldar/mcpboot/internal/compile"
	"github.com/vivekhaldar/mcpboot/internal/executor"
	"github.com/vivekhaldar/mcpboot/internal/plan"
	"github.com/vivekhaldar/mcpboot/internal/sandbox"
)

type fakeSandbox struct {
	result sandbox.ToolResult
	err    error
}

func (f *fakeSandbox) RunHandler(_ context.Context, _ string, _ json.RawMessage) (sandbox.ToolResult, error) {
	return f.result, f.err
}

func textResult(text string) sandbox.ToolResult {
	item, _ := json.Marshal(map[string]string{"type": "text", "text": text})
	return sandbox.ToolResult{Content: []json.RawMessage{item}}
}

func newTestTools() *compile.CompiledTools {
	ct := compile.NewCompiledTools([]string{"api.weather.com"})
	ct.Add(compile.CompiledTool{
		PlannedTool: plan.PlannedTool{
			Name:        "get_weather",
			Description: "fetches weather",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`),
		},
		HandlerSource: `return { content: [{ type: "text", text: "sunny" }] };`,
	})
	return ct
}

func newTestServer() *Server {
	tools := newTestTools()
	exec := executor.New(tools, &fakeSandbox{result: textResult("sunny")})
	return NewServer(exec, NewCompiledToolsMetadata(tools))
}

func rpcRequest(id int, method string, params any) []byte {
	p, _ := json.Marshal(params)
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  json.RawMessage(p),
	}
	data, _ := json.Marshal(req)
	return data
}

func TestDispatch_Initialize(t *testing.T) {
	s := newTestServer()
	resp := s.Dispatch(context.Background(), rpcRequest(1, "initialize", map[string]any{}))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.ProtocolVersion != protocolVersion {
		t.Fatalf("protocolVersion = %q, want %q", result.ProtocolVersion, protocolVersion)
	}
	if result.ServerInfo.Name != serverName {
		t.Fatalf("serverInfo.name = %q, want %q", result.ServerInfo.Name, serverName)
	}
}

func TestDispatch_ToolsListOmitsHiddenMetadataTool(t *testing.T) {
	s := newTestServer()
	resp := s.Dispatch(context.Background(), rpcRequest(2, "tools/list", nil))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var got struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Tools) != 1 || got.Tools[0].Name != "get_weather" {
		t.Fatalf("tools/list = %+v", got.Tools)
	}
	for _, tool := range got.Tools {
		if tool.Name == metadataToolName {
			t.Fatal("tools/list must not report the hidden metadata tool")
		}
	}
}

func TestDispatch_ToolsCallRoundTrip(t *testing.T) {
	s := newTestServer()
	params := CallToolParams{Name: "get_weather", Arguments: json.RawMessage(`{"city":"nyc"}`)}
	resp := s.Dispatch(context.Background(), rpcRequest(3, "tools/call", params))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var got struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.IsError {
		t.Fatal("expected isError false")
	}
	if len(got.Content) != 1 || got.Content[0].Text != "sunny" {
		t.Fatalf("content = %+v", got.Content)
	}
}

func TestDispatch_HiddenMetadataToolCallableButNotListed(t *testing.T) {
	s := newTestServer()
	params := CallToolParams{Name: metadataToolName}
	resp := s.Dispatch(context.Background(), rpcRequest(4, "tools/call", params))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var got struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp.Result, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Content) != 1 {
		t.Fatalf("content = %+v", got.Content)
	}

	var blob metadataBlob
	if err := json.Unmarshal([]byte(got.Content[0].Text), &blob); err != nil {
		t.Fatalf("unmarshal metadata blob: %v", err)
	}
	if blob.Stage != "boot" {
		t.Fatalf("stage = %q, want boot", blob.Stage)
	}
	if len(blob.WhitelistDomains) != 1 || blob.WhitelistDomains[0] != "api.weather.com" {
		t.Fatalf("whitelistDomains = %+v", blob.WhitelistDomains)
	}
	if len(blob.Tools) != 1 || blob.Tools[0].Name != "get_weather" || blob.Tools[0].HandlerSource == "" {
		t.Fatalf("tools = %+v", blob.Tools)
	}
}

func TestDispatch_UnknownMethod(t *testing.T) {
	s := newTestServer()
	resp := s.Dispatch(context.Background(), rpcRequest(5, "bogus/method", nil))
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestDispatch_NotificationReturnsNil(t *testing.T) {
	s := newTestServer()
	notif := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if resp := s.Dispatch(context.Background(), notif); resp != nil {
		t.Fatalf("expected nil response for notification, got %+v", resp)
	}
}

func TestDispatch_ParseError(t *testing.T) {
	s := newTestServer()
	resp := s.Dispatch(context.Background(), []byte("not json"))
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Fatalf("expected CodeParseError, got %+v", resp.Error)
	}
}

func TestHandler_Health(t *testing.T) {
	h := NewHandler(newTestServer())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var got struct {
		Status string `json:"status"`
		Tools  int    `json:"tools"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != "ok" || got.Tools != 1 {
		t.Fatalf("health = %+v", got)
	}
}

func TestHandler_MCPPostJSON(t *testing.T) {
	h := NewHandler(newTestServer())
	body := rpcRequest(1, "tools/list", nil)
	req := httptest.NewRequest(http.MethodPost, MCPPath, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	if rr.Header().Get(sessionHeader) == "" {
		t.Fatal("expected Mcp-Session-Id header to be set")
	}
}

func TestHandler_MCPPostEventStream(t *testing.T) {
	h := NewHandler(newTestServer())
	body := rpcRequest(1, "tools/list", nil)
	req := httptest.NewRequest(http.MethodPost, MCPPath, strings.NewReader(string(body)))
	req.Header.Set("Accept", "application/json, text/event-stream")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), "data: ") {
		t.Fatalf("body = %q, want it to start with 'data: '", rr.Body.String())
	}
}

func TestHandler_MCPGetNotAllowed(t *testing.T) {
	h := NewHandler(newTestServer())
	req := httptest.NewRequest(http.MethodGet, MCPPath, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}
