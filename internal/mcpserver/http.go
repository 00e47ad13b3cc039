package mcpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// MCPPath is the path the streamable-HTTP transport listens on.
const MCPPath = "/mcp"

// sessionHeader is the header mcpboot mints a fresh session id into on
// every response, per the streamable-HTTP transport's session convention.
const sessionHeader = "Mcp-Session-Id"

// Handler wraps a Server with the MCP streamable-HTTP transport: POST /mcp
// answered as JSON or one-shot SSE depending on the caller's Accept header,
// GET /mcp rejected (no server-initiated notifications to push), and
// GET /health as a side door.
type Handler struct {
	server *Server
	mux    *http.ServeMux
}

// NewHandler builds the HTTP handler for server.
func NewHandler(server *Server) *Handler {
	h := &Handler{server: server, mux: http.NewServeMux()}
	h.mux.HandleFunc("/health", h.health)
	h.mux.HandleFunc(MCPPath, h.mcp)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"tools":  h.server.ToolCount(),
	})
}

func (h *Handler) mcp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	resp := h.server.Dispatch(r.Context(), body)

	w.Header().Set(sessionHeader, uuid.NewString())

	if resp == nil {
		// Notification: no JSON-RPC response body, but the request still
		// needs an HTTP response.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	if wantsEventStream(r.Header.Get("Accept")) {
		writeSSE(w, data)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func wantsEventStream(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		if strings.TrimSpace(strings.Split(part, ";")[0]) == "text/event-stream" {
			return true
		}
	}
	return false
}

func writeSSE(w http.ResponseWriter, data []byte) {
	flusher, ok := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "data: %s\n\n", data)
	if ok {
		flusher.Flush()
	}
}

// Listen opens a TCP listener on addr (port 0 picks an ephemeral port) and
// returns it unstarted, so the caller can log the chosen port before
// serving.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
