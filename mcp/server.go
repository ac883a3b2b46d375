// MCP tool server.
//
// Information Hiding:
// - JSON-RPC dispatch hidden behind Handle
// - HTTP session bookkeeping hidden
// - Tool results always travel as text content holding the result envelope

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/flightops/tools"
)

const maxRequestBytes = 1 << 20

// Backend is the tool set a server exposes. *tools.Executor implements it.
type Backend interface {
	Catalog() *tools.Catalog
	Invoke(ctx context.Context, name string, args map[string]any) tools.Result
}

// Server serves a Backend over MCP. It is safe for concurrent use.
type Server struct {
	backend Backend
	info    Implementation
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]time.Time
}

// NewServer creates a server for backend.
func NewServer(backend Backend, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}
	return &Server{
		backend:  backend,
		info:     Implementation{Name: "flightops", Version: version},
		logger:   logger,
		sessions: make(map[string]time.Time),
	}
}

// Handle dispatches one request. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "invalid JSON-RPC request")
	}
	if req.IsNotification() {
		s.logger.Debug("notification received", "method", req.Method)
		return nil
	}

	switch req.Method {
	case MethodInitialize:
		return s.reply(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      s.info,
		})
	case MethodPing:
		return s.reply(req.ID, struct{}{})
	case MethodToolsList:
		return s.reply(req.ID, toolsListResult{Tools: s.listTools()})
	case MethodToolsCall:
		return s.callTool(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) listTools() []ToolInfo {
	specs := s.backend.Catalog().Specs()
	out := make([]ToolInfo, 0, len(specs))
	for _, spec := range specs {
		schema, _ := json.Marshal(spec.InputSchema())
		out = append(out, ToolInfo{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schema,
		})
	}
	return out
}

func (s *Server) callTool(ctx context.Context, req *Request) *Response {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("invalid tools/call params: %v", err))
	}

	result := s.backend.Invoke(ctx, params.Name, params.Arguments)
	text, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, fmt.Sprintf("encode result: %v", err))
	}

	s.logger.Info("tool called", "tool", params.Name, "ok", result.OK)
	return s.reply(req.ID, CallToolResult{
		Content: []Content{{Type: "text", Text: string(text)}},
		IsError: !result.OK,
	})
}

func (s *Server) reply(id json.RawMessage, v any) *Response {
	b, err := json.Marshal(v)
	if err != nil {
		return errorResponse(id, CodeInternalError, err.Error())
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: b}
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}

// Handler returns the streamable HTTP endpoint mounted at /mcp.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp", s.handlePost)
	mux.HandleFunc("DELETE /mcp", s.handleDelete)
	return mux
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var req Request
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(nil, CodeParseError, "parse error"))
		return
	}

	if req.Method == MethodInitialize {
		id := s.openSession()
		w.Header().Set(SessionHeader, id)
		s.logger.Info("session opened", "session", id)
	} else if status, msg := s.checkSession(r.Header.Get(SessionHeader)); status != http.StatusOK {
		writeJSON(w, status, errorResponse(req.ID, CodeInvalidRequest, msg))
		return
	}

	resp := s.Handle(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if status, msg := s.checkSession(id); status != http.StatusOK {
		http.Error(w, msg, status)
		return
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.logger.Info("session closed", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) openSession() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = time.Now()
	s.mu.Unlock()
	return id
}

func (s *Server) checkSession(id string) (int, string) {
	if id == "" {
		return http.StatusBadRequest, "missing " + SessionHeader + " header"
	}
	s.mu.Lock()
	_, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return http.StatusNotFound, "unknown session"
	}
	return http.StatusOK, ""
}

// SessionCount returns the number of open HTTP sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves HTTP on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening", "addr", addr, "endpoint", "/mcp")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("mcp server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcp server shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}
}

// ServeStdio reads newline-delimited requests from r and writes responses
// to w until r is exhausted or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRequestBytes)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp *Response
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp = errorResponse(nil, CodeParseError, "parse error")
		} else {
			resp = s.Handle(ctx, &req)
		}
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}
