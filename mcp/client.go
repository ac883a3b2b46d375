// Package mcp provides a Model Context Protocol (MCP) server exposing the
// flight tools and a client that invokes them remotely.
//
// The client speaks JSON-RPC either over stdin/stdout of a spawned server
// process or over streamable HTTP.
//
// Information Hiding:
// - Process management hidden
// - JSON-RPC protocol details hidden
// - Request ID tracking and HTTP sessions hidden

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/richinex/flightops/tools"
)

// transport moves one request and its response.
type transport interface {
	// roundTrip returns nil for notifications.
	roundTrip(ctx context.Context, req *Request) (*Response, error)
	close(ctx context.Context) error
}

// Client talks to an MCP server. Calls are serialized per transport.
type Client struct {
	t         transport
	requestID atomic.Uint64
	server    Implementation
}

// NewStdioClient starts command and connects to it over stdin/stdout.
func NewStdioClient(ctx context.Context, command string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to start MCP server: %w", err)
	}

	return connect(ctx, &stdioTransport{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)})
}

// NewHTTPClient connects to the streamable HTTP endpoint at url. A nil
// httpClient uses one with a 60s timeout.
func NewHTTPClient(ctx context.Context, url string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return connect(ctx, &httpTransport{url: url, client: httpClient})
}

func connect(ctx context.Context, t transport) (*Client, error) {
	c := &Client{t: t}
	if err := c.initialize(ctx); err != nil {
		_ = t.close(ctx)
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	return c, nil
}

func (c *Client) initialize(ctx context.Context) error {
	params := initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      Implementation{Name: "flightops", Version: "0.1.0"},
	}

	raw, err := c.call(ctx, MethodInitialize, params)
	if err != nil {
		return err
	}
	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to parse initialize result: %w", err)
	}
	c.server = result.ServerInfo

	return c.notify(ctx, MethodInitialized)
}

// Server returns the name and version reported by the server.
func (c *Client) Server() Implementation {
	return c.server
}

// ListTools returns all tools available on the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	result, err := c.call(ctx, MethodToolsList, nil)
	if err != nil {
		return nil, err
	}

	var toolsResult toolsListResult
	if err := json.Unmarshal(result, &toolsResult); err != nil {
		return nil, fmt.Errorf("failed to parse tools list: %w", err)
	}

	return toolsResult.Tools, nil
}

// CallTool calls a tool on the MCP server with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*CallToolResult, error) {
	raw, err := c.call(ctx, MethodToolsCall, callToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}

	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tool result: %w", err)
	}
	return &result, nil
}

// Invoke calls a tool and decodes its result envelope. Transport and
// decoding failures become 502 results.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) tools.Result {
	reply, err := c.CallTool(ctx, name, args)
	if err != nil {
		return tools.Failuref(tools.CodeBadGateway, "MCP call failed: %v", err)
	}

	var result tools.Result
	if err := json.Unmarshal([]byte(reply.Text()), &result); err != nil {
		return tools.Failuref(tools.CodeBadGateway, "invalid tool result: %v", err)
	}
	return result
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, MethodPing, nil)
	return err
}

// Close releases the session and stops a spawned server process.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.t.close(ctx)
}

// call sends a JSON-RPC request and returns the result.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := newRequest(method, params)
	if err != nil {
		return nil, err
	}
	req.ID = json.RawMessage(strconv.FormatUint(c.requestID.Add(1), 10))

	resp, err := c.t.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("no response to %s", method)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func (c *Client) notify(ctx context.Context, method string) error {
	req, err := newRequest(method, nil)
	if err != nil {
		return err
	}
	_, err = c.t.roundTrip(ctx, req)
	return err
}

func newRequest(method string, params any) (*Request, error) {
	req := &Request{JSONRPC: "2.0", Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = b
	}
	return req, nil
}

// stdioTransport exchanges newline-delimited JSON with a child process.
type stdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
}

func (t *stdioTransport) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, err := t.stdin.Write(append(reqJSON, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}
	if req.IsNotification() {
		return nil, nil
	}

	line, err := t.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response Response
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &response, nil
}

func (t *stdioTransport) close(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil {
		t.stdin.Close()
	}

	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		_ = t.cmd.Wait()
	}

	return nil
}

// httpTransport posts each request to the streamable HTTP endpoint and
// carries the session id issued on initialize.
type httpTransport struct {
	url    string
	client *http.Client

	mu        sync.Mutex
	sessionID string
}

func (t *httpTransport) session() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *httpTransport) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if id := t.session(); id != "" {
		httpReq.Header.Set(SessionHeader, id)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if id := resp.Header.Get(SessionHeader); id != "" {
		t.mu.Lock()
		t.sessionID = id
		t.mu.Unlock()
	}

	if resp.StatusCode == http.StatusAccepted {
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if req.IsNotification() {
		return nil, nil
	}
	return &response, nil
}

func (t *httpTransport) close(ctx context.Context) error {
	id := t.session()
	if id == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(SessionHeader, id)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	resp.Body.Close()

	t.mu.Lock()
	t.sessionID = ""
	t.mu.Unlock()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusMethodNotAllowed:
		return nil
	default:
		return fmt.Errorf("failed to delete session: HTTP %d", resp.StatusCode)
	}
}
