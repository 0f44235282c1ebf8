// ABOUTME: JSON-RPC 2.0 dispatcher for AI tool callers over HTTP POST
// ABOUTME: Owns the 401 authentication-challenge state machine

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/league-gateway/internal/auth"
	"github.com/2389/league-gateway/internal/resolver"
)

// protocolVersion is advertised in initialize responses.
const protocolVersion = "2025-03-26"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// ToolInfo is one tool definition in a tools/list result.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the result for tools/call. IsError marks a tool-level
// failure the calling AI reads and reasons about; the transport never
// converts it into a protocol error.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content represents content in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Authenticator verifies the request's bearer credential. A missing
// credential must surface as auth.ErrNoCredentials so the dispatcher issues
// the initial challenge instead of the invalid-token one.
type Authenticator interface {
	Authenticate(r *http.Request) (*auth.Identity, error)
}

// ToolExecutor runs one tool call for a verified identity.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, rawArgs json.RawMessage, ident *auth.Identity, bearer string) resolver.Result
}

// Config holds configuration for the JSON-RPC server.
type Config struct {
	Verifier         Authenticator
	Executor         ToolExecutor
	Logger           *slog.Logger
	BaseURL          string // external URL of this gateway
	AuthorizationURL string // where callers go to authenticate
	ServerName       string
	ServerVersion    string
}

// Server dispatches JSON-RPC envelopes over a single HTTP POST endpoint.
// Every request is handled independently; there is no session state.
type Server struct {
	verifier Authenticator
	executor ToolExecutor
	logger   *slog.Logger

	resourceMetadataURL string
	authorizationURL    string
	serverName          string
	serverVersion       string
}

// NewServer creates a JSON-RPC dispatcher with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.ServerName
	if name == "" {
		name = "league-gateway"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "dev"
	}

	return &Server{
		verifier:            cfg.Verifier,
		executor:            cfg.Executor,
		logger:              logger,
		resourceMetadataURL: strings.TrimRight(cfg.BaseURL, "/") + "/.well-known/oauth-protected-resource",
		authorizationURL:    cfg.AuthorizationURL,
		serverName:          name,
		serverVersion:       version,
	}, nil
}

// RegisterRoutes registers the dispatcher endpoints on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/.well-known/oauth-protected-resource", s.handleProtectedResource)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		s.handleDescriptor(w)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDescriptor serves a plain server descriptor for GET requests, so a
// browser or probe hitting the endpoint sees what it is talking to.
func (s *Server) handleDescriptor(w http.ResponseWriter) {
	doc := map[string]any{
		"name":            s.serverName,
		"version":         s.serverVersion,
		"protocolVersion": protocolVersion,
		"transport":       "jsonrpc-over-http",
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		s.logger.Warn("failed to encode descriptor", "error", err)
	}
}

// handleProtectedResource serves the resource metadata document named by the
// 401 challenges, so caller tooling can discover where to authenticate.
func (s *Server) handleProtectedResource(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"resource":                 s.resourceMetadataURL,
		"authorization_servers":    []string{s.authorizationURL},
		"bearer_methods_supported": []string{"header"},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		s.logger.Warn("failed to encode resource metadata", "error", err)
	}
}

// handlePost processes one JSON-RPC message sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendJSONRPCError(w, nil, JSONRPCParseError, "failed to read request body", nil)
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendJSONRPCError(w, nil, JSONRPCInvalidRequest, "request body too large", nil)
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendJSONRPCError(w, nil, JSONRPCParseError, "invalid JSON", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version", nil)
		return
	}

	// Notifications carry no id and get no response body
	if len(req.ID) == 0 || string(req.ID) == "null" {
		if !strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.logger.Debug("rpc request", "method", req.Method)

	switch req.Method {
	case "initialize":
		s.handleInitialize(w, req)
	case "tools/list":
		s.handleToolsList(w, req)
	case "ping":
		s.sendJSONRPCResult(w, req.ID, struct{}{})
	case "tools/call":
		s.handleToolsCall(w, r, req)
	default:
		s.sendJSONRPCError(w, req.ID, JSONRPCMethodNotFound, "method not found", nil)
	}
}

// handleInitialize answers the handshake. No auth required.
func (s *Server) handleInitialize(w http.ResponseWriter, req JSONRPCRequest) {
	result := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.serverName,
			"version": s.serverVersion,
		},
	}
	s.sendJSONRPCResult(w, req.ID, result)
}

// handleToolsList returns the static tool catalog. No auth required: the
// catalog is the same for every caller.
func (s *Server) handleToolsList(w http.ResponseWriter, req JSONRPCRequest) {
	catalog := resolver.Catalog()
	result := ListToolsResult{Tools: make([]ToolInfo, len(catalog))}
	for i, tool := range catalog {
		result.Tools[i] = ToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}
	}
	s.sendJSONRPCResult(w, req.ID, result)
}

// handleToolsCall authenticates the caller and runs the tool. Auth failures
// use HTTP 401 challenges so caller tooling detects "go authenticate"
// without parsing the body; everything after authentication is either a
// protocol error or a tool result.
func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	ident, err := s.verifier.Authenticate(r)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredentials) {
			s.sendChallenge(w, req.ID, "unauthorized", "authentication required")
			return
		}
		s.logger.Info("token rejected", "reason", auth.ReasonOf(err))
		s.sendChallenge(w, req.ID, "invalid_token", "invalid or expired token")
		return
	}

	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "invalid params", nil)
			return
		}
	}
	if params.Name == "" {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "tool name is required", nil)
		return
	}
	if !isObjectOrEmpty(params.Arguments) {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "arguments must be an object", nil)
		return
	}

	res := s.executor.Execute(r.Context(), params.Name, params.Arguments, ident, bearerToken(r))
	if res.AuthError {
		s.sendChallenge(w, req.ID, "invalid_token", res.Content)
		return
	}

	result := CallToolResult{
		Content: []Content{{Type: "text", Text: res.Content}},
		IsError: res.IsError,
	}

	s.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"subject", ident.Subject,
		"is_error", res.IsError,
	)
	s.sendJSONRPCResult(w, req.ID, result)
}

// sendChallenge writes an HTTP 401 with a WWW-Authenticate header and a
// JSON-RPC error body whose data names the resource metadata URL. The
// challenge kind distinguishes "never authenticated" (unauthorized) from
// "token rejected" (invalid_token); callers must treat the latter as a
// signal to run a fresh authorization flow.
func (s *Server) sendChallenge(w http.ResponseWriter, id json.RawMessage, kind, message string) {
	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf(`Bearer resource_metadata=%q, error=%q`, s.resourceMetadataURL, kind))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    JSONRPCInvalidRequest,
			Message: message,
			Data: map[string]any{
				"error":             kind,
				"resource_metadata": s.resourceMetadataURL,
				"authorization_url": s.authorizationURL,
			},
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode challenge response", "error", err)
	}
}

// bearerToken extracts the raw bearer credential for forwarding to the
// external store, which verifies it independently.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		return rest
	}
	return ""
}

// isObjectOrEmpty reports whether raw is absent, null, or a JSON object.
func isObjectOrEmpty(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return true
	}
	return strings.HasPrefix(trimmed, "{")
}

// sendJSONRPCResult sends a successful JSON-RPC response.
func (s *Server) sendJSONRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// sendJSONRPCError sends a JSON-RPC error response.
func (s *Server) sendJSONRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string, data any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}
