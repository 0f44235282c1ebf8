// ABOUTME: Tests for the JSON-RPC dispatcher and its 401 challenge behavior
// ABOUTME: Validates envelope handling, error codes, and tool result passthrough

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/2389/league-gateway/internal/auth"
	"github.com/2389/league-gateway/internal/resolver"
)

// stubAuthenticator implements Authenticator for testing.
type stubAuthenticator struct {
	ident *auth.Identity
	err   error
}

func (s *stubAuthenticator) Authenticate(r *http.Request) (*auth.Identity, error) {
	if r.Header.Get("Authorization") == "" {
		return nil, auth.ErrNoCredentials
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.ident, nil
}

// stubExecutor records the call and returns a canned result.
type stubExecutor struct {
	result resolver.Result

	gotTool   string
	gotArgs   json.RawMessage
	gotBearer string
}

func (s *stubExecutor) Execute(ctx context.Context, toolName string, rawArgs json.RawMessage, ident *auth.Identity, bearer string) resolver.Result {
	s.gotTool = toolName
	s.gotArgs = rawArgs
	s.gotBearer = bearer
	return s.result
}

func newTestServer(t *testing.T, executor *stubExecutor, verifier *stubAuthenticator) *Server {
	t.Helper()
	if verifier == nil {
		verifier = &stubAuthenticator{ident: &auth.Identity{Subject: "user-1", Issuer: "https://issuer.example.com"}}
	}
	srv, err := NewServer(Config{
		Verifier:         verifier,
		Executor:         executor,
		BaseURL:          "https://gateway.example.com",
		AuthorizationURL: "https://auth.example.com",
		ServerName:       "league-gateway",
		ServerVersion:    "test",
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func postRPC(t *testing.T, srv *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte(body)))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.handleMCP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) JSONRPCResponse {
	t.Helper()
	var resp JSONRPCResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v (body: %s)", err, w.Body.String())
	}
	return resp
}

func TestInitialize_NoAuthRequired(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{}, nil)

	w := postRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	result := resp.Result.(map[string]any)
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("protocolVersion = %v, want %s", result["protocolVersion"], protocolVersion)
	}
	info := result["serverInfo"].(map[string]any)
	if info["name"] != "league-gateway" {
		t.Errorf("serverInfo.name = %v", info["name"])
	}
}

func TestToolsList_ReturnsCatalog(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{}, nil)

	w := postRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Result ListToolsResult `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	if len(resp.Result.Tools) != len(resolver.Catalog()) {
		t.Fatalf("got %d tools, want %d", len(resp.Result.Tools), len(resolver.Catalog()))
	}
	for _, tool := range resp.Result.Tools {
		if tool.Name == "" || tool.Description == "" || len(tool.InputSchema) == 0 {
			t.Errorf("incomplete tool entry: %+v", tool)
		}
	}
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{}, nil)

	w := postRPC(t, srv, `{"jsonrpc":"2.0","id":7,"method":"ping"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if string(resp.ID) != "7" {
		t.Errorf("id = %s, want 7", resp.ID)
	}
}

func TestProtocolErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "malformed JSON", body: `{not json`, wantCode: JSONRPCParseError},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"method":"ping"}`, wantCode: JSONRPCInvalidRequest},
		{name: "missing version", body: `{"id":1,"method":"ping"}`, wantCode: JSONRPCInvalidRequest},
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, wantCode: JSONRPCMethodNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubExecutor{}, nil)
			w := postRPC(t, srv, tt.body, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (protocol errors ride in the envelope)", w.Code)
			}
			resp := decodeResponse(t, w)
			if resp.Error == nil {
				t.Fatal("expected a JSON-RPC error")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestNotification_Accepted(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{}, nil)

	w := postRPC(t, srv, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("notification response has a body: %s", w.Body.String())
	}
}

func TestBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{}, nil)

	big := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{"pad":"` +
		strings.Repeat("x", MaxRequestBodySize) + `"}}`
	w := postRPC(t, srv, big, nil)

	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != JSONRPCInvalidRequest {
		t.Fatalf("expected invalid-request error, got %+v", resp.Error)
	}
}

func TestToolsCall_MissingTokenGetsInitialChallenge(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{}, nil)

	// Every tool name, including unknown ones: the challenge comes first
	for _, tool := range []string{"football_standings", "no_such_tool"} {
		body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"` + tool + `"}}`
		w := postRPC(t, srv, body, nil)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("tool %s: status = %d, want 401", tool, w.Code)
		}
		challenge := w.Header().Get("WWW-Authenticate")
		if !strings.Contains(challenge, `error="unauthorized"`) {
			t.Errorf("challenge missing unauthorized marker: %s", challenge)
		}
		if !strings.Contains(challenge, "oauth-protected-resource") {
			t.Errorf("challenge missing resource metadata URL: %s", challenge)
		}

		resp := decodeResponse(t, w)
		if resp.Error == nil {
			t.Fatal("expected a JSON-RPC error body")
		}
		data := resp.Error.Data.(map[string]any)
		if data["error"] != "unauthorized" {
			t.Errorf("data.error = %v, want unauthorized", data["error"])
		}
		if data["authorization_url"] != "https://auth.example.com" {
			t.Errorf("data.authorization_url = %v", data["authorization_url"])
		}
	}
}

func TestToolsCall_RejectedTokenGetsInvalidTokenChallenge(t *testing.T) {
	verifier := &stubAuthenticator{err: &auth.AuthError{Reason: auth.ReasonExpired, Err: errors.New("exp passed")}}
	srv := newTestServer(t, &stubExecutor{}, verifier)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"football_standings"}}`
	w := postRPC(t, srv, body, map[string]string{"Authorization": "Bearer stale"})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	challenge := w.Header().Get("WWW-Authenticate")
	if !strings.Contains(challenge, `error="invalid_token"`) {
		t.Errorf("challenge = %s, want invalid_token marker", challenge)
	}
}

func TestToolsCall_Success(t *testing.T) {
	executor := &stubExecutor{result: resolver.Result{Content: `{"standings":[]}`}}
	srv := newTestServer(t, executor, nil)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"football_standings","arguments":{"leagueId":"111"}}}`
	w := postRPC(t, srv, body, map[string]string{"Authorization": "Bearer good"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Result CallToolResult `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Result.IsError {
		t.Error("unexpected isError")
	}
	if len(resp.Result.Content) != 1 || resp.Result.Content[0].Text != `{"standings":[]}` {
		t.Errorf("content = %+v", resp.Result.Content)
	}

	if executor.gotTool != "football_standings" {
		t.Errorf("executor tool = %s", executor.gotTool)
	}
	if executor.gotBearer != "good" {
		t.Errorf("executor bearer = %s, want the raw token forwarded", executor.gotBearer)
	}
	if string(executor.gotArgs) != `{"leagueId":"111"}` {
		t.Errorf("executor args = %s", executor.gotArgs)
	}
}

func TestToolsCall_ToolFailureIsNotAProtocolError(t *testing.T) {
	executor := &stubExecutor{result: resolver.Result{Content: "no leagues stored", IsError: true}}
	srv := newTestServer(t, executor, nil)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"football_standings"}}`
	w := postRPC(t, srv, body, map[string]string{"Authorization": "Bearer good"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: tool failures ride in the result", w.Code)
	}
	var resp struct {
		Result CallToolResult `json:"result"`
		Error  *JSONRPCError  `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected protocol error: %+v", resp.Error)
	}
	if !resp.Result.IsError {
		t.Error("isError not set")
	}
}

func TestToolsCall_ExecutorAuthErrorEscalates(t *testing.T) {
	executor := &stubExecutor{result: resolver.Result{
		Content:   "Your session is no longer valid. Please re-authenticate.",
		IsError:   true,
		AuthError: true,
	}}
	srv := newTestServer(t, executor, nil)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"football_standings"}}`
	w := postRPC(t, srv, body, map[string]string{"Authorization": "Bearer good"})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Header().Get("WWW-Authenticate"), `error="invalid_token"`) {
		t.Errorf("challenge = %s", w.Header().Get("WWW-Authenticate"))
	}
}

func TestToolsCall_InvalidParams(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`},
		{name: "non-string name", body: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":42}}`},
		{name: "arguments not an object", body: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"football_standings","arguments":[1,2]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubExecutor{}, nil)
			w := postRPC(t, srv, tt.body, map[string]string{"Authorization": "Bearer good"})

			resp := decodeResponse(t, w)
			if resp.Error == nil || resp.Error.Code != JSONRPCInvalidParams {
				t.Fatalf("expected -32602, got %+v", resp.Error)
			}
		})
	}
}

func TestGetServesDescriptor(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	w := httptest.NewRecorder()
	srv.handleMCP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if doc["name"] != "league-gateway" {
		t.Errorf("name = %v", doc["name"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	w := httptest.NewRecorder()
	srv.handleMCP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestProtectedResourceMetadata(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil)
	w := httptest.NewRecorder()
	srv.handleProtectedResource(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	servers := doc["authorization_servers"].([]any)
	if len(servers) != 1 || servers[0] != "https://auth.example.com" {
		t.Errorf("authorization_servers = %v", servers)
	}
}
