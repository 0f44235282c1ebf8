// ABOUTME: Legacy REST adapter: plain HTTP POST endpoints over the same cores
// ABOUTME: Shares the resolver and prober with the JSON-RPC dispatcher

package rest

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
	"github.com/2389/league-gateway/internal/discovery"
	"github.com/2389/league-gateway/internal/leaguestore"
	"github.com/2389/league-gateway/internal/resolver"
)

// maxBodySize caps REST request bodies the same as the JSON-RPC endpoint.
const maxBodySize = 1 << 20

// Authenticator verifies the request's bearer credential.
type Authenticator interface {
	Authenticate(r *http.Request) (*auth.Identity, error)
}

// ToolExecutor runs one tool call for a verified identity.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, rawArgs json.RawMessage, ident *auth.Identity, bearer string) resolver.Result
}

// Discoverer runs a season-discovery walk.
type Discoverer interface {
	Discover(ctx context.Context, req discovery.Request) (*discovery.Report, error)
}

// CredentialSource fetches the identity's stored upstream credentials.
type CredentialSource interface {
	Credentials(ctx context.Context, subject, bearer string) (*leaguestore.Credentials, error)
}

// Config holds configuration for the REST adapter.
type Config struct {
	Verifier Authenticator
	Executor ToolExecutor
	Prober   Discoverer
	Store    CredentialSource
	Logger   *slog.Logger
	BaseURL  string
}

// Server exposes the tool executor and season prober over plain REST for
// callers that predate the JSON-RPC endpoint.
type Server struct {
	verifier Authenticator
	executor ToolExecutor
	prober   Discoverer
	store    CredentialSource
	logger   *slog.Logger

	resourceMetadataURL string
}

// NewServer creates the REST adapter.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.Prober == nil {
		return nil, errors.New("prober is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		verifier:            cfg.Verifier,
		executor:            cfg.Executor,
		prober:              cfg.Prober,
		store:               cfg.Store,
		logger:              logger,
		resourceMetadataURL: strings.TrimRight(cfg.BaseURL, "/") + "/.well-known/oauth-protected-resource",
	}, nil
}

// RegisterRoutes registers the REST endpoints on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tools/{name}", s.handleToolCall)
	mux.HandleFunc("POST /api/discover", s.handleDiscover)
}

// handleToolCall runs one tool with the JSON body as arguments.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	name := r.PathValue("name")
	res := s.executor.Execute(r.Context(), name, body, ident, bearerToken(r))
	if res.AuthError {
		s.writeChallenge(w, "invalid_token", res.Content)
		return
	}

	status := http.StatusOK
	if res.IsError {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, map[string]any{
		"content": res.Content,
		"isError": res.IsError,
	})
}

// discoverRequest is the body for /api/discover.
type discoverRequest struct {
	Platform string `json:"platform"`
	Sport    string `json:"sport"`
	LeagueID string `json:"leagueId"`
	TeamID   string `json:"teamId"`
}

// handleDiscover walks a league's historical seasons and returns the report.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req discoverRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.LeagueID == "" {
		s.writeError(w, http.StatusBadRequest, "leagueId is required")
		return
	}
	sport := resolver.NormalizeSport(req.Sport)
	if sport == "" {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported sport %q; supported: %s", req.Sport, strings.Join(resolver.SupportedSports(), ", ")))
		return
	}
	platform := req.Platform
	if platform == "" {
		platform = "espn"
	}

	bearer := bearerToken(r)
	creds, err := s.store.Credentials(r.Context(), ident.Subject, bearer)
	if err != nil {
		switch {
		case errors.Is(err, leaguestore.ErrUnauthorized):
			s.writeChallenge(w, "invalid_token", "your session is no longer valid")
		case errors.Is(err, leaguestore.ErrNotFound):
			s.writeError(w, http.StatusConflict, "no upstream credentials are stored; complete onboarding first")
		default:
			s.logger.Error("fetching credentials failed", "subject", ident.Subject, "error", err)
			s.writeError(w, http.StatusBadGateway, "could not load stored credentials")
		}
		return
	}

	report, err := s.prober.Discover(r.Context(), discovery.Request{
		Subject:     ident.Subject,
		Bearer:      bearer,
		Platform:    platform,
		Sport:       sport,
		LeagueID:    req.LeagueID,
		BaseTeamID:  req.TeamID,
		Credentials: creds,
	})
	if err != nil {
		switch {
		case errors.Is(err, discovery.ErrCredentialsRejected):
			s.writeChallenge(w, "invalid_token", "the fantasy provider rejected your stored credentials")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.writeError(w, http.StatusGatewayTimeout, "discovery was cancelled")
		default:
			s.logger.Error("discovery failed", "subject", ident.Subject, "league", req.LeagueID, "error", err)
			s.writeError(w, http.StatusBadGateway, "discovery failed")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// authenticate verifies the caller, writing the appropriate 401 challenge on
// failure. Same semantics as the JSON-RPC endpoint.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ident, err := s.verifier.Authenticate(r)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredentials) {
			s.writeChallenge(w, "unauthorized", "authentication required")
			return nil, false
		}
		s.logger.Info("token rejected", "reason", auth.ReasonOf(err))
		s.writeChallenge(w, "invalid_token", "invalid or expired token")
		return nil, false
	}
	return ident, true
}

func (s *Server) writeChallenge(w http.ResponseWriter, kind, message string) {
	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf(`Bearer resource_metadata=%q, error=%q`, s.resourceMetadataURL, kind))
	s.writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":             kind,
		"message":           message,
		"resource_metadata": s.resourceMetadataURL,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		return rest
	}
	return ""
}
