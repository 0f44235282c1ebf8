// ABOUTME: Tool executor: resolves league context then fetches from the provider
// ABOUTME: Domain failures become inspectable results, never opaque faults

package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/league-gateway/internal/auth"
	"github.com/2389/league-gateway/internal/leaguestore"
	"github.com/2389/league-gateway/internal/metrics"
	"github.com/2389/league-gateway/internal/upstream"
)

// Result is the outcome of one tool invocation. IsError marks a tool-level
// failure the calling AI can read and reason about; AuthError additionally
// tells the transport to escalate to a re-authentication challenge.
type Result struct {
	Content   string
	IsError   bool
	AuthError bool
}

// LeagueStore is the slice of the external store the executor needs.
type LeagueStore interface {
	Leagues(ctx context.Context, subject, bearer string) ([]leaguestore.League, error)
	Credentials(ctx context.Context, subject, bearer string) (*leaguestore.Credentials, error)
}

// Provider is the slice of the upstream client the executor needs.
type Provider interface {
	Standings(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year int) (*upstream.LeagueInfo, error)
	Roster(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year int, teamID string) (*upstream.Roster, error)
	Matchups(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year, week int) ([]upstream.Matchup, error)
}

// Executor resolves league context and runs tool calls. Both the JSON-RPC
// and REST transports delegate here so the resolution algorithm lives in
// exactly one place.
type Executor struct {
	store    LeagueStore
	provider Provider
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// now is stubbed in tests
	now func() time.Time
}

// NewExecutor creates a tool executor.
func NewExecutor(store LeagueStore, provider Provider, logger *slog.Logger, m *metrics.Metrics) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:    store,
		provider: provider,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Execute runs one tool call for a verified identity. The bearer token is
// forwarded to the store for its own verification.
func (e *Executor) Execute(ctx context.Context, toolName string, rawArgs json.RawMessage, ident *auth.Identity, bearer string) Result {
	res := e.execute(ctx, toolName, rawArgs, ident, bearer)

	outcome := "ok"
	switch {
	case res.AuthError:
		outcome = "auth_error"
	case res.IsError:
		outcome = "error"
	}
	e.metrics.ObserveToolCall(toolName, outcome)

	return res
}

func (e *Executor) execute(ctx context.Context, toolName string, rawArgs json.RawMessage, ident *auth.Identity, bearer string) Result {
	tool, ok := LookupTool(toolName)
	if !ok {
		return errResult("unknown tool: %s", toolName)
	}

	leagues, err := e.store.Leagues(ctx, ident.Subject, bearer)
	if err != nil {
		if errors.Is(err, leaguestore.ErrUnauthorized) {
			return authErrResult("Your session is no longer valid. Please re-authenticate.")
		}
		e.logger.Error("fetching stored leagues failed", "subject", ident.Subject, "error", err)
		return errResult("could not load your stored leagues: %v", err)
	}

	matches := FilterBySport(leagues, tool.Sport)

	// The session tool succeeds even with zero matching leagues
	if tool.Kind == KindSession {
		return sessionResult(leagues, matches, tool.Sport, e.now())
	}

	if len(matches) == 0 {
		if len(leagues) == 0 {
			return errResult("no leagues are stored for your account; connect your fantasy account first")
		}
		return errResult("no %s leagues are stored for your account (found: %s); use the %s_session tool for details",
			tool.Sport, joinSports(leagues), tool.Sport)
	}

	var args Args
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errResult("invalid arguments: %v", err)
		}
	}

	target := ResolveTarget(args, matches, tool.Sport, e.now())

	creds, err := e.store.Credentials(ctx, ident.Subject, bearer)
	if err != nil {
		if errors.Is(err, leaguestore.ErrUnauthorized) {
			return authErrResult("Your session is no longer valid. Please re-authenticate.")
		}
		if errors.Is(err, leaguestore.ErrNotFound) {
			return errResult("no upstream credentials are stored for your account; complete onboarding first")
		}
		e.logger.Error("fetching credentials failed", "subject", ident.Subject, "error", err)
		return errResult("could not load your upstream credentials: %v", err)
	}

	start := e.now()
	payload, err := e.fetch(ctx, tool, creds, target)
	e.metrics.ObserveUpstreamLatency(time.Since(start))

	if err != nil {
		return e.upstreamResult(tool, target, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errResult("encoding result: %v", err)
	}
	return Result{Content: string(data)}
}

// fetch dispatches to the upstream call for the tool's kind.
func (e *Executor) fetch(ctx context.Context, tool Tool, creds *leaguestore.Credentials, target Target) (any, error) {
	switch tool.Kind {
	case KindStandings:
		return e.provider.Standings(ctx, creds, tool.Sport, target.LeagueID, target.SeasonYear)
	case KindRoster:
		if target.TeamID == "" {
			return nil, fmt.Errorf("no team selected for this league; supply a teamId")
		}
		return e.provider.Roster(ctx, creds, tool.Sport, target.LeagueID, target.SeasonYear, target.TeamID)
	case KindMatchups:
		return e.provider.Matchups(ctx, creds, tool.Sport, target.LeagueID, target.SeasonYear, target.Week)
	default:
		return nil, fmt.Errorf("tool kind %q has no executor", tool.Kind)
	}
}

// upstreamResult translates typed upstream outcomes into tool results.
func (e *Executor) upstreamResult(tool Tool, target Target, err error) Result {
	switch {
	case errors.Is(err, upstream.ErrAuthRejected):
		return authErrResult("The fantasy provider rejected your stored credentials. Please re-authenticate.")
	case errors.Is(err, upstream.ErrNotFound):
		return errResult("league %s season %d was not found at the provider", target.LeagueID, target.SeasonYear)
	case errors.Is(err, upstream.ErrRateLimited):
		return errResult("the fantasy provider is rate limiting requests; try again shortly")
	case errors.Is(err, upstream.ErrTimeout):
		return errResult("the fantasy provider timed out; try again shortly")
	default:
		e.logger.Warn("upstream fetch failed", "tool", tool.Name, "league", target.LeagueID, "error", err)
		return errResult("fetching %s failed: %v", tool.Kind, err)
	}
}

func joinSports(leagues []leaguestore.League) string {
	names := otherSports(leagues)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func errResult(format string, args ...any) Result {
	return Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

func authErrResult(msg string) Result {
	return Result{Content: msg, IsError: true, AuthError: true}
}
