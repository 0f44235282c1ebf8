// ABOUTME: Read-only client for the fantasy-data provider's per-sport endpoints
// ABOUTME: Maps transport failures onto typed outcomes instead of raw errors

package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/league-gateway/internal/leaguestore"
)

// Upstream outcomes. Every failure mode a caller can act on has a sentinel.
var (
	// ErrNotFound means the league/season does not exist upstream.
	ErrNotFound = errors.New("upstream resource not found")

	// ErrRateLimited means the provider signalled rate limiting. Never
	// retried by the gateway.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrAuthRejected means the stored credentials were rejected. A markup
	// (non-JSON) response body is treated the same way: the provider
	// serves a login page instead of data when the session is invalid.
	ErrAuthRejected = errors.New("upstream rejected credentials")

	// ErrTimeout means the bounded request deadline elapsed.
	ErrTimeout = errors.New("upstream request timed out")
)

// userAgent identifies the gateway to the provider.
const userAgent = "league-gateway/1.0"

// maxResponseBody bounds provider response bodies (4 MB).
const maxResponseBody = 4 << 20

// Client fetches league data from the provider. Each call carries the
// identity's stored credentials and an explicit timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a provider client. The timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// LeagueInfo fetches the basic league record for one season year. This is
// the probe used by season discovery: cheap, and answers "does this season
// exist and does it have teams".
func (c *Client) LeagueInfo(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year int) (*LeagueInfo, error) {
	var info LeagueInfo
	if err := c.get(ctx, creds, c.leaguePath(sport, leagueID, year), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Standings fetches the league with team records for standings display.
func (c *Client) Standings(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year int) (*LeagueInfo, error) {
	var info LeagueInfo
	query := url.Values{"view": {"standings"}}
	if err := c.get(ctx, creds, c.leaguePath(sport, leagueID, year), query, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Roster fetches one team's roster.
func (c *Client) Roster(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year int, teamID string) (*Roster, error) {
	var roster Roster
	query := url.Values{"view": {"roster"}, "teamId": {teamID}}
	if err := c.get(ctx, creds, c.leaguePath(sport, leagueID, year), query, &roster); err != nil {
		return nil, err
	}
	return &roster, nil
}

// Matchups fetches the head-to-head pairings for a week. Week 0 means the
// provider's current week.
func (c *Client) Matchups(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year, week int) ([]Matchup, error) {
	query := url.Values{"view": {"matchup"}}
	if week > 0 {
		query.Set("scoringPeriodId", fmt.Sprintf("%d", week))
	}
	var matchups []Matchup
	if err := c.get(ctx, creds, c.leaguePath(sport, leagueID, year), query, &matchups); err != nil {
		return nil, err
	}
	return matchups, nil
}

// leaguePath builds the provider path for one league season.
func (c *Client) leaguePath(sport, leagueID string, year int) string {
	return fmt.Sprintf("%s/games/%s/seasons/%d/leagues/%s",
		c.baseURL, url.PathEscape(sport), year, url.PathEscape(leagueID))
}

// get performs one provider request and narrows the response into out.
func (c *Client) get(ctx context.Context, creds *leaguestore.Credentials, rawURL string, query url.Values, out any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if creds != nil {
		// Provider session credentials travel as cookies
		req.Header.Set("Cookie", fmt.Sprintf("SWID=%s; espn_s2=%s", creds.PrimarySecret, creds.SecondarySecret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("reading upstream response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthRejected
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Warn("upstream request failed", "url", rawURL, "status", resp.StatusCode)
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	// A markup body on a 2xx means the provider bounced us to a login
	// page: a credential failure, not a parse bug.
	if looksLikeMarkup(body) {
		return ErrAuthRejected
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding upstream response: %w", err)
	}
	return nil
}

// isTimeout reports whether the transport error was a deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// looksLikeMarkup reports whether the body is HTML/XML rather than JSON.
func looksLikeMarkup(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "<")
}
