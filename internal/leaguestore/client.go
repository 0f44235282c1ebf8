// ABOUTME: HTTP client for the external credential/league store service
// ABOUTME: Reads leagues/credentials, idempotent season add, team patch

package leaguestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Store errors
var (
	// ErrUnauthorized means the store rejected the forwarded identity or
	// bearer token; callers escalate this to a re-authentication challenge.
	ErrUnauthorized = errors.New("store rejected credentials")

	// ErrSeasonExists is the store's conflict answer to an add that raced
	// with an existing record.
	ErrSeasonExists = errors.New("season already stored")

	// ErrLeagueLimit means the identity has reached its stored-league cap.
	ErrLeagueLimit = errors.New("stored league limit exceeded")

	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
)

// maxResponseBody bounds store response bodies (1 MB).
const maxResponseBody = 1 << 20

// Client is a typed HTTP client for the store. All calls carry the verified
// subject and, where available, the original bearer token so the store can
// verify independently.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a store client for the given base URL.
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

// Leagues fetches the identity's stored league records.
func (c *Client) Leagues(ctx context.Context, subject, bearer string) ([]League, error) {
	var leagues []League
	err := c.do(ctx, http.MethodGet, c.userPath(subject, "leagues"), subject, bearer, nil, &leagues)
	if err != nil {
		return nil, err
	}
	return leagues, nil
}

// Credentials fetches the identity's raw upstream credentials.
func (c *Client) Credentials(ctx context.Context, subject, bearer string) (*Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodGet, c.userPath(subject, "credentials"), subject, bearer, nil, &creds)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

// AddSeason persists a discovered season. The call is idempotent: a racing
// or stale add yields ErrSeasonExists, and a full store yields ErrLeagueLimit.
func (c *Client) AddSeason(ctx context.Context, subject, bearer string, add SeasonAdd) error {
	return c.do(ctx, http.MethodPost, c.userPath(subject, "leagues"), subject, bearer, add, nil)
}

// PatchTeam attaches a team to an existing league record.
func (c *Client) PatchTeam(ctx context.Context, subject, bearer string, patch TeamPatch) error {
	return c.do(ctx, http.MethodPatch, c.userPath(subject, "leagues/team"), subject, bearer, patch, nil)
}

// userPath builds the store path for one identity's sub-resource.
func (c *Client) userPath(subject, resource string) string {
	return fmt.Sprintf("%s/v1/users/%s/%s", c.baseURL, url.PathEscape(subject), resource)
}

// do performs one request/response cycle against the store, mapping status
// codes onto sentinel errors and decoding the body into out when non-nil.
func (c *Client) do(ctx context.Context, method, rawURL, subject, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subject-Id", subject)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("store request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("reading store response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusConflict:
		return ErrSeasonExists
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return ErrLeagueLimit
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Warn("store request failed",
			"method", method,
			"url", rawURL,
			"status", resp.StatusCode,
		)
		return fmt.Errorf("store returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding store response: %w", err)
		}
	}
	return nil
}
