// ABOUTME: Season discovery: walks a league backward through years probing the provider
// ABOUTME: Sequential by design, rate-limit aware, persists each hit before moving on

package discovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/league-gateway/internal/leaguestore"
	"github.com/2389/league-gateway/internal/metrics"
	"github.com/2389/league-gateway/internal/upstream"
)

// ErrCredentialsRejected aborts a discovery run: the provider refused the
// stored credentials before any season was ever confirmed for this league.
var ErrCredentialsRejected = errors.New("discovery: upstream rejected credentials")

// Store is the slice of the external store the prober needs.
type Store interface {
	Leagues(ctx context.Context, subject, bearer string) ([]leaguestore.League, error)
	AddSeason(ctx context.Context, subject, bearer string, add leaguestore.SeasonAdd) error
	PatchTeam(ctx context.Context, subject, bearer string, patch leaguestore.TeamPatch) error
}

// Provider is the slice of the upstream client the prober needs. One basic
// league-info fetch per candidate year.
type Provider interface {
	LeagueInfo(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year int) (*upstream.LeagueInfo, error)
}

// Request identifies the league to walk and the identity walking it.
type Request struct {
	Subject     string
	Bearer      string
	Platform    string
	Sport       string
	LeagueID    string
	BaseTeamID  string
	Credentials *leaguestore.Credentials
}

// Season is one confirmed historical season, recorded and persisted the
// moment the probe succeeds.
type Season struct {
	SeasonYear int    `json:"seasonYear"`
	LeagueName string `json:"leagueName,omitempty"`
	TeamCount  int    `json:"teamCount"`
	TeamID     string `json:"teamId,omitempty"`
	TeamName   string `json:"teamName,omitempty"`
}

// Report summarizes one discovery run. Discovered holds only the seasons
// confirmed during this run; skipped counts years that were already stored.
type Report struct {
	Discovered     []Season `json:"discovered"`
	Skipped        int      `json:"skipped"`
	RateLimited    bool     `json:"rateLimited"`
	LimitExceeded  bool     `json:"limitExceeded"`
	MinYearReached bool     `json:"minYearReached"`
}

// Config bounds the walk.
type Config struct {
	FloorYear       int
	MissCutoff      int
	MandatoryWindow int
	ProbeDelay      time.Duration
	RetryDelay      time.Duration
}

// Prober walks a league backward year by year. Deliberately sequential:
// parallel probes would defeat the provider's per-identity rate limits and
// scramble the miss-streak bookkeeping.
type Prober struct {
	store    Store
	provider Provider
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// stubbed in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewProber creates a season discovery prober.
func NewProber(store Store, provider Provider, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Discover walks from the current calendar year down to the floor year,
// probing each candidate season and persisting every hit before probing the
// next. Partial results survive a halt: rate limiting, the store's league
// limit, and context cancellation all return what was found so far.
func (p *Prober) Discover(ctx context.Context, req Request) (*Report, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "subject", req.Subject, "league", req.LeagueID, "sport", req.Sport)

	known, err := p.knownSeasons(ctx, req)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	currentYear := p.now().Year()
	hasConfirmed := len(known) > 0
	missStreak := 0
	probed := false

	logger.Info("starting season discovery", "from_year", currentYear, "floor_year", p.cfg.FloorYear, "known_seasons", len(known))

	for year := currentYear; year >= p.cfg.FloorYear; year-- {
		if _, ok := known[year]; ok {
			report.Skipped++
			continue
		}

		// The most recent years are always probed; a stale miss count
		// must not hide the common case.
		inMandatory := year > currentYear-p.cfg.MandatoryWindow
		if !inMandatory && missStreak >= p.cfg.MissCutoff {
			logger.Info("miss cutoff reached", "year", year, "miss_streak", missStreak)
			return report, nil
		}

		if probed {
			if err := p.sleep(ctx, p.cfg.ProbeDelay); err != nil {
				return report, err
			}
		}
		probed = true

		info, err := p.probe(ctx, req, year)
		switch {
		case err == nil && len(info.Teams) > 0:
			p.metrics.ObserveProbe("hit")
			missStreak = 0
			hasConfirmed = true
			season := newSeason(info, year, req.BaseTeamID)
			report.Discovered = append(report.Discovered, season)
			if halt := p.persist(ctx, req, season, report, logger); halt {
				return report, nil
			}

		case err == nil:
			// Responds but has zero teams: not a real season
			p.metrics.ObserveProbe("miss")
			missStreak++

		case errors.Is(err, upstream.ErrNotFound):
			p.metrics.ObserveProbe("miss")
			missStreak++

		case errors.Is(err, upstream.ErrRateLimited):
			p.metrics.ObserveProbe("rate_limited")
			logger.Warn("provider rate limit hit, halting", "year", year)
			report.RateLimited = true
			return report, nil

		case errors.Is(err, upstream.ErrAuthRejected):
			p.metrics.ObserveProbe("auth_rejected")
			if !hasConfirmed {
				logger.Warn("credentials rejected before any confirmed season, aborting", "year", year)
				return report, ErrCredentialsRejected
			}
			// Some providers gate individual old seasons independently
			// of overall credential validity
			logger.Info("season access denied, counting as miss", "year", year)
			missStreak++

		default:
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			p.metrics.ObserveProbe("error")
			logger.Warn("probe failed", "year", year, "error", err)
			missStreak++
		}
	}

	report.MinYearReached = true
	logger.Info("discovery reached floor year", "discovered", len(report.Discovered), "skipped", report.Skipped)
	return report, nil
}

// knownSeasons indexes the years already stored for this league.
func (p *Prober) knownSeasons(ctx context.Context, req Request) (map[int]struct{}, error) {
	leagues, err := p.store.Leagues(ctx, req.Subject, req.Bearer)
	if err != nil {
		return nil, err
	}
	known := make(map[int]struct{})
	for _, l := range leagues {
		if l.LeagueID == req.LeagueID && l.Platform == req.Platform {
			known[l.SeasonYear] = struct{}{}
		}
	}
	return known, nil
}

// probe fetches basic league info for one year, retrying once after a short
// delay on a transient failure. Not-found, rate-limit, and auth rejections
// are definitive answers and never retried.
func (p *Prober) probe(ctx context.Context, req Request, year int) (*upstream.LeagueInfo, error) {
	info, err := p.provider.LeagueInfo(ctx, req.Credentials, req.Sport, req.LeagueID, year)
	if err == nil || !isTransient(err) {
		return info, err
	}

	if serr := p.sleep(ctx, p.cfg.RetryDelay); serr != nil {
		return nil, serr
	}
	return p.provider.LeagueInfo(ctx, req.Credentials, req.Sport, req.LeagueID, year)
}

// persist writes one discovered season through the store. Returns true when
// the whole run must halt (the store's league limit was hit).
func (p *Prober) persist(ctx context.Context, req Request, season Season, report *Report, logger *slog.Logger) (halt bool) {
	add := leaguestore.SeasonAdd{
		Platform:   req.Platform,
		LeagueID:   req.LeagueID,
		Sport:      req.Sport,
		SeasonYear: season.SeasonYear,
		LeagueName: season.LeagueName,
		TeamID:     season.TeamID,
		TeamName:   season.TeamName,
	}

	err := p.store.AddSeason(ctx, req.Subject, req.Bearer, add)
	switch {
	case err == nil:
		return false

	case errors.Is(err, leaguestore.ErrSeasonExists):
		// Lost a race or the pre-walk check was stale; attach the team
		// to the existing record instead
		patch := leaguestore.TeamPatch{
			Key: leaguestore.LeagueKey{
				Platform:   req.Platform,
				LeagueID:   req.LeagueID,
				Sport:      req.Sport,
				SeasonYear: season.SeasonYear,
			},
			TeamID:   season.TeamID,
			TeamName: season.TeamName,
		}
		if perr := p.store.PatchTeam(ctx, req.Subject, req.Bearer, patch); perr != nil {
			logger.Warn("team patch after season conflict failed", "year", season.SeasonYear, "error", perr)
		}
		return false

	case errors.Is(err, leaguestore.ErrLeagueLimit):
		logger.Warn("store league limit reached, halting", "year", season.SeasonYear)
		report.LimitExceeded = true
		return true

	default:
		logger.Error("persisting discovered season failed", "year", season.SeasonYear, "error", err)
		return false
	}
}

// newSeason builds the record for a confirmed year, matching the base team
// id to that season's team name when the roster lists it.
func newSeason(info *upstream.LeagueInfo, year int, baseTeamID string) Season {
	season := Season{
		SeasonYear: year,
		LeagueName: info.Name,
		TeamCount:  len(info.Teams),
		TeamID:     baseTeamID,
	}
	for _, t := range info.Teams {
		if t.ID == baseTeamID {
			season.TeamName = t.Name
			break
		}
	}
	return season
}

func isTransient(err error) bool {
	return !errors.Is(err, upstream.ErrNotFound) &&
		!errors.Is(err, upstream.ErrRateLimited) &&
		!errors.Is(err, upstream.ErrAuthRejected)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
