// ABOUTME: Tests for the season discovery walk: cutoffs, halts, persistence
// ABOUTME: Stub store and provider record exactly which years were touched

package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/league-gateway/internal/leaguestore"
	"github.com/2389/league-gateway/internal/upstream"
)

type stubStore struct {
	leagues []leaguestore.League
	addErr  func(year int) error

	adds    []leaguestore.SeasonAdd
	patches []leaguestore.TeamPatch
}

func (s *stubStore) Leagues(ctx context.Context, subject, bearer string) ([]leaguestore.League, error) {
	return s.leagues, nil
}

func (s *stubStore) AddSeason(ctx context.Context, subject, bearer string, add leaguestore.SeasonAdd) error {
	s.adds = append(s.adds, add)
	if s.addErr != nil {
		return s.addErr(add.SeasonYear)
	}
	return nil
}

func (s *stubStore) PatchTeam(ctx context.Context, subject, bearer string, patch leaguestore.TeamPatch) error {
	s.patches = append(s.patches, patch)
	return nil
}

// stubProvider answers per-year; unlisted years are not found.
type stubProvider struct {
	seasons map[int]*upstream.LeagueInfo
	errs    map[int]error
	probed  []int
}

func (s *stubProvider) LeagueInfo(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year int) (*upstream.LeagueInfo, error) {
	s.probed = append(s.probed, year)
	if err, ok := s.errs[year]; ok {
		return nil, err
	}
	if info, ok := s.seasons[year]; ok {
		return info, nil
	}
	return nil, upstream.ErrNotFound
}

func foundSeason(year int) *upstream.LeagueInfo {
	return &upstream.LeagueInfo{
		ID:         "111",
		Name:       "Dynasty Legends",
		SeasonYear: year,
		Teams: []upstream.Team{
			{ID: "3", Name: "Hawks"},
			{ID: "4", Name: "Owls"},
		},
	}
}

func testConfig() Config {
	return Config{
		FloorYear:       2000,
		MissCutoff:      2,
		MandatoryWindow: 2,
		ProbeDelay:      750 * time.Millisecond,
		RetryDelay:      2 * time.Second,
	}
}

func newTestProber(store *stubStore, provider Provider, cfg Config) *Prober {
	p := NewProber(store, provider, cfg, nil, nil)
	p.now = func() time.Time {
		return time.Date(2025, time.September, 15, 0, 0, 0, 0, time.UTC)
	}
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func testRequest() Request {
	return Request{
		Subject:     "user-1",
		Bearer:      "tok",
		Platform:    "espn",
		Sport:       "football",
		LeagueID:    "111",
		BaseTeamID:  "3",
		Credentials: &leaguestore.Credentials{PrimarySecret: "p", SecondarySecret: "s"},
	}
}

func TestDiscover_WalkStopsAtMissCutoff(t *testing.T) {
	provider := &stubProvider{seasons: map[int]*upstream.LeagueInfo{
		2022: foundSeason(2022),
		2023: foundSeason(2023),
		2024: foundSeason(2024),
	}}
	store := &stubStore{}
	p := newTestProber(store, provider, testConfig())

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)

	var years []int
	for _, s := range report.Discovered {
		years = append(years, s.SeasonYear)
	}
	assert.Equal(t, []int{2024, 2023, 2022}, years)

	// 2025 misses inside the mandatory window, then three hits, then two
	// misses at 2021/2020 trip the cutoff before 2019 is ever probed
	assert.Equal(t, []int{2025, 2024, 2023, 2022, 2021, 2020}, provider.probed)
	assert.False(t, report.MinYearReached)
	assert.False(t, report.RateLimited)
	assert.False(t, report.LimitExceeded)
}

func TestDiscover_MandatoryWindowIgnoresMissStreak(t *testing.T) {
	// With a cutoff of 1, the miss at 2025 would stop the walk were 2024
	// not inside the always-probed window
	provider := &stubProvider{seasons: map[int]*upstream.LeagueInfo{
		2024: foundSeason(2024),
	}}
	cfg := testConfig()
	cfg.MissCutoff = 1
	p := newTestProber(&stubStore{}, provider, cfg)

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)
	require.Len(t, report.Discovered, 1)
	assert.Equal(t, 2024, report.Discovered[0].SeasonYear)
}

func TestDiscover_StoredSeasonsSkippedWithoutProbing(t *testing.T) {
	store := &stubStore{leagues: []leaguestore.League{
		{Platform: "espn", LeagueID: "111", Sport: "football", SeasonYear: 2025},
		{Platform: "espn", LeagueID: "999", Sport: "football", SeasonYear: 2024},
	}}
	provider := &stubProvider{seasons: map[int]*upstream.LeagueInfo{
		2024: foundSeason(2024),
	}}
	p := newTestProber(store, provider, testConfig())

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped, "only this league's stored season counts")
	assert.NotContains(t, provider.probed, 2025)
	require.Len(t, report.Discovered, 1)
}

func TestDiscover_ConflictTriggersExactlyOneTeamPatch(t *testing.T) {
	store := &stubStore{addErr: func(year int) error {
		if year == 2024 {
			return leaguestore.ErrSeasonExists
		}
		return nil
	}}
	provider := &stubProvider{seasons: map[int]*upstream.LeagueInfo{
		2024: foundSeason(2024),
		2023: foundSeason(2023),
	}}
	p := newTestProber(store, provider, testConfig())

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)
	require.Len(t, report.Discovered, 2)

	require.Len(t, store.patches, 1, "the conflicting add gets one patch, the clean add gets none")
	patch := store.patches[0]
	assert.Equal(t, 2024, patch.Key.SeasonYear)
	assert.Equal(t, "3", patch.TeamID)
	assert.Equal(t, "Hawks", patch.TeamName)
}

func TestDiscover_RateLimitHaltsWithPartialResults(t *testing.T) {
	provider := &stubProvider{
		seasons: map[int]*upstream.LeagueInfo{
			2025: foundSeason(2025),
			2024: foundSeason(2024),
		},
		errs: map[int]error{2023: upstream.ErrRateLimited},
	}
	p := newTestProber(&stubStore{}, provider, testConfig())

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)
	assert.True(t, report.RateLimited)
	assert.Len(t, report.Discovered, 2, "seasons found before the halt are kept")
	assert.Equal(t, []int{2025, 2024, 2023}, provider.probed, "no probe after the rate limit")
}

func TestDiscover_LeagueLimitHaltsLoop(t *testing.T) {
	store := &stubStore{addErr: func(year int) error {
		return leaguestore.ErrLeagueLimit
	}}
	provider := &stubProvider{seasons: map[int]*upstream.LeagueInfo{
		2025: foundSeason(2025),
		2024: foundSeason(2024),
	}}
	p := newTestProber(store, provider, testConfig())

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)
	assert.True(t, report.LimitExceeded)
	assert.Equal(t, []int{2025}, provider.probed)
}

func TestDiscover_AuthRejectionBeforeAnyConfirmedAborts(t *testing.T) {
	provider := &stubProvider{errs: map[int]error{2025: upstream.ErrAuthRejected}}
	p := newTestProber(&stubStore{}, provider, testConfig())

	_, err := p.Discover(t.Context(), testRequest())
	assert.ErrorIs(t, err, ErrCredentialsRejected)
}

func TestDiscover_AuthRejectionAfterConfirmedIsAMiss(t *testing.T) {
	provider := &stubProvider{
		seasons: map[int]*upstream.LeagueInfo{2025: foundSeason(2025)},
		errs:    map[int]error{2024: upstream.ErrAuthRejected},
	}
	p := newTestProber(&stubStore{}, provider, testConfig())

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)
	require.Len(t, report.Discovered, 1)
	assert.Contains(t, provider.probed, 2023, "the walk continues past the denied season")
}

func TestDiscover_StoredSeasonCountsAsConfirmedForAuthFailures(t *testing.T) {
	store := &stubStore{leagues: []leaguestore.League{
		{Platform: "espn", LeagueID: "111", Sport: "football", SeasonYear: 2023},
	}}
	provider := &stubProvider{errs: map[int]error{2025: upstream.ErrAuthRejected}}
	p := newTestProber(store, provider, testConfig())

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err, "a previously stored season makes the rejection a per-year miss")
	assert.Empty(t, report.Discovered)
}

func TestDiscover_TransientErrorRetriedOnce(t *testing.T) {
	calls := 0
	provider := &retryProvider{fail: &calls}
	p := newTestProber(&stubStore{}, provider, testConfig())
	p.cfg.FloorYear = 2025 // single year

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "one retry after the transient failure")
	require.Len(t, report.Discovered, 1)
	assert.True(t, report.MinYearReached)
}

// retryProvider fails the first call with a transient error and succeeds on
// the retry.
type retryProvider struct {
	fail *int
}

func (r *retryProvider) LeagueInfo(ctx context.Context, creds *leaguestore.Credentials, sport, leagueID string, year int) (*upstream.LeagueInfo, error) {
	*r.fail++
	if *r.fail == 1 {
		return nil, errors.New("connection reset")
	}
	return foundSeason(year), nil
}

func TestDiscover_ZeroTeamsIsAMiss(t *testing.T) {
	provider := &stubProvider{seasons: map[int]*upstream.LeagueInfo{
		2025: {ID: "111", Name: "Ghost League", SeasonYear: 2025},
	}}
	store := &stubStore{}
	p := newTestProber(store, provider, testConfig())
	p.cfg.FloorYear = 2024

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, report.Discovered)
	assert.Empty(t, store.adds, "a teamless response is never persisted")
	assert.True(t, report.MinYearReached)
}

func TestDiscover_PersistsSeasonDetails(t *testing.T) {
	provider := &stubProvider{seasons: map[int]*upstream.LeagueInfo{
		2025: foundSeason(2025),
	}}
	store := &stubStore{}
	p := newTestProber(store, provider, testConfig())
	p.cfg.FloorYear = 2025

	report, err := p.Discover(t.Context(), testRequest())
	require.NoError(t, err)

	require.Len(t, report.Discovered, 1)
	season := report.Discovered[0]
	assert.Equal(t, "Dynasty Legends", season.LeagueName)
	assert.Equal(t, 2, season.TeamCount)
	assert.Equal(t, "Hawks", season.TeamName, "base team id matched against the season roster")

	require.Len(t, store.adds, 1)
	add := store.adds[0]
	assert.Equal(t, "espn", add.Platform)
	assert.Equal(t, "111", add.LeagueID)
	assert.Equal(t, 2025, add.SeasonYear)
	assert.Equal(t, "3", add.TeamID)
	assert.Equal(t, "Hawks", add.TeamName)
}

func TestDiscover_ContextCancellationStopsWalk(t *testing.T) {
	provider := &stubProvider{seasons: map[int]*upstream.LeagueInfo{
		2025: foundSeason(2025),
	}}
	p := newTestProber(&stubStore{}, provider, testConfig())

	ctx, cancel := context.WithCancel(t.Context())
	p.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	report, err := p.Discover(ctx, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Discovered, 1, "already-persisted seasons are reported, not rolled back")
}
