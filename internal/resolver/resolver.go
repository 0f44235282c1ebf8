// ABOUTME: League resolution: sport filtering, default choice, argument normalization
// ABOUTME: One algorithm shared by the JSON-RPC and REST transports

package resolver

import (
	"time"

	"github.com/2389/league-gateway/internal/leaguestore"
)

// Args are the caller-supplied arguments common to league-scoped tools.
type Args struct {
	LeagueID string `json:"leagueId"`
	SeasonID int    `json:"seasonId"`
	TeamID   string `json:"teamId"`
	Week     int    `json:"week"`
}

// Target is the fully resolved league context a tool call will run against.
type Target struct {
	LeagueID   string
	SeasonYear int
	TeamID     string
	Week       int
}

// FilterBySport returns the leagues whose sport matches, accepting known
// synonyms case-insensitively.
func FilterBySport(leagues []leaguestore.League, sport string) []leaguestore.League {
	var matches []leaguestore.League
	for _, l := range leagues {
		if NormalizeSport(l.Sport) == sport {
			matches = append(matches, l)
		}
	}
	return matches
}

// DefaultLeague chooses the league a call targets when the caller does not
// name a valid one. Precedence: a league in the current season with a team
// already selected, then any league with a team selected, then the first
// match. The store's is_default flag breaks ties within a tier.
func DefaultLeague(matches []leaguestore.League, currentSeason int) leaguestore.League {
	best := matches[0]
	bestScore := -1

	for _, l := range matches {
		score := 0
		switch {
		case l.SeasonYear == currentSeason && l.TeamID != "":
			score = 3
		case l.TeamID != "":
			score = 2
		}
		if score > bestScore || (score == bestScore && l.IsDefault && !best.IsDefault) {
			best = l
			bestScore = score
		}
	}

	return best
}

// ResolveTarget normalizes the caller's arguments against the identity's
// matching leagues:
//
//   - a leagueId outside the resolved set is overridden with the default
//   - a valid leagueId with no seasonId gets that league's stored season
//   - a still-missing seasonId gets the sport's current season
//   - a missing teamId gets the chosen league's stored team, if any
func ResolveTarget(args Args, matches []leaguestore.League, sport string, now time.Time) Target {
	currentSeason := CurrentSeason(sport, now)
	def := DefaultLeague(matches, currentSeason)

	chosen := def
	if args.LeagueID != "" {
		if found, ok := findLeague(matches, args.LeagueID, args.SeasonID); ok {
			chosen = found
		}
	}

	season := args.SeasonID
	if season == 0 {
		season = chosen.SeasonYear
	}
	if season == 0 {
		season = currentSeason
	}

	teamID := args.TeamID
	if teamID == "" {
		teamID = chosen.TeamID
	}

	return Target{
		LeagueID:   chosen.LeagueID,
		SeasonYear: season,
		TeamID:     teamID,
		Week:       args.Week,
	}
}

// findLeague locates a league by id, preferring an exact season match and
// otherwise the most recent stored season for that id.
func findLeague(matches []leaguestore.League, leagueID string, season int) (leaguestore.League, bool) {
	var best leaguestore.League
	found := false
	for _, l := range matches {
		if l.LeagueID != leagueID {
			continue
		}
		if season != 0 && l.SeasonYear == season {
			return l, true
		}
		if !found || l.SeasonYear > best.SeasonYear {
			best = l
			found = true
		}
	}
	return best, found
}
