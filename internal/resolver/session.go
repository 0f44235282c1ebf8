// ABOUTME: The "describe my session" tool: always succeeds for an authenticated caller
// ABOUTME: Produces guidance text the calling AI can relay or act on

package resolver

import (
	"fmt"
	"strings"
	"time"

	"github.com/2389/league-gateway/internal/leaguestore"
)

// sessionResult describes the caller's stored leagues for one sport. It
// never fails: with zero matching leagues it explains what was found
// instead, and with several it asks the caller to disambiguate.
func sessionResult(all, matches []leaguestore.League, sport string, now time.Time) Result {
	switch {
	case len(all) == 0:
		return Result{Content: "No leagues are stored for your account yet. Connect your fantasy account through the onboarding page to get started."}

	case len(matches) == 0:
		others := otherSports(all)
		return Result{Content: fmt.Sprintf(
			"No %s leagues are stored for your account; found leagues for: %s.",
			sport, strings.Join(others, ", "))}

	case len(matches) == 1:
		l := matches[0]
		var b strings.Builder
		fmt.Fprintf(&b, "You have one %s league: %s (id %s, season %d).",
			sport, displayName(l), l.LeagueID, l.SeasonYear)
		if l.TeamID != "" {
			fmt.Fprintf(&b, " Your team is %s (id %s).", displayTeam(l), l.TeamID)
		}
		b.WriteString(" Tool calls will target this league by default.")
		return Result{Content: b.String()}

	default:
		def := DefaultLeague(matches, CurrentSeason(sport, now))
		var b strings.Builder
		fmt.Fprintf(&b, "You have %d %s leagues. Ask the user which league to use:\n", len(matches), sport)
		for _, l := range matches {
			fmt.Fprintf(&b, "- %s (id %s, season %d)", displayName(l), l.LeagueID, l.SeasonYear)
			if l.TeamID != "" {
				fmt.Fprintf(&b, " — team %s", displayTeam(l))
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Without a leagueId, calls default to %s (id %s, season %d).",
			displayName(def), def.LeagueID, def.SeasonYear)
		return Result{Content: b.String()}
	}
}

// otherSports lists the distinct sports present in the records, sorted.
func otherSports(leagues []leaguestore.League) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, l := range leagues {
		name := NormalizeSport(l.Sport)
		if name == "" {
			name = strings.ToLower(l.Sport)
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

func displayName(l leaguestore.League) string {
	if l.LeagueName != "" {
		return l.LeagueName
	}
	return "league " + l.LeagueID
}

func displayTeam(l leaguestore.League) string {
	if l.TeamName != "" {
		return l.TeamName
	}
	return "team " + l.TeamID
}
