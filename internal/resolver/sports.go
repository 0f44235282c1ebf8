// ABOUTME: Sport table with synonyms and per-sport season rollover rules
// ABOUTME: "Current season" flips to the new calendar year at the rollover month

package resolver

import (
	"strings"
	"time"
)

// sportInfo describes one supported sport.
type sportInfo struct {
	// rolloverMonth is the month in which the sport's new season becomes
	// the default. Before it, the default season is the previous year.
	rolloverMonth time.Month

	// synonyms are accepted aliases (league codes) for the sport name.
	synonyms []string
}

// sports is the supported sport table. Adding a sport is one entry here
// plus its tool family in the catalog.
var sports = map[string]sportInfo{
	"football": {rolloverMonth: time.June, synonyms: []string{"nfl", "ffl"}},
	"baseball": {rolloverMonth: time.February, synonyms: []string{"mlb", "flb"}},
}

// NormalizeSport maps a sport name or known synonym onto the canonical
// sport name, case-insensitively. Returns "" for unknown sports.
func NormalizeSport(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if _, ok := sports[lowered]; ok {
		return lowered
	}
	for sport, info := range sports {
		for _, syn := range info.synonyms {
			if syn == lowered {
				return sport
			}
		}
	}
	return ""
}

// SupportedSports returns the canonical sport names, sorted.
func SupportedSports() []string {
	names := make([]string, 0, len(sports))
	for name := range sports {
		names = append(names, name)
	}
	// Small fixed set; simple insertion sort keeps it deterministic
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

// CurrentSeason returns the default season year for a sport at the given
// time. Before the sport's rollover month the previous calendar year is
// still the current season.
func CurrentSeason(sport string, now time.Time) int {
	info, ok := sports[sport]
	if !ok {
		return now.Year()
	}
	if now.Month() < info.rolloverMonth {
		return now.Year() - 1
	}
	return now.Year()
}
