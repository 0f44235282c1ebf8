// ABOUTME: Typed response shapes for the fantasy-data provider
// ABOUTME: Upstream payloads are narrowed into these before any use

package upstream

// LeagueInfo is the provider's basic league response for one season.
type LeagueInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SeasonYear  int    `json:"seasonId"`
	CurrentWeek int    `json:"currentMatchupPeriod,omitempty"`
	Teams       []Team `json:"teams"`
}

// Team is one franchise in a league season.
type Team struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Abbrev    string  `json:"abbrev,omitempty"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Ties      int     `json:"ties,omitempty"`
	PointsFor float64 `json:"pointsFor"`
}

// Roster is one team's player list.
type Roster struct {
	TeamID  string   `json:"teamId"`
	Players []Player `json:"players"`
}

// Player is one rostered player.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"fullName"`
	Position string `json:"position"`
	Status   string `json:"injuryStatus,omitempty"`
	Slot     string `json:"lineupSlot,omitempty"`
}

// Matchup is one head-to-head pairing for a week.
type Matchup struct {
	Week       int     `json:"matchupPeriodId"`
	HomeTeamID string  `json:"homeTeamId"`
	AwayTeamID string  `json:"awayTeamId"`
	HomeScore  float64 `json:"homeScore"`
	AwayScore  float64 `json:"awayScore"`
}
