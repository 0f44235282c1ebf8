// ABOUTME: Record types exchanged with the external credential/league store
// ABOUTME: Leagues are keyed by (identity, platform, league, sport, season year)

package leaguestore

// League is one stored league membership for an identity. The store owns
// these records; the gateway only reads them and issues idempotent writes.
type League struct {
	Platform   string `json:"platform"`
	LeagueID   string `json:"league_id"`
	Sport      string `json:"sport"`
	SeasonYear int    `json:"season_year"`
	TeamID     string `json:"team_id,omitempty"`
	LeagueName string `json:"league_name,omitempty"`
	TeamName   string `json:"team_name,omitempty"`
	IsDefault  bool   `json:"is_default,omitempty"`
}

// Key returns the composite key fields that uniquely identify the league
// within one identity's records.
func (l League) Key() LeagueKey {
	return LeagueKey{
		Platform:   l.Platform,
		LeagueID:   l.LeagueID,
		Sport:      l.Sport,
		SeasonYear: l.SeasonYear,
	}
}

// LeagueKey is the composite key of a stored league record.
type LeagueKey struct {
	Platform   string `json:"platform"`
	LeagueID   string `json:"league_id"`
	Sport      string `json:"sport"`
	SeasonYear int    `json:"season_year"`
}

// Credentials are the identity's stored upstream provider credentials.
// Opaque to the gateway beyond being forwarded upstream.
type Credentials struct {
	PrimarySecret   string `json:"primary_secret"`
	SecondarySecret string `json:"secondary_secret"`
	OwnerEmail      string `json:"owner_email,omitempty"`
}

// SeasonAdd is the idempotent add-season write. The store answers with a
// conflict status if the record already exists.
type SeasonAdd struct {
	Platform   string `json:"platform"`
	LeagueID   string `json:"league_id"`
	Sport      string `json:"sport"`
	SeasonYear int    `json:"season_year"`
	LeagueName string `json:"league_name,omitempty"`
	TeamID     string `json:"team_id,omitempty"`
	TeamName   string `json:"team_name,omitempty"`
}

// TeamPatch attaches a team to an existing league record.
type TeamPatch struct {
	Key      LeagueKey `json:"key"`
	TeamID   string    `json:"team_id"`
	TeamName string    `json:"team_name,omitempty"`
}
