// ABOUTME: Static catalog of the gateway's read-only tools
// ABOUTME: Each tool carries its sport family, kind, and JSON input schema

package resolver

import "encoding/json"

// Kind classifies what a tool fetches.
type Kind string

const (
	KindSession   Kind = "session"
	KindStandings Kind = "standings"
	KindRoster    Kind = "roster"
	KindMatchups  Kind = "matchups"
)

// Tool is one catalog entry.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Sport       string
	Kind        Kind
}

// leagueArgsSchema is the shared parameter schema for league-scoped tools.
const leagueArgsSchema = `{"type":"object","properties":{"leagueId":{"type":"string","description":"League to query; defaults to your stored league"},"seasonId":{"type":"integer","description":"Season year; defaults to the league's stored season"}}}`

// catalog is the static tool set. Read-only fetches only; there are no
// write tools.
var catalog = []Tool{
	{
		Name:        "football_session",
		Description: "Describe your stored fantasy football leagues and which one tool calls will target",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		Sport:       "football",
		Kind:        KindSession,
	},
	{
		Name:        "football_standings",
		Description: "Get the standings for a fantasy football league",
		InputSchema: json.RawMessage(leagueArgsSchema),
		Sport:       "football",
		Kind:        KindStandings,
	},
	{
		Name:        "football_roster",
		Description: "Get a team's roster in a fantasy football league",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"leagueId":{"type":"string"},"seasonId":{"type":"integer"},"teamId":{"type":"string","description":"Team to fetch; defaults to your stored team"}}}`),
		Sport:       "football",
		Kind:        KindRoster,
	},
	{
		Name:        "football_matchups",
		Description: "Get weekly head-to-head matchups for a fantasy football league",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"leagueId":{"type":"string"},"seasonId":{"type":"integer"},"week":{"type":"integer","description":"Week number; defaults to the current week"}}}`),
		Sport:       "football",
		Kind:        KindMatchups,
	},
	{
		Name:        "baseball_session",
		Description: "Describe your stored fantasy baseball leagues and which one tool calls will target",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		Sport:       "baseball",
		Kind:        KindSession,
	},
	{
		Name:        "baseball_standings",
		Description: "Get the standings for a fantasy baseball league",
		InputSchema: json.RawMessage(leagueArgsSchema),
		Sport:       "baseball",
		Kind:        KindStandings,
	},
	{
		Name:        "baseball_roster",
		Description: "Get a team's roster in a fantasy baseball league",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"leagueId":{"type":"string"},"seasonId":{"type":"integer"},"teamId":{"type":"string"}}}`),
		Sport:       "baseball",
		Kind:        KindRoster,
	},
}

// Catalog returns the full tool catalog.
func Catalog() []Tool {
	return catalog
}

// LookupTool finds a catalog entry by name.
func LookupTool(name string) (Tool, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
