// Package teamdict is the concrete static team-name dictionary the engine
// wires into matcher.TeamCodeLookup: NBA 3-letter Kalshi codes, NCAA 4-letter
// codes, and the canonical-abbreviation table NormalizeTokens folds full team
// names through.
package teamdict

import "strings"

// nbaCodes maps every alias a feed might send for an NBA team - full name,
// city, nickname, short code - to its lowercase 3-letter Kalshi code.
var nbaCodes = map[string]string{
	"atlanta hawks": "atl", "hawks": "atl", "atlanta": "atl", "atl": "atl",
	"boston celtics": "bos", "celtics": "bos", "boston": "bos", "bos": "bos",
	"brooklyn nets": "bkn", "nets": "bkn", "brooklyn": "bkn", "bkn": "bkn",
	"charlotte hornets": "cha", "hornets": "cha", "charlotte": "cha", "cha": "cha",
	"chicago bulls": "chi", "bulls": "chi", "chicago": "chi", "chi": "chi",
	"cleveland cavaliers": "cle", "cavaliers": "cle", "cleveland": "cle", "cavs": "cle", "cle": "cle",
	"dallas mavericks": "dal", "mavericks": "dal", "dallas": "dal", "mavs": "dal", "dal": "dal",
	"denver nuggets": "den", "nuggets": "den", "denver": "den", "den": "den",
	"detroit pistons": "det", "pistons": "det", "detroit": "det", "det": "det",
	"golden state warriors": "gsw", "warriors": "gsw", "golden state": "gsw", "gsw": "gsw",
	"houston rockets": "hou", "rockets": "hou", "houston": "hou", "hou": "hou",
	"indiana pacers": "ind", "pacers": "ind", "indiana": "ind", "ind": "ind",
	"la clippers": "lac", "los angeles clippers": "lac", "clippers": "lac", "lac": "lac",
	"los angeles lakers": "lal", "lakers": "lal", "la lakers": "lal", "lal": "lal",
	"memphis grizzlies": "mem", "grizzlies": "mem", "memphis": "mem", "mem": "mem",
	"miami heat": "mia", "heat": "mia", "miami": "mia", "mia": "mia",
	"milwaukee bucks": "mil", "bucks": "mil", "milwaukee": "mil", "mil": "mil",
	"minnesota timberwolves": "min", "timberwolves": "min", "wolves": "min", "minnesota": "min", "min": "min",
	"new orleans pelicans": "no", "pelicans": "no", "new orleans": "no", "no": "no",
	"new york knicks": "nyk", "knicks": "nyk", "ny knicks": "nyk", "nyk": "nyk",
	"oklahoma city thunder": "okc", "thunder": "okc", "oklahoma city": "okc", "okc": "okc",
	"orlando magic": "orl", "magic": "orl", "orlando": "orl", "orl": "orl",
	"philadelphia 76ers": "phi", "76ers": "phi", "sixers": "phi", "philadelphia": "phi", "phi": "phi",
	"phoenix suns": "phx", "suns": "phx", "phoenix": "phx", "phx": "phx",
	"portland trail blazers": "por", "trail blazers": "por", "blazers": "por", "portland": "por", "por": "por",
	"sacramento kings": "sac", "kings": "sac", "sacramento": "sac", "sac": "sac",
	"san antonio spurs": "sas", "spurs": "sas", "san antonio": "sas", "sas": "sas",
	"toronto raptors": "tor", "raptors": "tor", "toronto": "tor", "tor": "tor",
	"utah jazz": "uta", "jazz": "uta", "utah": "uta", "uta": "uta",
	"washington wizards": "was", "wizards": "was", "washington": "was", "was": "was", "wsh": "was",
}

// nbaCanonical maps each full NBA team name to the short token
// NormalizeTokens substitutes it with when fuzzy-matching against odds-feed
// names that spell out the franchise in full.
var nbaCanonical = map[string]string{
	"atlanta hawks": "hawks", "boston celtics": "celtics", "brooklyn nets": "nets",
	"charlotte hornets": "hornets", "chicago bulls": "bulls", "cleveland cavaliers": "cavaliers",
	"dallas mavericks": "mavericks", "denver nuggets": "nuggets", "detroit pistons": "pistons",
	"golden state warriors": "warriors", "houston rockets": "rockets", "indiana pacers": "pacers",
	"la clippers": "clippers", "los angeles clippers": "clippers", "los angeles lakers": "lakers",
	"memphis grizzlies": "grizzlies", "miami heat": "heat", "milwaukee bucks": "bucks",
	"minnesota timberwolves": "timberwolves", "new orleans pelicans": "pelicans",
	"new york knicks": "knicks", "oklahoma city thunder": "thunder", "orlando magic": "magic",
	"philadelphia 76ers": "76ers", "phoenix suns": "suns", "portland trail blazers": "blazers",
	"sacramento kings": "kings", "san antonio spurs": "spurs", "toronto raptors": "raptors",
	"utah jazz": "jazz", "washington wizards": "wizards",
}

// NBACode implements matcher.TeamCodeLookup.
func (d *Dictionary) NBACode(normalized string) (string, bool) {
	code, ok := nbaCodes[normalized]
	return code, ok
}

// CanonicalAbbrev implements matcher.TeamCodeLookup. It checks the NBA table
// first, then the NCAA table, since NormalizeTokens uses a single lookup
// across both sports.
func (d *Dictionary) CanonicalAbbrev(fullName string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(fullName))
	if abbrev, ok := nbaCanonical[key]; ok {
		return abbrev, true
	}
	if abbrev, ok := ncaaCanonical[key]; ok {
		return abbrev, true
	}
	return "", false
}
