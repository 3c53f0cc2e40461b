package matcher

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	twoLetterParenRe = regexp.MustCompile(`\([A-Za-z]{2}\)`)
	nonWordRe        = regexp.MustCompile(`[^a-z\s]`)
)

// stripAccents drops combining diacritic marks (Unicode category Mn).
// Precomposed accented letters such as "é" are not decomposed and are kept.
func stripAccents(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func cleanTeamString(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = twoLetterParenRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "(", " ")
	s = strings.ReplaceAll(s, ")", " ")
	s = strings.ReplaceAll(s, "st.", "st")
	s = strings.ReplaceAll(s, "saint", "st")
	s = nonWordRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeTokens normalizes a team-name string into a comparable token
// set for fuzzy matching: lowercased, accent/punctuation-stripped,
// "(XX)" conference markers removed, and any full team name the lookup
// recognizes folded to its canonical abbreviation before tokenizing.
func NormalizeTokens(s string, lookup TeamCodeLookup) map[string]bool {
	out := make(map[string]bool)
	if s == "" {
		return out
	}

	cleaned := cleanTeamString(stripAccents(s))
	if lookup != nil {
		if abbrev, ok := lookup.CanonicalAbbrev(cleaned); ok {
			cleaned = strings.ToLower(abbrev)
		}
	}

	for _, tok := range strings.Fields(cleaned) {
		out[tok] = true
	}
	return out
}

// mascots is the list of common NCAA mascot words smart_team_lookup strips
// before retrying a dictionary lookup.
var mascots = map[string]bool{
	"tigers": true, "bulldogs": true, "wildcats": true, "eagles": true,
	"bears": true, "panthers": true, "lions": true, "hawks": true,
	"falcons": true, "cougars": true, "huskies": true, "terriers": true,
	"cardinals": true, "spartans": true, "trojans": true, "aggies": true,
	"longhorns": true, "wolverines": true, "buckeyes": true,
	"razorbacks": true, "gators": true, "seminoles": true,
	"hurricanes": true, "gamecocks": true, "orange": true, "hoyas": true,
	"jayhawks": true, "sooners": true, "cornhuskers": true,
	"volunteers": true, "crimson": true, "bruins": true, "rebels": true,
	"commodores": true, "vols": true, "knights": true, "mustangs": true,
	"rams": true, "badgers": true, "owls": true, "bison": true,
	"broncos": true, "retrievers": true, "pirates": true, "raiders": true,
	"blue devils": true,
}

var namesWordRe = regexp.MustCompile(`[^A-Za-z ]`)

// KalshiKey3 returns candidate 3-letter player-name keys, last-name-first.
func KalshiKey3(name string) []string {
	if name == "" {
		return nil
	}
	cleaned := namesWordRe.ReplaceAllString(stripAccents(name), " ")
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return nil
	}

	var candidates []string
	candidates = append(candidates, strings.ToUpper(truncate(tokens[len(tokens)-1], 3)))
	if len(tokens) >= 2 {
		candidates = append(candidates, strings.ToUpper(truncate(tokens[len(tokens)-2], 3)))
		candidates = append(candidates, strings.ToUpper(truncate(tokens[0], 3)))
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// SmartTeamLookup intelligently matches a team name to the dictionary,
// handling mascot-name suffixes and prefix matches.
// The exact/without_mascot tiers need only the cleaned
// name; the prefix_match tier needs the dictionary's key set, surfaced via
// TeamCodeLookup.NCAACode handling its own internal scan; this function
// applies the mascot-stripping tier itself and otherwise defers to the
// lookup.
func SmartTeamLookup(teamName string, lookup TeamCodeLookup) (code, confidence, normalized string) {
	if teamName == "" {
		return "", "fallback", ""
	}

	cleaned := teamName
	cleaned = strings.ReplaceAll(cleaned, "(W)", " ")
	cleaned = strings.ReplaceAll(cleaned, "(w)", " ")
	cleaned = strings.ReplaceAll(cleaned, "(M)", " ")
	cleaned = strings.ReplaceAll(cleaned, "(m)", " ")
	cleaned = strings.ReplaceAll(cleaned, "'", "")
	normalized = cleanTeamString(cleaned)

	if c, conf, ok := lookup.NCAACode(normalized); ok {
		return c, conf, normalized
	}

	words := strings.Fields(normalized)
	if len(words) > 1 && mascots[words[len(words)-1]] {
		withoutMascot := strings.Join(words[:len(words)-1], " ")
		if c, _, ok := lookup.NCAACode(withoutMascot); ok {
			return c, "without_mascot", withoutMascot
		}
	}
	if len(words) > 2 {
		lastTwo := words[len(words)-2] + " " + words[len(words)-1]
		if mascots[lastTwo] {
			withoutMascot := strings.Join(words[:len(words)-2], " ")
			if c, _, ok := lookup.NCAACode(withoutMascot); ok {
				return c, "without_mascot", withoutMascot
			}
		}
	}

	return "", "fallback", normalized
}

// sortedKeys is a small helper used by fuzzy-match callers that need a
// deterministic iteration order over a token set (e.g. for logging).
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
