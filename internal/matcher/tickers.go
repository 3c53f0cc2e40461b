// Package matcher resolves an odds-feed event (home team, away team, start
// date) to the exchange's event ticker: candidate-ticker construction,
// cached resolution, and fuzzy-match fallback. The static 500+-entry
// team-name dictionary is out of scope; this package consumes it only
// through the TeamCodeLookup interface.
package matcher

import (
	"regexp"
	"strings"
	"time"
)

// TeamCodeLookup is the injectable boundary onto the (out-of-scope) static
// team-name dictionary: NBA 3-letter codes, NCAA 4-letter codes, and the
// canonical full-name → abbreviation table NormalizeTokens folds into its
// output.
type TeamCodeLookup interface {
	// NBACode returns the 3-letter Kalshi code for a normalized NBA team
	// name (lowercase, parentheticals stripped, whitespace-collapsed).
	NBACode(normalized string) (code string, ok bool)
	// NCAACode returns the 4-letter Kalshi code for a normalized NCAA team
	// name plus a match-confidence tag ("exact", "without_mascot",
	// "prefix_match").
	NCAACode(normalized string) (code, confidence string, ok bool)
	// CanonicalAbbrev maps a full team name to the short token
	// NormalizeTokens substitutes it with, used for fuzzy matching.
	CanonicalAbbrev(fullName string) (abbrev string, ok bool)
}

var parenMarkerRe = regexp.MustCompile(`\s*\([A-Za-z]{1,2}\)\s*`)
var nonLettersRe = regexp.MustCompile(`[^a-z]`)

// isWomens reports whether either team name carries the "(W)" marker the
// source uses to route NCAA tickers to the women's series prefix.
func isWomens(home, away string) bool {
	return strings.Contains(home, "(W)") || strings.Contains(away, "(W)")
}

func normalizeNBATeamName(team string) string {
	if team == "" {
		return ""
	}
	normalized := strings.ToLower(strings.TrimSpace(team))
	normalized = parenMarkerRe.ReplaceAllString(normalized, " ")
	normalized = strings.Join(strings.Fields(normalized), " ")
	return normalized
}

func lettersOnlyTruncate(s string, n int) string {
	clean := nonLettersRe.ReplaceAllString(s, "")
	if len(clean) >= n {
		return strings.ToUpper(clean[:n])
	}
	return strings.ToUpper(clean + strings.Repeat("x", n-len(clean)))
}

// resolveNBACode applies the exact, per-word, and letters-only-truncate
// fallback chain in that order; it has no substring-containment tier.
func resolveNBACode(teamName string, lookup TeamCodeLookup) string {
	normalized := normalizeNBATeamName(teamName)

	if code, ok := lookup.NBACode(normalized); ok {
		return strings.ToUpper(code[:min(3, len(code))])
	}

	for _, word := range strings.Fields(normalized) {
		if code, ok := lookup.NBACode(word); ok {
			return strings.ToUpper(code[:min(3, len(code))])
		}
	}

	// Substring containment fallback has no direct dictionary enumeration
	// through the interface; callers needing it supply a lookup that
	// implements it internally (e.g. scanning its own key set), so this
	// package only guarantees the exact and per-word tiers plus the final
	// letters-only truncate.

	return lettersOnlyTruncate(normalized, 3)
}

// MakeNBAEventTicker builds the Kalshi NBA event ticker
// KXNBAGAME-{date}{away}{home}.
func MakeNBAEventTicker(homeTeam, awayTeam string, eventDate time.Time, lookup TeamCodeLookup) string {
	dateCode := strings.ToUpper(eventDate.Format("06Jan02"))
	homeCode := resolveNBACode(homeTeam, lookup)
	awayCode := resolveNBACode(awayTeam, lookup)
	return "KXNBAGAME-" + dateCode + awayCode + homeCode
}

func normalizeNCAATeamName(team string) string {
	normalized := strings.ToLower(strings.TrimSpace(team))
	normalized = strings.ReplaceAll(normalized, "(w)", " ")
	normalized = strings.ReplaceAll(normalized, "(m)", " ")
	normalized = parenMarkerRe.ReplaceAllString(normalized, " ")
	normalized = strings.ReplaceAll(normalized, "&", " and ")
	normalized = strings.ReplaceAll(normalized, "-", " ")
	normalized = strings.ReplaceAll(normalized, "'", "")
	normalized = strings.ReplaceAll(normalized, "st.", "st")
	normalized = strings.ReplaceAll(normalized, "saint", "st")
	normalized = nonLettersAndSpace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")
	return normalized
}

func nonLettersAndSpace(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// MakeNCAAEventTicker builds the Kalshi NCAA basketball event ticker,
// routing to KXNCAAWBGAME- or KXNCAAMBGAME- based on a "(W)" marker in
// either team name, with a letters-only truncate-to-4 fallback when the
// lookup misses.
func MakeNCAAEventTicker(homeTeam, awayTeam string, eventDate time.Time, lookup TeamCodeLookup) string {
	dateCode := strings.ToUpper(eventDate.Format("06Jan02"))

	homeCode, _, ok := lookup.NCAACode(normalizeNCAATeamName(homeTeam))
	if !ok {
		homeCode = lettersOnlyTruncate(normalizeNCAATeamName(homeTeam), 4)
	}
	awayCode, _, ok := lookup.NCAACode(normalizeNCAATeamName(awayTeam))
	if !ok {
		awayCode = lettersOnlyTruncate(normalizeNCAATeamName(awayTeam), 4)
	}

	prefix := "KXNCAAMBGAME-"
	if isWomens(homeTeam, awayTeam) {
		prefix = "KXNCAAWBGAME-"
	}
	return prefix + dateCode + awayCode + homeCode
}

var setSuffixRe = regexp.MustCompile(`-set\d+`)

// NormalizeEventTicker cleans and normalizes an event ticker so comparisons
// match across odds-feed and exchange sources: lowercased, any "-setN"
// suffix dropped, whitespace/underscores collapsed out.
func NormalizeEventTicker(t string) string {
	if t == "" {
		return ""
	}
	t = strings.ToLower(strings.TrimSpace(t))
	t = setSuffixRe.ReplaceAllString(t, "")
	t = strings.NewReplacer("_", "", " ", "").Replace(t)
	return t
}

// EventKey is the canonical identifier used for comparisons and event locks.
func EventKey(eventTicker string) string {
	return NormalizeEventTicker(eventTicker)
}
