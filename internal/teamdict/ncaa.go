package teamdict

import "strings"

// ncaaCodes is rawNCAACodes re-keyed by running every raw alias through the
// same normalization matcher.go applies to odds-feed team names before
// calling NCAACode, so lookups never miss on punctuation the raw source
// happened to spell differently ("a&m" vs "a and m", "ala." vs "ala").
var ncaaCodes = buildNormalizedNCAACodes()

func buildNormalizedNCAACodes() map[string]string {
	out := make(map[string]string, len(rawNCAACodes))
	for raw, code := range rawNCAACodes {
		key := normalizeNCAAKey(raw)
		if key == "" {
			continue
		}
		// Map iteration order is random, so only keep the first writer
		// per normalized key when raw keys collide after folding;
		// rawNCAACodes itself has no duplicate raw keys.
		if _, exists := out[key]; !exists {
			out[key] = code
		}
	}
	return out
}

// normalizeNCAAKey mirrors matcher.normalizeNCAATeamName: lowercase, "&" to
// "and", hyphens/apostrophes stripped, "st."/"saint" folded to "st",
// non-letters dropped, whitespace collapsed.
func normalizeNCAAKey(team string) string {
	s := strings.ToLower(strings.TrimSpace(team))
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "st.", "st")
	s = strings.ReplaceAll(s, "saint", "st")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ncaaCanonical maps a school's common full-name spellings to the short
// token NormalizeTokens substitutes before fuzzy-matching, for the subset of
// programs odds feeds most often spell out in full.
var ncaaCanonical = map[string]string{
	"university of kansas": "kansas", "university of kentucky": "kentucky",
	"duke university": "duke", "university of north carolina": "carolina",
	"university of michigan": "michigan", "michigan state university": "mich st",
	"ohio state university": "ohio st", "university of texas": "texas",
	"university of florida": "florida", "university of alabama": "alabama",
	"university of california los angeles": "ucla",
	"university of southern california": "usc", "university of virginia": "virginia",
	"indiana university": "indiana", "university of iowa": "iowa",
	"university of wisconsin": "wisconsin", "purdue university": "purdue",
	"university of maryland": "maryland", "university of illinois": "illinois",
	"north carolina state university": "nc state", "syracuse university": "syracuse",
	"louisville university": "louisville", "notre dame university": "notre dame",
	"gonzaga university": "gonzaga", "villanova university": "villanova",
	"university of connecticut": "uconn", "baylor university": "baylor",
	"university of houston": "houston", "university of tennessee": "tennessee",
	"university of arkansas": "arkansas", "university of auburn": "auburn",
	"university of oklahoma": "oklahoma", "texas tech university": "texas tech",
	"west virginia university": "west virginia", "louisiana state university": "lsu",
	"university of georgia": "georgia", "florida state university": "florida st",
	"clemson university": "clemson", "georgia tech university": "georgia tech",
	"virginia tech university": "virginia tech", "wake forest university": "wake forest",
	"northwestern university": "northwestern", "university of minnesota": "minnesota",
	"university of nebraska": "nebraska", "rutgers university": "rutgers",
	"university of colorado": "colorado", "university of utah": "utah",
	"university of arizona": "arizona", "university of oregon": "oregon",
	"university of washington": "washington", "stanford university": "stanford",
	"university of california": "california",
}

// NCAACode implements matcher.TeamCodeLookup's exact and prefix_match tiers.
// The without_mascot tier is handled by matcher.SmartTeamLookup, which
// strips the mascot word itself and retries this method.
func (d *Dictionary) NCAACode(normalized string) (string, string, bool) {
	if normalized == "" {
		return "", "", false
	}
	if code, ok := ncaaCodes[normalized]; ok {
		return code, "exact", true
	}

	const minPrefixLen = 5
	if len(normalized) < minPrefixLen {
		return "", "", false
	}
	var bestKey, bestCode string
	for key, code := range ncaaCodes {
		if len(key) < minPrefixLen {
			continue
		}
		if strings.HasPrefix(normalized, key) || strings.HasPrefix(key, normalized) {
			if bestKey == "" || len(key) > len(bestKey) {
				bestKey, bestCode = key, code
			}
		}
	}
	if bestKey != "" {
		return bestCode, "prefix_match", true
	}
	return "", "", false
}
