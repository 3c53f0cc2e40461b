package matcher

import "testing"

func TestNormalizeTokens_StripsPunctuationAndAccents(t *testing.T) {
	tokens := NormalizeTokens("St. John's (A-10)", nil)
	if !tokens["st"] {
		t.Errorf("expected 'st' token, got %v", tokens)
	}
	if !tokens["john"] {
		t.Errorf("expected 'john' token, got %v", tokens)
	}
}

func TestNormalizeTokens_EmptyStringYieldsEmptySet(t *testing.T) {
	tokens := NormalizeTokens("", nil)
	if len(tokens) != 0 {
		t.Errorf("expected empty token set, got %v", tokens)
	}
}

func TestTokenSetMatches_RejectsGeographicModifierOnlyOverlap(t *testing.T) {
	eastTexas := NormalizeTokens("East Texas", nil)
	texas := NormalizeTokens("Texas", nil)

	if tokenSetMatches(eastTexas, texas) {
		t.Errorf("expected 'East Texas' not to match 'Texas' on the geo modifier alone")
	}
}

func TestTokenSetMatches_MatchesOnRealTeamToken(t *testing.T) {
	a := NormalizeTokens("East Texas A&M", nil)
	b := NormalizeTokens("Texas A&M Aggies", nil)

	if !tokenSetMatches(a, b) {
		t.Errorf("expected shared non-geographic token to match")
	}
}

func TestSmartTeamLookup_StripsMascotSuffix(t *testing.T) {
	lookup := fakeLookup{
		codes: map[string]string{
			"duke": "DUKE",
		},
	}
	code, confidence, _ := SmartTeamLookup("Duke Blue Devils", lookup)
	if code != "DUKE" {
		t.Errorf("expected DUKE after stripping the mascot, got %q", code)
	}
	if confidence != "without_mascot" {
		t.Errorf("expected without_mascot confidence, got %q", confidence)
	}
}

type fakeLookup struct {
	codes map[string]string
}

func (f fakeLookup) NCAACode(normalized string) (code, confidence string, ok bool) {
	c, found := f.codes[normalized]
	if !found {
		return "", "", false
	}
	return c, "exact", true
}

func (f fakeLookup) CanonicalAbbrev(normalized string) (string, bool) {
	return "", false
}

func (f fakeLookup) NBACode(normalized string) (code string, ok bool) {
	return "", false
}
