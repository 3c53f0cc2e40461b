package teamdict

import "testing"

func TestNBACode_ExactAndAlias(t *testing.T) {
	d := New()

	if code, ok := d.NBACode("boston celtics"); !ok || code != "bos" {
		t.Errorf("expected bos, got %q ok=%v", code, ok)
	}
	if code, ok := d.NBACode("celtics"); !ok || code != "bos" {
		t.Errorf("expected bos for nickname alias, got %q ok=%v", code, ok)
	}
	if _, ok := d.NBACode("not a team"); ok {
		t.Error("expected miss for unknown name")
	}
}

func TestNCAACode_ExactMatch(t *testing.T) {
	d := New()

	code, confidence, ok := d.NCAACode("duke")
	if !ok || code != "DUKE" || confidence != "exact" {
		t.Errorf("expected DUKE/exact, got %q %q ok=%v", code, confidence, ok)
	}
}

func TestNCAACode_PunctuationVariants(t *testing.T) {
	d := New()

	// "a&m" normalizes to "a and m", same as the raw "a and m" key.
	code, _, ok := d.NCAACode(normalizeNCAAKey("Alabama A&M"))
	if !ok || code != "AAMU" {
		t.Errorf("expected AAMU, got %q ok=%v", code, ok)
	}
}

func TestNCAACode_Miss(t *testing.T) {
	d := New()
	if _, _, ok := d.NCAACode("zzz nonexistent program zzz"); ok {
		t.Error("expected miss for nonsense input")
	}
}

func TestCanonicalAbbrev(t *testing.T) {
	d := New()

	if abbrev, ok := d.CanonicalAbbrev("Los Angeles Lakers"); !ok || abbrev != "lakers" {
		t.Errorf("expected lakers, got %q ok=%v", abbrev, ok)
	}
	if abbrev, ok := d.CanonicalAbbrev("university of kansas"); !ok || abbrev != "kansas" {
		t.Errorf("expected kansas, got %q ok=%v", abbrev, ok)
	}
	if _, ok := d.CanonicalAbbrev("some random string"); ok {
		t.Error("expected miss")
	}
}
