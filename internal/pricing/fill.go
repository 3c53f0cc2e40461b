package pricing

import (
	"math"
	"strconv"
	"strings"
)

// FillProbabilityInputs bundles the quote-book and game-clock context
// FillProbability needs. Score/clock fields are optional (zero values mean
// "unknown") since not every caller has a fresh odds-feed read.
type FillProbabilityInputs struct {
	LimitPrice  float64
	BestBid     float64
	BestAsk     float64
	Liquidity   float64
	IsWomens    bool // "(W)" suffix or KXNBAGAME- prefix without a men's marker
	PeriodClock string
}

// FillProbability estimates the probability a resting BUY-YES order at
// LimitPrice gets filled before the market moves away from it. A limit at
// or above the ask crosses the book and fills immediately (1.0); a limit a
// full spread-width or more below the bid is outside the book on the wrong
// side and will never fill passively (0.0); prices in between scale by
// distance from the touch (the ask), penalized for wide spreads, thin
// liquidity, and end-of-game liquidity collapse.
func FillProbability(in FillProbabilityInputs) float64 {
	spread := in.BestAsk - in.BestBid
	if spread < 0 {
		spread = 0
	}

	// Cent prices are not exact in binary, so bid-spread is compared with a
	// small tolerance: a limit exactly one spread below the bid is at the
	// boundary, not just above it.
	const boundaryTol = 1e-9

	switch {
	case in.LimitPrice >= in.BestAsk:
		return 1.0
	case spread > 0 && in.LimitPrice <= in.BestBid-spread+boundaryTol:
		return 0.0
	case spread == 0 && in.LimitPrice < in.BestBid:
		return 0.0
	}

	// Base probability decays with distance from the ask (the touch for a
	// buy order), scaled by an exponent that stiffens as the quoted spread
	// widens (a wide spread means a limit order deep inside it is less
	// likely to get taken out).
	exponent := 1.5
	switch {
	case spread > 0.05:
		exponent = 2.2
	case spread > 0.02:
		exponent = 1.8
	}

	// The decay spans the full band from the ask down to bid-spread, where
	// the hard 0.0 region above begins, so frac must hit 1 over a distance
	// of two spread widths to keep the curve continuous at that boundary.
	var frac float64
	if spread > 0 {
		frac = clampFrac((in.BestAsk - in.LimitPrice) / (2 * spread))
	}
	prob := math.Pow(1-frac, exponent)

	// Wide-spread penalty: a limit resting in a spread this wide is
	// unlikely to be hit at all regardless of placement.
	if spread > 0.08 {
		prob *= 0.6
	}

	// Thin-book penalty.
	if in.Liquidity > 0 && in.Liquidity < 50 {
		prob *= 0.7
	}

	period, clock, ok := parsePeriodClock(in.PeriodClock)
	if ok && isFinalPeriod(period, in.IsWomens) && clock < 120 {
		// End-of-game liquidity collapse: market makers pull size in the
		// last two minutes of the deciding period.
		prob *= 0.4
	}

	return clampFrac(prob)
}

// clampFrac clamps x into [0,1], unlike clampProb which clamps into the
// open interval (ε, 1-ε) needed for logit math.
func clampFrac(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// isFinalPeriod reports whether period is the last regulation period for
// the sport variant in play: period 2 (second half) for men's soccer-style
// halves, period 4 (fourth quarter) for women's/NBA basketball. The
// distinction is resolved entirely at the caller (IsWomens), since the
// clock string alone cannot disambiguate sport.
func isFinalPeriod(period int, isWomens bool) bool {
	if isWomens {
		return period >= 4
	}
	return period >= 2
}

// ParsePeriodClock exposes parsePeriodClock for callers outside this
// package that need the same period/seconds-remaining parse, such as the
// profit protector's exit-window gating.
func ParsePeriodClock(raw string) (period int, secondsRemaining int, ok bool) {
	return parsePeriodClock(raw)
}

// parsePeriodClock parses a raw clock string such as "Q4 2:15", "H2 10:00",
// "P3 0:45", or "OT 5:00" into a period number and remaining seconds in
// that period. Returns ok=false if the string doesn't match a recognized
// shape.
func parsePeriodClock(raw string) (period int, secondsRemaining int, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, false
	}

	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return 0, 0, false
	}

	periodTok := strings.ToUpper(fields[0])
	clockTok := fields[1]

	switch {
	case strings.HasPrefix(periodTok, "OT"):
		period = 5
	case len(periodTok) >= 2:
		n, err := strconv.Atoi(periodTok[1:])
		if err != nil {
			return 0, 0, false
		}
		period = n
	default:
		return 0, 0, false
	}

	mmss := strings.SplitN(clockTok, ":", 2)
	if len(mmss) != 2 {
		return 0, 0, false
	}
	mm, err1 := strconv.Atoi(mmss[0])
	ss, err2 := strconv.Atoi(mmss[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}

	return period, mm*60 + ss, true
}
