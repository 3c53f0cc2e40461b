// Package risk consults the hard-gate chain that guards every order
// submission: exposure caps, stop-loss cooldowns, entry windows, game-clock
// gates, and the NBA master switch. Entry and hedge orders clear Gate.Check
// before reaching the exchange client; exit orders do not pass through it.
package risk

import (
	"sync/atomic"
	"time"

	"github.com/kalshi-sports/live-engine/internal/pricing"
)

// Config holds every risk-gate threshold.
type Config struct {
	MaxSpreadAbsolute   float64
	MaxSpreadEVRatio    float64
	MinPrice            float64
	MaxPrice            float64
	MinVolume           float64
	MinKelly            float64

	MaxStakePct          float64 // entry-leg per-side cap, fraction of capital
	HedgeMaxStakePct     float64 // hedge-leg per-side cap
	MaxExposurePerGamePct float64
	MaxTotalExposurePct   float64
	MaxTotalExposureHedgePct float64

	FirstTradeWindow  time.Duration
	FirstEntryMinQty  int

	StopLossCooldownWindow time.Duration

	GameClockEarlyThresholdSeconds int // min elapsed seconds in period 1 before entries allowed
	GameClockLateThresholdSeconds  int // max remaining seconds in final period before entries blocked
}

// Input bundles everything Check needs to evaluate a single candidate order.
type Input struct {
	Now time.Time

	EventTicker  string
	MarketTicker string
	Sport        string // "nba", "nba_w", "soccer_m", "soccer_w", etc.
	IsHedgeLeg   bool
	IsFirstEntry bool

	AskPrice  float64
	BidPrice  float64
	EV        float64
	Kelly     float64
	Volume24h float64

	CandidateQty   int
	CandidatePrice float64

	CurrentSideExposure  float64 // dollars already committed to this side
	CurrentEventExposure float64 // dollars already committed across the event
	CurrentTotalExposure float64 // dollars already committed across all events
	Capital              float64

	EventHasExactlyOneSideOpen bool
	SameSideAsOpenLeg          bool
	PyramidingAllowed          bool

	InStopLossCooldown bool
	SevenPctExited      bool

	FirstDetectionAge time.Time
	GameStateGatePass  bool // true if a game-state-based entry gate already passed

	PeriodClock string // e.g. "Q1 10:30"

	OddsFreshThisTick bool
}

// Decision is the outcome of a gate chain evaluation.
type Decision struct {
	Allowed bool
	Reason  string // which gate vetoed, empty if allowed
	Qty     int    // possibly scaled-down quantity
}

// Gate runs the ordered hard-gate chain. It holds no position or exposure
// state of its own; callers supply a fully-populated Input each call.
type Gate struct {
	cfg     Config
	master  masterSwitch
	cooldown *CooldownStore
}

// New constructs a Gate. Check takes stop-loss cooldown state only from
// Input.InStopLossCooldown and never consults cooldown, which may be nil.
func New(cfg Config, cooldown *CooldownStore) *Gate {
	g := &Gate{cfg: cfg, cooldown: cooldown}
	g.master.enabled.Store(true)
	return g
}

// SetNBATradingEnabled flips the NBA master switch. Monitoring continues
// regardless of this flag; it only gates order submission.
func (g *Gate) SetNBATradingEnabled(enabled bool) {
	g.master.enabled.Store(enabled)
}

// NBATradingEnabled is a lock-free read safe for hot paths.
func (g *Gate) NBATradingEnabled() bool {
	return g.master.enabled.Load()
}

// masterSwitch is a minimal lock-free toggle, the same shape as a
// circuit-breaker's enabled flag but without hysteresis: ENABLE_NBA_TRADING
// is an operator-set boolean, not a value derived from trade history.
type masterSwitch struct {
	enabled atomic.Bool
}

// Check runs every gate in table order, short-circuiting on the first veto.
// If a gate would only allow a smaller quantity it scales the candidate
// down instead of vetoing outright, unless the scaled quantity falls below
// FirstEntryMinQty on a first entry, in which case it vetoes.
func (g *Gate) Check(in Input) Decision {
	qty := in.CandidateQty

	spread := in.AskPrice - in.BidPrice
	if spread < 0 {
		spread = 0
	}
	maxSpread := g.cfg.MaxSpreadAbsolute
	if in.EV > 0 {
		ratioCap := g.cfg.MaxSpreadEVRatio * in.EV
		if ratioCap < maxSpread {
			maxSpread = ratioCap
		}
	}
	if spread > maxSpread {
		return Decision{Reason: "spread_sanity"}
	}

	if in.IsFirstEntry {
		if in.CandidatePrice < g.cfg.MinPrice || in.CandidatePrice > g.cfg.MaxPrice {
			return Decision{Reason: "price_range"}
		}
	}

	if in.Volume24h < g.cfg.MinVolume {
		return Decision{Reason: "volume_floor"}
	}

	if !in.IsHedgeLeg && in.Kelly < g.cfg.MinKelly {
		return Decision{Reason: "kelly_floor"}
	}

	sideCapPct := g.cfg.MaxStakePct
	if in.IsHedgeLeg {
		sideCapPct = g.cfg.HedgeMaxStakePct
	}
	sideCap := sideCapPct * in.Capital
	sideNotional := float64(qty) * in.CandidatePrice
	if in.CurrentSideExposure+sideNotional > sideCap {
		room := sideCap - in.CurrentSideExposure
		if scaled, ok := scaleToNotionalCap(room, in.CandidatePrice, qty, in.IsFirstEntry, g.cfg.FirstEntryMinQty); ok {
			qty = scaled
		} else {
			return Decision{Reason: "per_side_exposure_cap"}
		}
	}

	eventCap := g.cfg.MaxExposurePerGamePct * in.Capital
	eventNotional := float64(qty) * in.CandidatePrice
	if in.CurrentEventExposure+eventNotional > eventCap {
		room := eventCap - in.CurrentEventExposure
		if scaled, ok := scaleToNotionalCap(room, in.CandidatePrice, qty, in.IsFirstEntry, g.cfg.FirstEntryMinQty); ok {
			qty = scaled
		} else {
			return Decision{Reason: "per_event_exposure_cap"}
		}
	}

	totalCapPct := g.cfg.MaxTotalExposurePct
	if in.IsHedgeLeg {
		totalCapPct = g.cfg.MaxTotalExposureHedgePct
	}
	totalCap := totalCapPct * in.Capital
	totalNotional := float64(qty) * in.CandidatePrice
	if in.CurrentTotalExposure+totalNotional > totalCap {
		room := totalCap - in.CurrentTotalExposure
		if scaled, ok := scaleToNotionalCap(room, in.CandidatePrice, qty, in.IsFirstEntry, g.cfg.FirstEntryMinQty); ok {
			qty = scaled
		} else {
			return Decision{Reason: "total_exposure_cap"}
		}
	}

	if in.EventHasExactlyOneSideOpen && in.SameSideAsOpenLeg && !in.PyramidingAllowed {
		return Decision{Reason: "half_hedge_lock"}
	}

	if in.InStopLossCooldown {
		return Decision{Reason: "stop_loss_cooldown"}
	}

	if in.SevenPctExited {
		return Decision{Reason: "seven_pct_exited"}
	}

	if in.IsFirstEntry {
		withinWindow := !in.FirstDetectionAge.IsZero() && in.Now.Sub(in.FirstDetectionAge) <= g.cfg.FirstTradeWindow
		if !withinWindow && !in.GameStateGatePass {
			return Decision{Reason: "entry_time_window"}
		}
	}

	if gated := g.gameClockGate(in); gated {
		return Decision{Reason: "game_clock_gate"}
	}

	if !in.IsHedgeLeg && !in.OddsFreshThisTick {
		return Decision{Reason: "fresh_odds_gate"}
	}

	if isNBASport(in.Sport) && !g.NBATradingEnabled() {
		return Decision{Reason: "nba_master_switch"}
	}

	return Decision{Allowed: true, Qty: qty}
}

// scaleToNotionalCap computes the largest quantity at price that fits
// within the remaining room, returning ok=false if that quantity is zero
// or (for a first entry) falls below minQty.
func scaleToNotionalCap(room, price float64, originalQty int, isFirstEntry bool, minQty int) (int, bool) {
	if room <= 0 || price <= 0 {
		return 0, false
	}
	scaled := int(room / price)
	if scaled > originalQty {
		scaled = originalQty
	}
	if scaled <= 0 {
		return 0, false
	}
	if isFirstEntry && scaled < minQty {
		return 0, false
	}
	return scaled, true
}

// gameClockGate blocks entries too early in period 1 or too late in the
// final period, per sport-specific thresholds.
func (g *Gate) gameClockGate(in Input) bool {
	period, secondsRemaining, ok := pricing.ParsePeriodClock(in.PeriodClock)
	if !ok {
		return false
	}

	finalPeriod := finalPeriodForSport(in.Sport)

	if period == 1 {
		periodLength := periodLengthSeconds(in.Sport)
		elapsed := periodLength - secondsRemaining
		if elapsed < g.cfg.GameClockEarlyThresholdSeconds {
			return true
		}
	}

	if period >= finalPeriod && secondsRemaining < g.cfg.GameClockLateThresholdSeconds {
		return true
	}

	return false
}

func isNBASport(sport string) bool {
	return sport == "nba" || sport == "nba_w"
}

func finalPeriodForSport(sport string) int {
	switch sport {
	case "nba", "nba_w", "basketball", "basketball_w":
		return 4
	case "soccer_m", "soccer_w", "soccer":
		return 2
	default:
		return 4
	}
}

func periodLengthSeconds(sport string) int {
	switch sport {
	case "soccer_m", "soccer_w", "soccer":
		return 45 * 60
	default:
		return 12 * 60
	}
}
