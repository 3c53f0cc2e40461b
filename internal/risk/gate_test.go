package risk

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		MaxSpreadAbsolute:        0.05,
		MaxSpreadEVRatio:         2.0,
		MinPrice:                 0.10,
		MaxPrice:                 0.90,
		MinVolume:                1000,
		MinKelly:                 0.01,
		MaxStakePct:              0.05,
		HedgeMaxStakePct:         0.08,
		MaxExposurePerGamePct:    0.15,
		MaxTotalExposurePct:      0.50,
		MaxTotalExposureHedgePct: 0.60,
		FirstTradeWindow:         5 * time.Minute,
		FirstEntryMinQty:         5,
		StopLossCooldownWindow:   180 * time.Minute,
		GameClockEarlyThresholdSeconds: 60,
		GameClockLateThresholdSeconds:  30,
	}
}

func baseInput(now time.Time) Input {
	return Input{
		Now:                  now,
		EventTicker:          "KXNBAGAME-25JUL29LALGSW",
		MarketTicker:         "KXNBAGAME-25JUL29LALGSW-LAL",
		Sport:                "nba",
		IsFirstEntry:         true,
		AskPrice:             0.52,
		BidPrice:             0.50,
		EV:                   0.05,
		Kelly:                0.05,
		Volume24h:            5000,
		CandidateQty:         100,
		CandidatePrice:       0.52,
		Capital:              10000,
		FirstDetectionAge:    now,
		OddsFreshThisTick:    true,
		PeriodClock:          "Q2 10:00",
	}
}

func TestCheck_AllowsCleanEntry(t *testing.T) {
	g := New(testConfig(), nil)
	g.SetNBATradingEnabled(true)

	got := g.Check(baseInput(time.Now()))
	if !got.Allowed {
		t.Fatalf("expected allowed, got reason %q", got.Reason)
	}
	if got.Qty != 100 {
		t.Errorf("expected unscaled qty 100, got %d", got.Qty)
	}
}

func TestCheck_SpreadSanityVetoes(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.AskPrice = 0.70
	in.BidPrice = 0.50

	got := g.Check(in)
	if got.Allowed || got.Reason != "spread_sanity" {
		t.Errorf("expected spread_sanity veto, got %+v", got)
	}
}

func TestCheck_PriceRangeVetoesFirstEntry(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.CandidatePrice = 0.05

	got := g.Check(in)
	if got.Allowed || got.Reason != "price_range" {
		t.Errorf("expected price_range veto, got %+v", got)
	}
}

func TestCheck_VolumeFloorVetoes(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.Volume24h = 10

	got := g.Check(in)
	if got.Allowed || got.Reason != "volume_floor" {
		t.Errorf("expected volume_floor veto, got %+v", got)
	}
}

func TestCheck_KellyFloorBypassedForHedgeLeg(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.Kelly = 0
	in.IsHedgeLeg = true
	in.IsFirstEntry = false

	got := g.Check(in)
	if !got.Allowed {
		t.Errorf("expected hedge leg to bypass kelly floor, got reason %q", got.Reason)
	}
}

func TestCheck_KellyFloorVetoesEntryLeg(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.Kelly = 0

	got := g.Check(in)
	if got.Allowed || got.Reason != "kelly_floor" {
		t.Errorf("expected kelly_floor veto, got %+v", got)
	}
}

func TestCheck_PerSideExposureCapScalesDown(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.CurrentSideExposure = 400 // cap = 0.05*10000 = 500, room = 100 at price 0.52 -> qty ~192... adjust qty down
	in.CandidateQty = 1000

	got := g.Check(in)
	if !got.Allowed {
		t.Fatalf("expected scaled allow, got veto %q", got.Reason)
	}
	if got.Qty >= 1000 {
		t.Errorf("expected scaled-down qty, got %d", got.Qty)
	}
}

func TestCheck_PerSideExposureCapVetoesBelowMinQty(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.CurrentSideExposure = 499.9 // almost no room left
	in.CandidateQty = 1000

	got := g.Check(in)
	if got.Allowed || got.Reason != "per_side_exposure_cap" {
		t.Errorf("expected per_side_exposure_cap veto, got %+v", got)
	}
}

func TestCheck_HalfHedgeLockBlocksSameSideWithoutPyramiding(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.EventHasExactlyOneSideOpen = true
	in.SameSideAsOpenLeg = true
	in.PyramidingAllowed = false

	got := g.Check(in)
	if got.Allowed || got.Reason != "half_hedge_lock" {
		t.Errorf("expected half_hedge_lock veto, got %+v", got)
	}
}

func TestCheck_StopLossCooldownVetoes(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.InStopLossCooldown = true

	got := g.Check(in)
	if got.Allowed || got.Reason != "stop_loss_cooldown" {
		t.Errorf("expected stop_loss_cooldown veto, got %+v", got)
	}
}

func TestCheck_SevenPctExitedPermanentBlock(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.SevenPctExited = true

	got := g.Check(in)
	if got.Allowed || got.Reason != "seven_pct_exited" {
		t.Errorf("expected seven_pct_exited veto, got %+v", got)
	}
}

func TestCheck_EntryTimeWindowVetoesStaleFirstDetection(t *testing.T) {
	g := New(testConfig(), nil)
	now := time.Now()
	in := baseInput(now)
	in.FirstDetectionAge = now.Add(-10 * time.Minute)
	in.GameStateGatePass = false

	got := g.Check(in)
	if got.Allowed || got.Reason != "entry_time_window" {
		t.Errorf("expected entry_time_window veto, got %+v", got)
	}
}

func TestCheck_EntryTimeWindowAllowedViaGameStateGate(t *testing.T) {
	g := New(testConfig(), nil)
	now := time.Now()
	in := baseInput(now)
	in.FirstDetectionAge = now.Add(-10 * time.Minute)
	in.GameStateGatePass = true

	got := g.Check(in)
	if !got.Allowed {
		t.Errorf("expected game-state gate to rescue stale first entry, got %q", got.Reason)
	}
}

func TestCheck_GameClockGateBlocksEarlyPeriod1(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.PeriodClock = "Q1 11:50" // only 10 seconds elapsed, below 60s threshold

	got := g.Check(in)
	if got.Allowed || got.Reason != "game_clock_gate" {
		t.Errorf("expected game_clock_gate veto, got %+v", got)
	}
}

func TestCheck_GameClockGateBlocksLateFinalPeriod(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.PeriodClock = "Q4 0:20"

	got := g.Check(in)
	if got.Allowed || got.Reason != "game_clock_gate" {
		t.Errorf("expected game_clock_gate veto, got %+v", got)
	}
}

func TestCheck_FreshOddsGateVetoesNonHedgeEntry(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.OddsFreshThisTick = false

	got := g.Check(in)
	if got.Allowed || got.Reason != "fresh_odds_gate" {
		t.Errorf("expected fresh_odds_gate veto, got %+v", got)
	}
}

func TestCheck_FreshOddsGateBypassedForHedgeLeg(t *testing.T) {
	g := New(testConfig(), nil)
	in := baseInput(time.Now())
	in.OddsFreshThisTick = false
	in.IsHedgeLeg = true
	in.IsFirstEntry = false
	in.Kelly = 0

	got := g.Check(in)
	if !got.Allowed {
		t.Errorf("expected hedge leg to bypass fresh odds gate, got %q", got.Reason)
	}
}

func TestCheck_NBAMasterSwitchBlocksWhenDisabled(t *testing.T) {
	g := New(testConfig(), nil)
	g.SetNBATradingEnabled(false)

	got := g.Check(baseInput(time.Now()))
	if got.Allowed || got.Reason != "nba_master_switch" {
		t.Errorf("expected nba_master_switch veto, got %+v", got)
	}
}

func TestCheck_NBAMasterSwitchDoesNotBlockOtherSports(t *testing.T) {
	g := New(testConfig(), nil)
	g.SetNBATradingEnabled(false)
	in := baseInput(time.Now())
	in.Sport = "soccer_m"
	in.PeriodClock = "H1 30:00"

	got := g.Check(in)
	if !got.Allowed {
		t.Errorf("expected non-NBA sport unaffected by NBA switch, got %q", got.Reason)
	}
}
