package protector

import (
	"testing"
	"time"

	"github.com/kalshi-sports/live-engine/pkg/types"
)

func defaultConfig() Config {
	return Config{
		OddsFeedAggressiveExitEnabled: true,
		OddsFeedExitThreshold:         0.10,
		OddsFeedExitThresholdMin:      0.02,
		OddsFeedExitTimeMinutes:       5,

		PyramidingWindow:      5 * time.Minute,
		RequireNoRecentGrowth: true,
		MinHoldTime:           30 * time.Second,

		ProfitProtectionEnabled: true,
		MinTimeRemaining:        10 * time.Second,

		MaxProfitDetectionEnabled: true,
		MaxProfitThreshold:        0.80,

		TrailingStopEnabled:          true,
		MinProfitForTrailingStop:    0.03,
		TrailingStopPct:             0.02,
		TrailingStopTightenThreshold: 0.08,

		MinMarginAboveSettlement: 0.03,
		MinAbsoluteProfit:        0.01,
	}
}

func posAt(ticker string, qty int, price float64, entryTime time.Time) *types.Position {
	return &types.Position{
		MarketTicker: ticker,
		Side:         "yes",
		Stake:        qty,
		EntryPrice:   price,
		EntryTime:    entryTime,
	}
}

func TestCheck_NotHedgedWhenOneSideEmpty(t *testing.T) {
	pr := New(defaultConfig())
	now := time.Now()

	in := Input{
		EventTicker:    "KXNBAGAME-25JUL29LALGSW",
		SideAPositions: []*types.Position{posAt("A", 80, 0.55, now.Add(-time.Hour))},
		SideBPositions: nil,
		SideATicker:    "A",
		SideBTicker:    "B",
		SideASellPrice: 0.50,
		SideBSellPrice: 0.50,
		Now:            now,
	}

	got := pr.Check(in)
	if got.Reason != "not_hedged" {
		t.Errorf("expected not_hedged, got %q", got.Reason)
	}
}

// Scenario S4: hedged qA=80@0.55, qB=60@0.48, 3 minutes left in Q4 (inside
// the 5-minute exit window), side A best bid
// falls to 0.06 (within [0.02, 0.10]) -> rule 1 fires, partial exit side A.
func TestCheck_S4SevenPctAbsoluteExit(t *testing.T) {
	pr := New(defaultConfig())
	now := time.Now()
	entryTime := now.Add(-20 * time.Minute)

	sideABid := 0.06

	in := Input{
		EventTicker:    "KXNBAGAME-25JUL29LALGSW",
		SideAPositions: []*types.Position{posAt("A", 80, 0.55, entryTime)},
		SideBPositions: []*types.Position{posAt("B", 60, 0.48, entryTime)},
		SideATicker:    "A",
		SideBTicker:    "B",
		SideASellPrice: sideABid,
		SideBSellPrice: 0.90,
		SideABid:       &sideABid,
		PeriodClock:    "Q4 3:00",
		MatchName:      "Lakers at Warriors",
		Now:            now,
	}

	got := pr.Check(in)
	if !got.ShouldClose {
		t.Fatalf("expected rule 1 to fire, got %+v", got)
	}
	if got.PartialExitSide != "A" {
		t.Errorf("expected partial exit side A, got %q", got.PartialExitSide)
	}
	if !got.KalshiPriceTriggered {
		t.Error("expected KalshiPriceTriggered=true")
	}
}

func TestCheck_UnbalancedHedgeBlocks(t *testing.T) {
	pr := New(defaultConfig())
	now := time.Now()
	entryTime := now.Add(-time.Hour)

	in := Input{
		EventTicker:    "E",
		SideAPositions: []*types.Position{posAt("A", 100, 0.50, entryTime)},
		SideBPositions: []*types.Position{posAt("B", 10, 0.50, entryTime)},
		SideATicker:    "A",
		SideBTicker:    "B",
		SideASellPrice: 0.50,
		SideBSellPrice: 0.50,
		Now:            now,
	}

	got := pr.Check(in)
	if got.Reason != "unbalanced_hedge" {
		t.Errorf("expected unbalanced_hedge, got %q", got.Reason)
	}
}

func TestCheck_ActivePyramidingBlocks(t *testing.T) {
	cfg := defaultConfig()
	pr := New(cfg)
	now := time.Now()

	in := Input{
		EventTicker:    "E",
		SideAPositions: []*types.Position{posAt("A", 100, 0.50, now.Add(-time.Hour))},
		SideBPositions: []*types.Position{posAt("B", 100, 0.45, now.Add(-10 * time.Second))},
		SideATicker:    "A",
		SideBTicker:    "B",
		SideASellPrice: 0.50,
		SideBSellPrice: 0.50,
		Now:            now,
	}

	got := pr.Check(in)
	if got.Reason != "active_pyramiding" {
		t.Errorf("expected active_pyramiding, got %q", got.Reason)
	}
	if !got.IsPyramiding {
		t.Error("expected IsPyramiding=true")
	}
}

func TestAggregatePositionsOnSide(t *testing.T) {
	now := time.Now()
	positions := []*types.Position{
		posAt("A", 50, 0.40, now),
		posAt("A", 50, 0.60, now),
		posAt("B", 999, 0.10, now), // different ticker, must be excluded
	}

	qty, entry := AggregatePositionsOnSide(positions, "A")
	if qty != 100 {
		t.Errorf("expected qty 100, got %f", qty)
	}
	if diff := entry - 0.50; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected weighted entry 0.50, got %f", entry)
	}
}

func TestCanTrigger7PctExit_NBAGatesToQ4(t *testing.T) {
	if canTrigger7PctExit("Q3 5:00", "Lakers at Warriors", "KXNBAGAME-25JUL29LALGSW", 5) {
		t.Error("expected Q3 to block the 7pct exit for NBA games")
	}
	if !canTrigger7PctExit("Q4 3:00", "Lakers at Warriors", "KXNBAGAME-25JUL29LALGSW", 5) {
		t.Error("expected Q4 with 3 minutes left to allow the 7pct exit")
	}
}
