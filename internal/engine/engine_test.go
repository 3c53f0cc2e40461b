package engine

import (
	"testing"
	"time"

	"github.com/kalshi-sports/live-engine/internal/hedge"
	"github.com/kalshi-sports/live-engine/internal/positions"
	"github.com/kalshi-sports/live-engine/pkg/config"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	store := positions.New(zap.NewNop())
	cfg := &config.Config{
		Capital:          10000,
		MaxStakePct:      0.02,
		HedgeMaxStakePct: 0.04,
		HedgeTargetROI:   0.04,
		HedgeIsMaker:     false,
	}
	return New(Deps{
		Logger: zap.NewNop(),
		Config: cfg,
		Store:  store,
	})
}

func TestSizeEntry_BoundedByStakeCap(t *testing.T) {
	e := testEngine(t)

	// Kelly alone would demand far more than the 2% stake cap allows.
	qty := e.sizeEntry(0.9, 0.50)
	maxQty := int(e.deps.Config.MaxStakePct * e.deps.Config.Capital / 0.50)
	if qty != maxQty {
		t.Errorf("expected qty capped at %d, got %d", maxQty, qty)
	}
}

func TestSizeEntry_ZeroKellyYieldsZero(t *testing.T) {
	e := testEngine(t)
	if qty := e.sizeEntry(0, 0.50); qty != 0 {
		t.Errorf("expected 0 contracts at zero edge, got %d", qty)
	}
}

func TestSizeEntry_ZeroAskIsSafe(t *testing.T) {
	e := testEngine(t)
	if qty := e.sizeEntry(0.5, 0); qty != 0 {
		t.Errorf("expected 0 contracts at zero ask price, got %d", qty)
	}
}

func TestSizeHedge_UsesClosedFormBandWhenAvailable(t *testing.T) {
	e := testEngine(t)
	opp := &types.Position{Stake: 100, EntryPrice: 0.40}

	qty := e.sizeHedge(opp, 0.55, 0.01)

	band := hedge.QtyBounds(100, 0.40, 0.55, 0.04, false, false)
	wantQty, ok := hedge.SizeFirstHedge(band)
	if !ok {
		t.Fatal("expected a non-empty band for this fixture")
	}
	if qty != wantQty {
		t.Errorf("expected %d contracts from the closed-form band, got %d", wantQty, qty)
	}
}

func TestSizeHedge_FallsBackWhenBandEmpty(t *testing.T) {
	e := testEngine(t)
	// Opposite leg bought at an extreme price makes the target-ROI band
	// empty; sizeHedge must still return a usable fallback quantity.
	opp := &types.Position{Stake: 100, EntryPrice: 0.92}

	qty := e.sizeHedge(opp, 0.95, 0.01)
	if qty <= 0 {
		t.Error("expected a positive fallback quantity, got 0")
	}
}

func TestExposures_SumsAcrossScopeCorrectly(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	e.deps.Store.UpsertFill("KXNBAGAME-A-BOS", "KXNBAGAME-A", "yes", 100, 0.40, now)
	e.deps.Store.UpsertFill("KXNBAGAME-A-LAL", "KXNBAGAME-A", "yes", 80, 0.55, now)
	e.deps.Store.UpsertFill("KXNBAGAME-B-NYK", "KXNBAGAME-B", "yes", 50, 0.30, now)

	side, event, total := e.exposures("KXNBAGAME-A-BOS", "KXNBAGAME-A")

	if side != 40 {
		t.Errorf("expected side exposure 40, got %f", side)
	}
	if event != 40+80*0.55 {
		t.Errorf("expected event exposure %f, got %f", 40+80*0.55, event)
	}
	wantTotal := 40 + 80*0.55 + 50*0.30
	if total != wantTotal {
		t.Errorf("expected total exposure %f, got %f", wantTotal, total)
	}
}

func TestIsWomensSport(t *testing.T) {
	cases := map[string]bool{
		"basketball_nba":   false,
		"basketball_wnba":  true,
		"basketball_ncaab": false,
		"basketball_ncaaw": true,
		"soccer_epl_w":     true,
	}
	for sport, want := range cases {
		if got := isWomensSport(sport); got != want {
			t.Errorf("isWomensSport(%q) = %v, want %v", sport, got, want)
		}
	}
}
