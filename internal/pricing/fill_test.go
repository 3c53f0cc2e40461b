package pricing

import "testing"

func TestFillProbability_CrossingTheBookIsCertain(t *testing.T) {
	p := FillProbability(FillProbabilityInputs{
		LimitPrice: 0.55,
		BestBid:    0.50,
		BestAsk:    0.55,
	})
	if p != 1.0 {
		t.Errorf("expected 1.0 at limit == ask, got %f", p)
	}

	p = FillProbability(FillProbabilityInputs{
		LimitPrice: 0.60,
		BestBid:    0.50,
		BestAsk:    0.55,
	})
	if p != 1.0 {
		t.Errorf("expected 1.0 above ask, got %f", p)
	}
}

func TestFillProbability_OutsideBookIsZero(t *testing.T) {
	// spread = 0.05; bid - spread = 0.45
	p := FillProbability(FillProbabilityInputs{
		LimitPrice: 0.45,
		BestBid:    0.50,
		BestAsk:    0.55,
	})
	if p != 0.0 {
		t.Errorf("expected 0.0 at limit == bid-spread, got %f", p)
	}

	p = FillProbability(FillProbabilityInputs{
		LimitPrice: 0.30,
		BestBid:    0.50,
		BestAsk:    0.55,
	})
	if p != 0.0 {
		t.Errorf("expected 0.0 well below bid-spread, got %f", p)
	}
}

func TestFillProbability_MonotoneInLimitPrice(t *testing.T) {
	prices := []float64{0.46, 0.48, 0.50, 0.52, 0.54, 0.55}
	prev := -1.0
	for _, lp := range prices {
		p := FillProbability(FillProbabilityInputs{
			LimitPrice: lp,
			BestBid:    0.50,
			BestAsk:    0.55,
		})
		if p < prev {
			t.Fatalf("fill probability not monotone: at %.2f got %f after %f", lp, p, prev)
		}
		prev = p
	}
}

func TestFillProbability_EndOfGamePenalty(t *testing.T) {
	base := FillProbability(FillProbabilityInputs{
		LimitPrice: 0.52,
		BestBid:    0.50,
		BestAsk:    0.55,
	})
	late := FillProbability(FillProbabilityInputs{
		LimitPrice:  0.52,
		BestBid:     0.50,
		BestAsk:     0.55,
		IsWomens:    true,
		PeriodClock: "Q4 1:30",
	})
	if late >= base {
		t.Errorf("expected end-of-game penalty to reduce fill probability: base=%f late=%f", base, late)
	}
}

func TestFillProbability_ThinLiquidityPenalty(t *testing.T) {
	base := FillProbability(FillProbabilityInputs{
		LimitPrice: 0.52,
		BestBid:    0.50,
		BestAsk:    0.55,
		Liquidity:  1000,
	})
	thin := FillProbability(FillProbabilityInputs{
		LimitPrice: 0.52,
		BestBid:    0.50,
		BestAsk:    0.55,
		Liquidity:  10,
	})
	if thin >= base {
		t.Errorf("expected thin-liquidity penalty to reduce fill probability: base=%f thin=%f", base, thin)
	}
}

func TestFillProbability_ZeroSpread(t *testing.T) {
	// A locked market (bid == ask): at the touch it's a crossing buy, below
	// it there is no room to rest passively.
	p := FillProbability(FillProbabilityInputs{
		LimitPrice: 0.50,
		BestBid:    0.50,
		BestAsk:    0.50,
	})
	if p != 1.0 {
		t.Errorf("expected 1.0 at the touch on a locked market, got %f", p)
	}

	p = FillProbability(FillProbabilityInputs{
		LimitPrice: 0.45,
		BestBid:    0.50,
		BestAsk:    0.50,
	})
	if p != 0.0 {
		t.Errorf("expected 0.0 below touch on a locked market, got %f", p)
	}
}

func TestParsePeriodClock(t *testing.T) {
	cases := []struct {
		raw        string
		wantPeriod int
		wantSecs   int
		wantOK     bool
	}{
		{"Q4 2:15", 4, 135, true},
		{"H2 10:00", 2, 600, true},
		{"OT 5:00", 5, 300, true},
		{"garbage", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, c := range cases {
		period, secs, ok := ParsePeriodClock(c.raw)
		if ok != c.wantOK {
			t.Errorf("ParsePeriodClock(%q) ok = %v, want %v", c.raw, ok, c.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if period != c.wantPeriod || secs != c.wantSecs {
			t.Errorf("ParsePeriodClock(%q) = (%d, %d), want (%d, %d)", c.raw, period, secs, c.wantPeriod, c.wantSecs)
		}
	}
}
