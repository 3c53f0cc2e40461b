package pricing

import "testing"

func TestChooseMakerVsTaker_ForcesTakerOnLowFillProb(t *testing.T) {
	d := ChooseMakerVsTaker(0.60, 0.50, 0.55, 0.10, 10)
	if d.UseMaker {
		t.Errorf("expected taker when fill probability < 0.20, got maker")
	}
}

func TestChooseMakerVsTaker_PrefersMakerOnStrongHighFillProb(t *testing.T) {
	d := ChooseMakerVsTaker(0.70, 0.50, 0.55, 0.90, 10)
	if !d.UseMaker {
		t.Errorf("expected maker with high fill prob and comparable EV, got taker")
	}
}

func TestDecideMakerVsTaker_DeniesMakerWhenEVTooThin(t *testing.T) {
	// Within the tie band but the maker side holds well under 90% of the
	// taker's EV: should not be rescued by a healthy fill probability.
	got := decideMakerVsTaker(0.0015, 0.003, 0.65)
	if got {
		t.Errorf("expected taker when maker EV < 90%% of taker EV, got maker")
	}
}

func TestDecideMakerVsTaker_AllowsMakerAtParityWithStrongFillProb(t *testing.T) {
	got := decideMakerVsTaker(0.0029, 0.003, 0.65)
	if !got {
		t.Errorf("expected maker when within tie band and >=90%% of taker EV with strong fill prob")
	}
}

func TestChooseMakerVsTaker_LargeOrderDiscount(t *testing.T) {
	small := ChooseMakerVsTaker(0.60, 0.50, 0.55, 0.30, 10)
	large := ChooseMakerVsTaker(0.60, 0.50, 0.55, 0.30, 100)
	if large.MakerEV >= small.MakerEV {
		t.Errorf("expected large-order discount to reduce maker EV: small=%f large=%f", small.MakerEV, large.MakerEV)
	}
}
