package hedge

import "testing"

func TestQtyBounds_S2Scenario(t *testing.T) {
	band := QtyBounds(100, 0.40, 0.55, 0.02, false, false)

	if band.Empty() {
		t.Fatalf("expected non-empty band, got %+v", band)
	}

	if band.Low < 88 || band.Low > 100 {
		t.Errorf("expected q_low around 94, got %f", band.Low)
	}
	if band.High < 95 || band.High > 110 {
		t.Errorf("expected q_high around 103, got %f", band.High)
	}

	roiA, roiB := OutcomeROIs(100, 0.40, band.High, 0.55, false, false)
	if roiA < 0.018 {
		t.Errorf("expected roiA >= ~0.02, got %f", roiA)
	}
	if roiB < 0.018 {
		t.Errorf("expected roiB >= ~0.02, got %f", roiB)
	}
}

func TestQtyBounds_EmptyBandWhenPriceTooHigh(t *testing.T) {
	band := QtyBounds(100, 0.80, 0.95, 0.02, false, false)
	if !band.Empty() {
		t.Errorf("expected empty band at extreme opposite price, got %+v", band)
	}
}

func TestSizeFirstHedge(t *testing.T) {
	band := Band{Low: 94, High: 103.4}
	qty, ok := SizeFirstHedge(band)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if qty != 103 {
		t.Errorf("expected 103, got %d", qty)
	}
}

func TestSizeFirstHedge_EmptyBand(t *testing.T) {
	band := Band{Low: 10, High: 5}
	_, ok := SizeFirstHedge(band)
	if ok {
		t.Error("expected ok=false for empty band")
	}
}

func TestSizeIncrementalHedge_ClampsIntoband(t *testing.T) {
	band := Band{Low: 50, High: 100}

	qty, ok := SizeIncrementalHedge(band, 200, 30)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if qty != 70 {
		t.Errorf("expected delta to reach band high (100-30=70), got %d", qty)
	}
}

func TestSizeIncrementalHedge_AlreadyAboveHigh(t *testing.T) {
	band := Band{Low: 50, High: 100}
	_, ok := SizeIncrementalHedge(band, 150, 120)
	if ok {
		t.Error("expected ok=false when already above q_high")
	}
}

func TestOverLeveragedFallback(t *testing.T) {
	qty, ok := OverLeveragedFallback(10, 100, 20, 200, 0.50)
	if !ok {
		t.Fatal("expected fallback to trigger under 0.625x risk-weighted imbalance")
	}
	// Target is 80% of the opposite side's dollar exposure: (160-20)/0.50.
	if qty != 280 {
		t.Errorf("expected balancing qty 280, got %d", qty)
	}
}

func TestOverLeveragedFallback_NoTriggerWhenBalanced(t *testing.T) {
	_, ok := OverLeveragedFallback(80, 100, 80, 100, 0.50)
	if ok {
		t.Error("expected no fallback when within 0.625x threshold")
	}
}

func TestRevalidateWithWeightedEntry_Vetoes(t *testing.T) {
	// Already far above the band top: any top-up clamps back below what's
	// held, so the order must be vetoed.
	_, ok := RevalidateWithWeightedEntry(100, 0.40, 1000, 0.55, 1100, 0.55, 0.02, false, false)
	if ok {
		t.Error("expected veto when the existing holding already exceeds the revalidated band")
	}
}

func TestRevalidateWithWeightedEntry_ClampsAndAccepts(t *testing.T) {
	qty, ok := RevalidateWithWeightedEntry(100, 0.40, 50, 0.55, 120, 0.55, 0.02, false, false)
	if !ok {
		t.Fatal("expected acceptance within the revalidated band")
	}
	if qty <= 0 {
		t.Errorf("expected positive incremental quantity, got %d", qty)
	}

	// The final total must guarantee the target on both outcomes.
	total := 50 + qty
	roiA, roiB := OutcomeROIs(100, 0.40, float64(total), 0.55, false, false)
	if roiA < 0.02-1e-9 || roiB < 0.02-1e-9 {
		t.Errorf("revalidated total %d does not clear the ROI target: roiA=%f roiB=%f", total, roiA, roiB)
	}
}
