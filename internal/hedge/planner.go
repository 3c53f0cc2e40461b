// Package hedge sizes the opposite-side order that neutralizes an existing
// position: the quantity range that guarantees a minimum ROI on both
// outcomes, and the fallback logic for when no such range exists.
package hedge

import (
	"math"

	"github.com/kalshi-sports/live-engine/internal/pricing"
)

// Band is the integer range of opposite-side quantity that guarantees ROI
// >= target on both outcomes. An empty band (High < Low, or either bound
// non-finite) means no profitable hedge exists at the candidate price.
type Band struct {
	Low  float64
	High float64
}

// Empty reports whether the band contains no usable quantity.
func (b Band) Empty() bool {
	return !isFinite(b.Low) || !isFinite(b.High) || b.High < b.Low
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// QtyBounds computes the ROI band for hedging qA contracts held at entry
// price pA with an opposite-side order at price pB, targeting ROI r on
// total invested capital.
//
//	PnL_if_A_wins = qA*(1-pA-fA) - qB*(pB+fB)
//	PnL_if_B_wins = qB*(1-pB-fB) - qA*(pA+fA)
//
// Solving both inequalities PnL_i / L >= r for qB yields the bounds below.
func QtyBounds(qA, pA, pB, targetR float64, isMakerA, isMakerB bool) Band {
	fA := pricing.FeePerContract(pA, isMakerA)
	fB := pricing.FeePerContract(pB, isMakerB)

	denomLow := 1.0 - pB - fB - targetR*pB
	denomHigh := pB*(1.0+targetR) + fB

	if denomLow <= 1e-9 || denomHigh <= 1e-9 {
		return Band{Low: math.NaN(), High: math.NaN()}
	}

	qLow := (qA * (pA*(1.0+targetR) + fA)) / denomLow
	qHigh := (qA * (1.0 - pA - fA - targetR*pA)) / denomHigh

	if !isFinite(qLow) || !isFinite(qHigh) {
		return Band{Low: math.NaN(), High: math.NaN()}
	}

	return Band{Low: math.Max(0, qLow), High: math.Max(0, qHigh)}
}

// OutcomeROIs returns the ROI on total invested capital under each outcome
// for a pair of positions of size qA@pA and qB@pB.
func OutcomeROIs(qA, pA, qB, pB float64, isMakerA, isMakerB bool) (roiA, roiB float64) {
	fA := pricing.FeePerContract(pA, isMakerA)
	fB := pricing.FeePerContract(pB, isMakerB)
	invested := math.Max(1e-9, qA*pA+qB*pB)

	pnlA := qA*(1-pA-fA) - qB*(pB+fB)
	pnlB := qB*(1-pB-fB) - qA*(pA+fA)

	return pnlA / invested, pnlB / invested
}

// SizeFirstHedge picks the order quantity for the first hedge leg on an
// event: the top of the ROI band, which maximizes guaranteed profit.
func SizeFirstHedge(band Band) (qty int, ok bool) {
	if band.Empty() {
		return 0, false
	}
	return int(math.Floor(band.High)), true
}

// SizeIncrementalHedge sizes an additional hedge order when a position
// already exists on the candidate side. It targets the Kelly-suggested
// total quantity (already scaled by the caller's fractional-Kelly and
// hedge-cap policy), clamps into the ROI band, and returns the delta over
// what's already held. If the existing holding already exceeds q_high, no
// further order is placed; profit protection is left to exit it.
func SizeIncrementalHedge(band Band, kellyTargetTotalQty float64, alreadyHeld int) (qty int, ok bool) {
	if band.Empty() {
		return 0, false
	}

	target := kellyTargetTotalQty
	if target < band.Low {
		target = band.Low
	}
	if target > band.High {
		target = band.High
	}

	if float64(alreadyHeld) >= band.High {
		return 0, false
	}

	delta := target - float64(alreadyHeld)
	if delta <= 0 {
		return 0, false
	}
	return int(math.Floor(delta)), true
}

// OverLeveragedFallback handles the case where the ROI band is empty
// because the candidate side is already far enough out of parity with the
// other side that no price on the candidate side can restore a guaranteed
// ROI. The imbalance test uses risk-weighted exposure (dollars committed
// times the probability that side loses): when the candidate side's
// risk-weighted exposure sits below 0.625x the opposite side's, a
// balancing order sized toward 80% of the opposite side's dollar exposure
// is allowed. It never adds to the side that is already over-levered.
func OverLeveragedFallback(candidateRiskWeighted, oppositeRiskWeighted, candidateExposure, oppositeExposure, candidatePrice float64) (qty int, ok bool) {
	const (
		imbalanceThreshold = 0.625
		balanceTarget      = 0.80
	)

	if oppositeExposure <= 0 || oppositeRiskWeighted <= 0 {
		return 0, false
	}
	if candidateRiskWeighted >= imbalanceThreshold*oppositeRiskWeighted {
		return 0, false
	}
	if candidatePrice <= 0 {
		return 0, false
	}

	targetExposure := balanceTarget * oppositeExposure
	addExposure := targetExposure - candidateExposure
	if addExposure <= 0 {
		return 0, false
	}

	return int(math.Floor(addExposure / candidatePrice)), true
}

// RevalidateWithWeightedEntry recomputes the ROI band using the true
// cost-weighted hedge-side entry price that would result from topping an
// existing holding of existingQty at existingEntry up to targetTotalQty at
// candidatePrice, then clamps the total into that tighter band. Existing
// fills at other prices shift the real cost basis, so the band computed at
// the live price alone can overstate what the hedge guarantees. Returns
// the incremental order quantity, or ok=false (veto) when no total in the
// revalidated band improves on what's already held.
func RevalidateWithWeightedEntry(oppQty, oppEntry float64, existingQty int, existingEntry float64, targetTotalQty int, candidatePrice, targetR float64, isMakerA, isMakerB bool) (qty int, ok bool) {
	if targetTotalQty <= existingQty {
		return 0, false
	}

	weightedAt := func(total int) float64 {
		inc := total - existingQty
		cost := float64(existingQty)*existingEntry + float64(inc)*candidatePrice
		return cost / float64(total)
	}

	band := QtyBounds(oppQty, oppEntry, weightedAt(targetTotalQty), targetR, isMakerA, isMakerB)
	if band.Empty() {
		return 0, false
	}

	low, high := int(math.Ceil(band.Low)), int(math.Floor(band.High))
	clamped := targetTotalQty
	if clamped > high {
		clamped = high
	}
	if clamped < low {
		clamped = low
	}
	if clamped <= existingQty {
		return 0, false
	}

	// The clamp moved the weighted entry, so confirm both outcomes still
	// clear the target with the final quantity.
	finalEntry := weightedAt(clamped)
	reband := QtyBounds(oppQty, oppEntry, finalEntry, targetR, isMakerA, isMakerB)
	if reband.Empty() || float64(clamped) < reband.Low-1e-9 || float64(clamped) > reband.High+1e-9 {
		return 0, false
	}
	roiA, roiB := OutcomeROIs(oppQty, oppEntry, float64(clamped), finalEntry, isMakerA, isMakerB)
	if roiA < targetR-1e-9 || roiB < targetR-1e-9 {
		return 0, false
	}

	return clamped - existingQty, true
}
