// Package protector decides when to take profit on a fully hedged event:
// both sides of an event held with guaranteed (or near-guaranteed) ROI on
// settlement. It runs a strict first-match-wins chain of rules, from the
// 7% absolute exit (a side's bid collapsing into a low price band) down to
// a trailing stop off the position's peak mark-to-market profit.
package protector

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/kalshi-sports/live-engine/internal/pricing"
	"github.com/kalshi-sports/live-engine/pkg/types"
)

// Config holds every profit-protection threshold.
type Config struct {
	OddsFeedAggressiveExitEnabled bool
	OddsFeedExitThreshold         float64 // upper bound of the 7% exit band
	OddsFeedExitThresholdMin      float64 // lower bound of the 7% exit band
	OddsFeedExitTimeMinutes       float64

	PyramidingWindow             time.Duration
	RequireNoRecentGrowth        bool
	MinHoldTime                  time.Duration

	ProfitProtectionEnabled   bool
	MinTimeRemaining          time.Duration

	MaxProfitDetectionEnabled bool
	MaxProfitThreshold        float64

	TrailingStopEnabled          bool
	MinProfitForTrailingStop    float64
	TrailingStopPct             float64
	TrailingStopTightenThreshold float64

	MinMarginAboveSettlement float64
	MinAbsoluteProfit        float64
}

// Result is the outcome of Check.
type Result struct {
	ShouldClose           bool
	Reason                string
	CurrentProfitPct      float64
	PeakProfitPct         float64
	MaxProfitPct          float64
	SettlementROI         float64
	SettlementROIMin      float64
	ROIA, ROIB            float64
	ProbA, ProbB          float64
	IsPyramiding          bool
	PartialExitSide       string // "A", "B", or "" for a full close
	TargetPriceA          *float64
	TargetPriceB          *float64
	KalshiPriceTriggered  bool
}

type peakEntry struct {
	profitPct float64
	updatedAt time.Time
}

// Protector tracks per-event peak mark-to-market profit across ticks, the
// stateful input the trailing stop rule needs.
type Protector struct {
	mu   sync.Mutex
	peak map[string]*peakEntry
	cfg  Config
}

// New creates a Protector.
func New(cfg Config) *Protector {
	return &Protector{peak: make(map[string]*peakEntry), cfg: cfg}
}

// Input bundles everything Check needs for one event's
// exit evaluation.
type Input struct {
	EventTicker string

	SideAPositions []*types.Position
	SideBPositions []*types.Position
	SideATicker    string
	SideBTicker    string

	SideASellPrice float64
	SideBSellPrice float64
	SideAAsk       *float64
	SideBAsk       *float64
	SideABid       *float64
	SideBBid       *float64

	OddsFeedHomeProb *float64
	OddsFeedAwayProb *float64
	PeriodClock      string
	MatchName        string

	Now time.Time
}

// AggregatePositionsOnSide sums stake and computes weighted entry price
// for the non-settled positions in positionsOnSide matching marketTicker.
func AggregatePositionsOnSide(positionsOnSide []*types.Position, marketTicker string) (qty float64, weightedEntry float64) {
	var cost float64
	for _, p := range positionsOnSide {
		if p.Settled || p.MarketTicker != marketTicker {
			continue
		}
		if p.Stake <= 0 || p.EntryPrice <= 0 {
			continue
		}
		qty += float64(p.Stake)
		cost += float64(p.Stake) * p.EntryPrice
	}
	if qty <= 0 {
		return 0, 0
	}
	return qty, cost / qty
}

func hedgeOutcomeROIs(qA, pA, qB, pB float64) (roiA, roiB float64) {
	fA := pricing.FeePerContract(pA, false)
	fB := pricing.FeePerContract(pB, false)
	invested := math.Max(1e-9, qA*pA+qB*pB)

	pnlA := qA*(1-pA-fA) - qB*(pB+fB)
	pnlB := qB*(1-pB-fB) - qA*(pA+fA)
	return pnlA / invested, pnlB / invested
}

// calculateCurrentProfitMTM marks the hedge to current bid/sell prices and
// returns (profit, profitPct, roiA, roiB).
func calculateCurrentProfitMTM(qA, pA, qB, pB, currentA, currentB float64) (profit, profitPct, roiA, roiB float64) {
	entryCost := qA*pA + qB*pB
	if entryCost <= 0 {
		return 0, 0, 0, 0
	}

	currentA = clamp01(currentA)
	currentB = clamp01(currentB)

	fAEntry := pricing.FeePerContract(pA, false)
	fBEntry := pricing.FeePerContract(pB, false)
	fASell := pricing.FeePerContract(currentA, true)
	fBSell := pricing.FeePerContract(currentB, true)

	netProceedsA := qA*currentA - qA*fASell
	netProceedsB := qB*currentB - qB*fBSell
	totalNetProceeds := netProceedsA + netProceedsB

	totalEntryCosts := qA*(pA+fAEntry) + qB*(pB+fBEntry)

	currentProfit := totalNetProceeds - totalEntryCosts
	currentProfitPct := 0.0
	if totalEntryCosts > 0 {
		currentProfitPct = currentProfit / totalEntryCosts
	}

	pnlASettle := qA*(1.0-pA-fAEntry) - qB*(pB+fBEntry)
	pnlBSettle := qB*(1.0-pB-fBEntry) - qA*(pA+fAEntry)
	if totalEntryCosts > 0 {
		roiA = pnlASettle / totalEntryCosts
		roiB = pnlBSettle / totalEntryCosts
	}

	return currentProfit, currentProfitPct, roiA, roiB
}

// calculateTheoreticalMaxProfit returns the best-case settlement profit
// and its percentage of locked capital.
func calculateTheoreticalMaxProfit(qA, pA, qB, pB float64) (maxProfit, maxProfitPct float64) {
	locked := qA*pA + qB*pB
	if locked <= 0 {
		return 0, 0
	}
	fA := pricing.FeePerContract(pA, false)
	fB := pricing.FeePerContract(pB, false)

	pnlA := qA*(1.0-pA-fA) - qB*(pB+fB)
	pnlB := qB*(1.0-pB-fB) - qA*(pA+fA)

	maxProfit = math.Max(pnlA, pnlB)
	return maxProfit, maxProfit / locked
}

// calculateTargetSellPricesForMaxROI derives the pair of sell prices that
// would realize maxSettlementROI if hit simultaneously, proportioning the
// distance to $1 across both legs by their relative contribution to total
// invested capital.
func calculateTargetSellPricesForMaxROI(qA, entryA, qB, entryB, maxSettlementROI float64) (targetA, targetB *float64) {
	entryCost := qA*entryA + qB*entryB
	if entryCost <= 0 || qA <= 0 || qB <= 0 {
		return nil, nil
	}

	totalContracts := qA + qB
	if totalContracts <= 0 {
		return nil, nil
	}

	distanceA := 1.0 - entryA
	distanceB := 1.0 - entryB
	totalWeightedDistance := qA*distanceA + qB*distanceB
	if totalWeightedDistance <= 0 {
		return nil, nil
	}

	extraValueNeeded := entryCost * maxSettlementROI
	proportion := extraValueNeeded / totalWeightedDistance
	proportion = math.Max(0, math.Min(1, proportion))

	ta := clamp01(entryA + proportion*distanceA)
	tb := clamp01(entryB + proportion*distanceB)
	return &ta, &tb
}

// checkIfPositionsGrowingRecently reports whether any position on either
// side was opened within window of now, the pyramiding guard that defers
// profit-taking while the engine is still actively adding to the hedge.
func checkIfPositionsGrowingRecently(sideA, sideB []*types.Position, window time.Duration, now time.Time) (growing bool, lastTradeAge time.Duration) {
	var mostRecent time.Time
	found := false

	for _, p := range append(append([]*types.Position{}, sideA...), sideB...) {
		if p.Settled || p.EntryTime.IsZero() {
			continue
		}
		if !found || p.EntryTime.After(mostRecent) {
			mostRecent = p.EntryTime
			found = true
		}
	}

	if !found {
		return false, 0
	}

	age := now.Sub(mostRecent)
	return age < window, age
}

// canTrigger7PctExit gates the 7% absolute-exit rule to the closing
// minutes of the deciding period: the 4th quarter for NBA/women's games,
// the 2nd half for men's.
func canTrigger7PctExit(periodClock, matchName, eventTicker string, exitTimeMinutes float64) bool {
	if periodClock == "" || matchName == "" {
		return true
	}

	period, secondsRemaining, ok := pricing.ParsePeriodClock(periodClock)
	if !ok {
		return true
	}
	minutesRemaining := float64(secondsRemaining) / 60.0

	isNBA := strings.HasPrefix(eventTicker, "KXNBAGAME-")
	if isNBA {
		return period == 4 && minutesRemaining <= exitTimeMinutes
	}

	isWomens := strings.Contains(matchName, "(W)")
	if isWomens {
		return period == 4 && minutesRemaining <= exitTimeMinutes
	}
	return period == 2 && minutesRemaining <= exitTimeMinutes
}

func clamp01(v float64) float64 {
	return math.Max(0.01, math.Min(0.99, v))
}

// Check evaluates the full profit-protection chain for one hedged event.
// Rules are evaluated in strict order; the first that fires returns
// immediately.
func (pr *Protector) Check(in Input) Result {
	qtyA, entryA := AggregatePositionsOnSide(in.SideAPositions, in.SideATicker)
	qtyB, entryB := AggregatePositionsOnSide(in.SideBPositions, in.SideBTicker)

	if qtyA <= 0 || qtyB <= 0 {
		return Result{ShouldClose: false, Reason: "not_hedged"}
	}

	// Rule 1: 7% absolute exit when a side's bid sits inside the
	// [OddsFeedExitThresholdMin, OddsFeedExitThreshold] band, bypassing
	// every other check.
	if pr.cfg.OddsFeedAggressiveExitEnabled {
		canTrigger := canTrigger7PctExit(in.PeriodClock, in.MatchName, in.EventTicker, pr.cfg.OddsFeedExitTimeMinutes)

		sideABidCheck := in.SideASellPrice
		if in.SideABid != nil {
			sideABidCheck = *in.SideABid
		}
		sideBBidCheck := in.SideBSellPrice
		if in.SideBBid != nil {
			sideBBidCheck = *in.SideBBid
		}

		if canTrigger && sideABidCheck <= pr.cfg.OddsFeedExitThreshold && sideABidCheck >= pr.cfg.OddsFeedExitThresholdMin {
			return Result{
				ShouldClose:          true,
				Reason:               fmt.Sprintf("absolute_exit_side_A_%.1f%%", sideABidCheck*100),
				PartialExitSide:      "A",
				KalshiPriceTriggered: true,
			}
		}
		if canTrigger && sideBBidCheck <= pr.cfg.OddsFeedExitThreshold && sideBBidCheck >= pr.cfg.OddsFeedExitThresholdMin {
			return Result{
				ShouldClose:          true,
				Reason:               fmt.Sprintf("absolute_exit_side_B_%.1f%%", sideBBidCheck*100),
				PartialExitSide:      "B",
				KalshiPriceTriggered: true,
			}
		}
	}

	// Rule 2: hedge-balance sanity. An insufficiently hedged pair can't
	// safely profit-take on either leg alone.
	hedgeRatio := 0.0
	if maxQty := math.Max(qtyA, qtyB); maxQty > 0 {
		hedgeRatio = math.Min(qtyA, qtyB) / maxQty
	}
	if hedgeRatio < 0.30 {
		return Result{ShouldClose: false, Reason: "unbalanced_hedge"}
	}

	// Rule 3: pyramiding freeze. Don't take profit while still building
	// the position.
	isGrowing, _ := checkIfPositionsGrowingRecently(in.SideAPositions, in.SideBPositions, pr.cfg.PyramidingWindow, in.Now)
	if isGrowing && pr.cfg.RequireNoRecentGrowth {
		return Result{ShouldClose: false, Reason: "active_pyramiding", IsPyramiding: true}
	}

	roiA, roiB := hedgeOutcomeROIs(qtyA, entryA, qtyB, entryB)
	settlementROIMin := math.Min(roiA, roiB)

	_, currentProfitPct, _, _ := calculateCurrentProfitMTM(qtyA, entryA, qtyB, entryB, in.SideASellPrice, in.SideBSellPrice)

	totalPrice := in.SideASellPrice + in.SideBSellPrice
	probA, probB := 0.5, 0.5
	if totalPrice > 0 {
		probA = in.SideASellPrice / totalPrice
		probB = in.SideBSellPrice / totalPrice
	}
	weightedSettlementROI := probA*roiA + probB*roiB

	// Rule 4: settlement dominates. Holding to settlement already beats
	// exiting now.
	if currentProfitPct < weightedSettlementROI {
		return Result{
			ShouldClose:      false,
			Reason:           "worse_than_settlement",
			CurrentProfitPct: currentProfitPct,
			SettlementROI:    weightedSettlementROI,
			SettlementROIMin: settlementROIMin,
			ROIA:             roiA,
			ROIB:             roiB,
			ProbA:            probA,
			ProbB:            probB,
		}
	}

	_, maxSettlementROI := calculateTheoreticalMaxProfit(qtyA, entryA, qtyB, entryB)

	peakProfitPct := pr.touchPeak(in.EventTicker, currentProfitPct, in.Now)

	targetA, targetB := calculateTargetSellPricesForMaxROI(qtyA, entryA, qtyB, entryB, maxSettlementROI)

	result := Result{
		ShouldClose:      false,
		CurrentProfitPct: currentProfitPct,
		PeakProfitPct:    peakProfitPct,
		MaxProfitPct:     maxSettlementROI,
		SettlementROI:    weightedSettlementROI,
		SettlementROIMin: settlementROIMin,
		ROIA:             roiA,
		ROIB:             roiB,
		ProbA:            probA,
		ProbB:            probB,
		IsPyramiding:     isGrowing,
		TargetPriceA:     targetA,
		TargetPriceB:     targetB,
	}

	// Hold gate: minimum time since the most recent fill on either leg.
	var latestEntry time.Time
	for _, p := range append(append([]*types.Position{}, in.SideAPositions...), in.SideBPositions...) {
		if p.EntryTime.After(latestEntry) {
			latestEntry = p.EntryTime
		}
	}
	if !latestEntry.IsZero() {
		holdDuration := in.Now.Sub(latestEntry)
		if holdDuration < pr.cfg.MinHoldTime {
			return Result{ShouldClose: false, Reason: "too_soon_after_hedge", CurrentProfitPct: currentProfitPct}
		}
	}

	// Hold gate: minimum game time remaining.
	if pr.cfg.ProfitProtectionEnabled && in.PeriodClock != "" {
		if _, secondsRemaining, ok := pricing.ParsePeriodClock(in.PeriodClock); ok {
			timeRemaining := time.Duration(secondsRemaining) * time.Second
			if timeRemaining < pr.cfg.MinTimeRemaining {
				return Result{
					ShouldClose:      false,
					Reason:           "insufficient_time_remaining",
					CurrentProfitPct: currentProfitPct,
				}
			}
		}
	}

	// Rule 5: theoretical-max-profit trigger.
	if pr.cfg.MaxProfitDetectionEnabled && maxSettlementROI > 0 && !isGrowing {
		maxProfitRatio := currentProfitPct / maxSettlementROI

		if maxProfitRatio >= pr.cfg.MaxProfitThreshold {
			margin := math.Min(pr.cfg.MinMarginAboveSettlement*0.33, 0.01)
			requiredProfit := weightedSettlementROI + margin

			if currentProfitPct >= requiredProfit && currentProfitPct >= pr.cfg.MinAbsoluteProfit {
				result.ShouldClose = true
				result.Reason = fmt.Sprintf("max_profit_%.0f%%_no_pyramiding", maxProfitRatio*100)
				return result
			}
		}
	}

	// Rule 6/7: trailing stop off the peak.
	if pr.cfg.TrailingStopEnabled && currentProfitPct >= pr.cfg.MinProfitForTrailingStop && !isGrowing {
		trailingStopPct := pr.cfg.TrailingStopPct
		if peakProfitPct >= pr.cfg.TrailingStopTightenThreshold {
			trailingStopPct *= 0.5
		}

		dropFromPeak := math.Max(0, peakProfitPct-currentProfitPct)
		if dropFromPeak >= trailingStopPct {
			margin := math.Min(pr.cfg.MinMarginAboveSettlement*0.5, 0.0075)
			requiredProfit := weightedSettlementROI + margin

			if currentProfitPct > requiredProfit && currentProfitPct >= pr.cfg.MinAbsoluteProfit {
				result.ShouldClose = true
				result.Reason = fmt.Sprintf("trailing_stop_drop_%.1f%%_no_pyramiding", dropFromPeak*100)
				return result
			}
		}
	}

	return result
}

// touchPeak updates and returns the recorded peak profit percentage for
// an event, mirroring state._PEAK_PROFITS.
func (pr *Protector) touchPeak(eventTicker string, currentProfitPct float64, now time.Time) float64 {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	e, ok := pr.peak[eventTicker]
	if !ok {
		pr.peak[eventTicker] = &peakEntry{profitPct: currentProfitPct, updatedAt: now}
		return currentProfitPct
	}
	if currentProfitPct > e.profitPct {
		e.profitPct = currentProfitPct
		e.updatedAt = now
	}
	return e.profitPct
}

// ResetPeak clears the tracked peak for an event, called once it fully
// settles or closes.
func (pr *Protector) ResetPeak(eventTicker string) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	delete(pr.peak, eventTicker)
}
