package engine

import (
	"context"
	"strings"
	"time"

	"github.com/kalshi-sports/live-engine/internal/exchange"
	"github.com/kalshi-sports/live-engine/internal/hedge"
	"github.com/kalshi-sports/live-engine/internal/pricing"
	"github.com/kalshi-sports/live-engine/internal/protector"
	"github.com/kalshi-sports/live-engine/internal/risk"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// runStrategyWorker drives entries, hedges, pyramid adds, and hedged-event
// profit-protector exits on the slower of the engine's two trading ticks.
func (e *Engine) runStrategyWorker(ctx context.Context) {
	ticker := time.NewTicker(e.deps.Config.StrategyTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.safeRun("strategy-tick", func() { e.strategyTick(ctx) })
		}
	}
}

func (e *Engine) strategyTick(ctx context.Context) {
	now := time.Now()
	if err := e.deps.Reconciler.Reconcile(ctx, now); err != nil {
		e.deps.Logger.Warn("pre-tick-reconcile-failed", zap.Error(err))
	}

	events := e.snapshotMatched()
	ActiveMatchedEvents.Set(float64(len(events)))
	e.syncSubscriptions(events)

	for _, me := range events {
		me := me
		e.safePerEvent(me.EventTicker, "strategy-event", func() { e.evaluateEvent(ctx, me, now) })
	}

	if err := e.deps.Reconciler.Reconcile(ctx, time.Now()); err != nil {
		e.deps.Logger.Warn("post-tick-reconcile-failed", zap.Error(err))
	}

	e.housekeeping(events, now)
}

// housekeeping runs the slow position-book maintenance pass at most once a
// minute: reap stale closing flags, drop tracking on positions whose market
// and event both vanished, purge stale live and old settled positions, flag
// very long holds, and bound the first-detection map.
func (e *Engine) housekeeping(events []*matchedEvent, now time.Time) {
	if now.Sub(e.lastHousekeeping) < time.Minute {
		return
	}
	e.lastHousekeeping = now

	e.deps.Store.ReapStaleClosingFlags(now, e.deps.Config.ClosingStaleThreshold)

	activeEvents := make(map[string]bool, len(events))
	activeMarkets := make(map[string]bool, 2*len(events))
	for _, me := range events {
		activeEvents[me.EventTicker] = true
		if me.SideA.Ticker != "" {
			activeMarkets[me.SideA.Ticker] = true
		}
		if me.HasSideB && me.SideB.Ticker != "" {
			activeMarkets[me.SideB.Ticker] = true
		}
	}

	// With nothing matched yet (cold start, discovery still warming up)
	// the active sets are empty and tracking refresh would settle every
	// restored position; defer it until discovery has produced matches.
	if len(activeEvents) > 0 {
		e.deps.Store.RefreshPositionTracking(activeMarkets, activeEvents, e.deps.Config.PreserveManualPositions)
	}

	e.deps.Store.PurgeStalePositions(now, e.deps.Config.StaleLivePositionMaxAge, func(marketTicker string) bool {
		_, fresh, ok := e.deps.Quotes.Get(marketTicker, now, e.deps.Config.QuoteStaleSecs)
		return ok && fresh
	})
	e.deps.Store.PurgeOldSettledPositions(now, e.deps.Config.SettledPositionMaxAge)
	if e.deps.Config.TimeBasedExitsEnabled {
		e.deps.Store.CheckTimeBasedExits(now, e.deps.Config.TimeExitThreshold)
	}
	e.deps.Store.CleanupOldFirstDetectionTimes(activeEvents, now, 48*time.Hour)
	e.deps.Store.PruneEventLocks()

	if err := e.deps.Persister.Save(e.deps.Store); err != nil {
		e.deps.Logger.Warn("periodic-persist-failed", zap.Error(err))
	}
}

// refreshQuotesFromREST refreshes the quote cache for an event's markets
// from a REST market listing, the fallback when the stream cache has gone
// stale for a market the engine still needs to price.
func (e *Engine) refreshQuotesFromREST(ctx context.Context, eventTicker string, now time.Time) {
	markets, err := e.deps.Orders.ListMarketsForEvent(ctx, eventTicker)
	if err != nil {
		e.deps.Logger.Debug("rest-quote-fallback-failed", zap.String("event-ticker", eventTicker), zap.Error(err))
		return
	}
	for _, m := range markets {
		if m.HasQuote() {
			e.deps.Quotes.ApplySnapshot(m.Ticker, m.YesBid, m.YesAsk, m.Liquidity, m.Volume24h, now)
		}
	}
}

// syncSubscriptions pushes the currently-required ticker set (open-position
// markets plus active-match markets) down to the quote stream, so positions
// opened or closed since the last tick adjust the subscription set.
func (e *Engine) syncSubscriptions(events []*matchedEvent) {
	set := make(map[string]bool)
	for _, me := range events {
		if me.SideA.Ticker != "" {
			set[me.SideA.Ticker] = true
		}
		if me.HasSideB && me.SideB.Ticker != "" {
			set[me.SideB.Ticker] = true
		}
	}
	for _, p := range e.deps.Store.GetOpenPositions() {
		set[p.MarketTicker] = true
	}

	required := make([]string, 0, len(set))
	for t := range set {
		required = append(required, t)
	}
	if err := e.deps.WS.SyncSubscriptions(required); err != nil {
		e.deps.Logger.Warn("subscription-sync-failed", zap.Error(err))
	}
}

func (e *Engine) evaluateEvent(ctx context.Context, me *matchedEvent, now time.Time) {
	snap, err := e.deps.OddsAdapter.FetchEvent(ctx, me.EventTicker, me.Odds.ID, me.Odds.HomeTeam, me.Odds.AwayTeam, now)
	if err != nil {
		e.deps.Logger.Debug("no-odds-snapshot-skipping-event", zap.String("event-ticker", me.EventTicker), zap.Error(err))
		return
	}
	periodClock := e.deps.OddsAdapter.PeriodClock(me.EventTicker)
	oddsFresh := snap.IsFresh(now, e.deps.Config.OddsPollInterval*3)

	posA, hasA := e.deps.Store.GetByMarket(me.SideA.Ticker, "yes")
	var posB *types.Position
	hasB := false
	if me.HasSideB {
		posB, hasB = e.deps.Store.GetByMarket(me.SideB.Ticker, "yes")
	}

	if hasA && hasB {
		if closed := e.evaluateHedgedExit(ctx, me, posA, posB, snap, periodClock, now); closed {
			return
		}
		// No exit fired: the hedge may still be undersized relative to the
		// Kelly target, so consider topping either leg up inside its band.
		e.evaluateIncrementalHedge(ctx, me, true, posA, posB, snap, now)
		e.evaluateIncrementalHedge(ctx, me, false, posB, posA, snap, now)
		return
	}

	e.evaluateSide(ctx, me, true, posA, hasA, posB, hasB, snap, periodClock, oddsFresh, now)
	if me.HasSideB {
		e.evaluateSide(ctx, me, false, posB, hasB, posA, hasA, snap, periodClock, oddsFresh, now)
	}
}

// evaluateSide decides whether the candidate side should open a first
// entry, hedge an already-open opposite leg, or add a pyramid leg to a
// winning position, then submits to the risk gate and, if allowed, to the
// exchange. isSideA selects which of me.SideA/me.SideB is the candidate;
// the "own"/"opp" position pointers are pre-resolved by the caller since
// Go structs can't alias two fields generically.
func (e *Engine) evaluateSide(
	ctx context.Context, me *matchedEvent, isSideA bool,
	ownPos *types.Position, hasOwn bool,
	oppPos *types.Position, hasOpp bool,
	snap types.ProbabilitySnapshot, periodClock string, oddsFresh bool, now time.Time,
) {
	market := me.SideA
	trueProb := snap.HomeProb
	if !isSideA {
		market = me.SideB
		trueProb = snap.AwayProb
	}

	// An in-flight close excludes a position from sizing until it resolves
	// or the closing flag is reaped as stale.
	if hasOwn && ownPos.ClosingInProgress && !ownPos.IsClosingStale(now, e.deps.Config.ClosingStaleThreshold) {
		return
	}
	if hasOpp && oppPos.ClosingInProgress && !oppPos.IsClosingStale(now, e.deps.Config.ClosingStaleThreshold) {
		return
	}

	quote, fresh, ok := e.deps.Quotes.Get(market.Ticker, now, e.deps.Config.QuoteStaleSecs)
	if !ok || !fresh {
		e.refreshQuotesFromREST(ctx, me.EventTicker, now)
		quote, fresh, ok = e.deps.Quotes.Get(market.Ticker, now, e.deps.Config.QuoteStaleSecs)
	}
	if !ok || !fresh {
		SkipDecisionsTotal.WithLabelValues("stale_quote").Inc()
		return
	}

	isPyramid := hasOwn && e.deps.Config.PyramidingEnabled
	if hasOwn && !isPyramid {
		return // already holds this side, pyramiding disabled: nothing to do here
	}
	if isPyramid && quote.YesAsk < ownPos.EntryPrice*(1+e.deps.Config.PyramidMinIncrease) {
		SkipDecisionsTotal.WithLabelValues("pyramid_min_increase_not_met").Inc()
		return
	}

	tick := market.TickSize
	if tick <= 0 {
		tick = 0.01
	}
	makerPrice := quote.YesBid + tick
	roundtrip := pricing.FeePerContract(quote.YesAsk, false) + pricing.FeePerContract(quote.YesAsk, true)
	kelly := pricing.KellyFraction(trueProb, quote.YesAsk, roundtrip)
	evBuy := pricing.EVAtBuy(trueProb, quote.YesAsk, false)

	fillProbMaker := pricing.FillProbability(pricing.FillProbabilityInputs{
		LimitPrice:  makerPrice,
		BestBid:     quote.YesBid,
		BestAsk:     quote.YesAsk,
		Liquidity:   quote.Liquidity,
		IsWomens:    isWomensSport(me.Odds.Sport),
		PeriodClock: periodClock,
	})

	isHedgeLeg := hasOpp && !hasOwn
	isFirstEntry := !hasOpp && !hasOwn

	var candidateQty int
	switch {
	case isFirstEntry || isPyramid:
		candidateQty = e.sizeEntry(kelly, quote.YesAsk)
	case isHedgeLeg:
		candidateQty = e.sizeHedge(oppPos, quote.YesAsk, market.TickSize)
	}
	if candidateQty <= 0 {
		SkipDecisionsTotal.WithLabelValues("zero_sized_candidate").Inc()
		return
	}

	route := pricing.ChooseMakerVsTaker(trueProb, makerPrice, quote.YesAsk, fillProbMaker, candidateQty)
	candidatePrice := quote.YesAsk
	if route.UseMaker {
		candidatePrice = makerPrice
	}

	sideExp, eventExp, totalExp := e.exposures(market.Ticker, me.EventTicker)

	firstSeen, hasFirstSeen := e.deps.Store.FirstDetection(me.EventTicker)
	if !hasFirstSeen {
		firstSeen = now
	}

	cooldownActive := e.deps.Cooldowns.InCooldown(me.EventTicker, quote.YesAsk, e.deps.Config.StopLossCooldownWindow, now)
	sevenPctExited := e.deps.Exited.Contains(me.EventTicker)

	// A parseable in-play clock lets a first entry through after the
	// first-trade window has lapsed; the game-clock gate still vetoes
	// too-early and too-late game states on its own.
	_, _, gameStatePass := pricing.ParsePeriodClock(periodClock)

	decision := e.deps.RiskGate.Check(risk.Input{
		Now:                        now,
		EventTicker:                me.EventTicker,
		MarketTicker:               market.Ticker,
		Sport:                      me.Odds.Sport,
		IsHedgeLeg:                 isHedgeLeg,
		IsFirstEntry:               isFirstEntry,
		AskPrice:                   quote.YesAsk,
		BidPrice:                   quote.YesBid,
		EV:                         evBuy,
		Kelly:                      kelly,
		Volume24h:                  quote.Volume24h,
		CandidateQty:               candidateQty,
		CandidatePrice:             candidatePrice,
		CurrentSideExposure:        sideExp,
		CurrentEventExposure:       eventExp,
		CurrentTotalExposure:       totalExp,
		Capital:                    e.deps.Config.Capital,
		EventHasExactlyOneSideOpen: hasOwn || hasOpp,
		SameSideAsOpenLeg:          hasOwn,
		PyramidingAllowed:          e.deps.Config.PyramidingEnabled,
		InStopLossCooldown:         cooldownActive,
		SevenPctExited:             sevenPctExited,
		FirstDetectionAge:          firstSeen,
		GameStateGatePass:          gameStatePass,
		PeriodClock:                periodClock,
		OddsFreshThisTick:          oddsFresh,
	})

	risk.RecordDecision(decision)
	if !decision.Allowed {
		SkipDecisionsTotal.WithLabelValues(decision.Reason).Inc()
		return
	}

	reason := "first_entry"
	switch {
	case isHedgeLeg:
		reason = "hedge"
	case isPyramid:
		reason = "pyramid"
	}

	if mid := (quote.YesBid + quote.YesAsk) / 2; mid > 0 {
		SlippageBps.Observe((candidatePrice - mid) / mid * 10000)
	}

	e.submitOrder(ctx, me, market, decision.Qty, candidatePrice, route.UseMaker, evBuy, reason, !hasOwn)
}

// sizeEntry applies the fractional Kelly sizing bounded by the per-side
// stake cap, converting a capital fraction into a contract quantity at ask.
func (e *Engine) sizeEntry(kelly, askPrice float64) int {
	if askPrice <= 0 {
		return 0
	}
	if e.deps.Config.KellyHardCap > 0 && kelly > e.deps.Config.KellyHardCap {
		kelly = e.deps.Config.KellyHardCap
	}
	if e.deps.Config.FractionalKelly > 0 {
		kelly *= e.deps.Config.FractionalKelly
	}
	notional := kelly * e.deps.Config.Capital
	cap := e.deps.Config.MaxStakePct * e.deps.Config.Capital
	if notional > cap {
		notional = cap
	}
	return int(notional / askPrice)
}

// sizeHedge derives the opposite-side quantity that neutralizes oppPos at
// HedgeTargetROI, falling back to a capped notional sizing when the closed-
// form band is empty (prices too extreme to guarantee the target ROI).
func (e *Engine) sizeHedge(oppPos *types.Position, candidatePrice, tickSize float64) int {
	band := hedge.QtyBounds(float64(oppPos.Stake), oppPos.EntryPrice, candidatePrice, e.deps.Config.HedgeTargetROI, false, e.deps.Config.HedgeIsMaker)
	if qty, ok := hedge.SizeFirstHedge(band); ok {
		return qty
	}
	// sizeHedge is only ever called for a fresh hedge leg (no existing
	// position on this side), so the candidate side's exposure, raw and
	// risk-weighted, is zero; the fallback only caps how much it will add.
	qty, ok := hedge.OverLeveragedFallback(0, oppPos.CostBasis(), 0, oppPos.CostBasis(), candidatePrice)
	if !ok {
		return 0
	}
	cap := int(e.deps.Config.HedgeMaxStakePct * e.deps.Config.Capital / candidatePrice)
	if qty > cap {
		qty = cap
	}
	return qty
}

// exposures sums open-position cost basis scoped to this market, this
// event, and the whole book.
func (e *Engine) exposures(marketTicker, eventTicker string) (side, event, total float64) {
	for _, p := range e.deps.Store.GetOpenPositions() {
		total += p.CostBasis()
		if p.EventTicker == eventTicker {
			event += p.CostBasis()
		}
		if p.MarketTicker == marketTicker {
			side += p.CostBasis()
		}
	}
	return
}

// evaluateHedgedExit runs the profit protector against a fully hedged
// event (both sides open) and executes whatever exit it prescribes. It
// reports whether any close was submitted so the caller can skip hedge
// top-up evaluation on the same tick.
func (e *Engine) evaluateHedgedExit(ctx context.Context, me *matchedEvent, posA, posB *types.Position, snap types.ProbabilitySnapshot, periodClock string, now time.Time) bool {
	if posA.ClosingInProgress && !posA.IsClosingStale(now, e.deps.Config.ClosingStaleThreshold) {
		return false
	}
	if posB.ClosingInProgress && !posB.IsClosingStale(now, e.deps.Config.ClosingStaleThreshold) {
		return false
	}

	quoteA, freshA, okA := e.deps.Quotes.Get(me.SideA.Ticker, now, e.deps.Config.QuoteStaleSecs)
	quoteB, freshB, okB := e.deps.Quotes.Get(me.SideB.Ticker, now, e.deps.Config.QuoteStaleSecs)
	if !okA || !okB || !freshA || !freshB {
		e.refreshQuotesFromREST(ctx, me.EventTicker, now)
		quoteA, freshA, okA = e.deps.Quotes.Get(me.SideA.Ticker, now, e.deps.Config.QuoteStaleSecs)
		quoteB, freshB, okB = e.deps.Quotes.Get(me.SideB.Ticker, now, e.deps.Config.QuoteStaleSecs)
	}
	if !okA || !okB || !freshA || !freshB {
		return false
	}

	homeProb, awayProb := snap.HomeProb, snap.AwayProb
	in := protector.Input{
		EventTicker:      me.EventTicker,
		SideAPositions:   []*types.Position{posA},
		SideBPositions:   []*types.Position{posB},
		SideATicker:      me.SideA.Ticker,
		SideBTicker:      me.SideB.Ticker,
		SideASellPrice:   quoteA.YesBid,
		SideBSellPrice:   quoteB.YesBid,
		SideAAsk:         &quoteA.YesAsk,
		SideBAsk:         &quoteB.YesAsk,
		SideABid:         &quoteA.YesBid,
		SideBBid:         &quoteB.YesBid,
		OddsFeedHomeProb: &homeProb,
		OddsFeedAwayProb: &awayProb,
		PeriodClock:      periodClock,
		MatchName:        me.Odds.HomeTeam + " vs " + me.Odds.AwayTeam,
		Now:              now,
	}

	result := e.deps.Protector.Check(in)
	if !result.ShouldClose {
		return false
	}

	ProfitProtectorExitsTotal.WithLabelValues(result.Reason).Inc()
	e.deps.Logger.Info("profit-protector-exit",
		zap.String("event-ticker", me.EventTicker), zap.String("reason", result.Reason),
		zap.String("partial-exit-side", result.PartialExitSide))

	closeA := result.PartialExitSide == "" || result.PartialExitSide == "A"
	closeB := result.PartialExitSide == "" || result.PartialExitSide == "B"

	// The 7% exit sells at the bid itself; a full profit-protection close
	// undercuts the bid by one tick to maximize fill probability.
	priceA, priceB := quoteA.YesBid, quoteB.YesBid
	if result.PartialExitSide == "" {
		priceA = floorPrice(priceA - tickSizeOrDefault(me, me.SideA.Ticker))
		priceB = floorPrice(priceB - tickSizeOrDefault(me, me.SideB.Ticker))
	}

	if closeA {
		e.submitExit(ctx, me.EventTicker, me.SideA, posA, priceA)
	}
	if closeB {
		e.submitExit(ctx, me.EventTicker, me.SideB, posB, priceB)
	}

	if strings.HasPrefix(result.Reason, "absolute_exit_side_") {
		e.deps.Exited.Mark(me.EventTicker, now)
	}
	return true
}

// evaluateIncrementalHedge considers topping the candidate side of an
// already-hedged event up toward the Kelly target inside the ROI band, or,
// when the band is empty, toward risk-weighted parity with the opposite
// leg. The order is revalidated against the true cost-weighted entry that
// would result before it is submitted.
func (e *Engine) evaluateIncrementalHedge(ctx context.Context, me *matchedEvent, isSideA bool, ownPos, oppPos *types.Position, snap types.ProbabilitySnapshot, now time.Time) {
	if ownPos.ClosingInProgress || oppPos.ClosingInProgress {
		return
	}

	market := me.SideA
	trueProb := snap.HomeProb
	if !isSideA {
		market = me.SideB
		trueProb = snap.AwayProb
	}

	quote, fresh, ok := e.deps.Quotes.Get(market.Ticker, now, e.deps.Config.QuoteStaleSecs)
	if !ok || !fresh {
		SkipDecisionsTotal.WithLabelValues("stale_quote").Inc()
		return
	}
	price := quote.YesAsk
	if price <= 0 || price >= 1 {
		return
	}

	band := hedge.QtyBounds(float64(oppPos.Stake), oppPos.EntryPrice, price, e.deps.Config.HedgeTargetROI, false, e.deps.Config.HedgeIsMaker)

	var incQty int
	if band.Empty() {
		ownRiskWeighted := ownPos.CostBasis() * (1 - trueProb)
		oppRiskWeighted := oppPos.CostBasis() * trueProb
		qty, ok := hedge.OverLeveragedFallback(ownRiskWeighted, oppRiskWeighted, ownPos.CostBasis(), oppPos.CostBasis(), price)
		if !ok {
			SkipDecisionsTotal.WithLabelValues("hedge_band_empty").Inc()
			return
		}
		incQty = qty
	} else {
		kelly := pricing.KellyFraction(trueProb, price, 2*pricing.FeePerContract(price, false))
		if e.deps.Config.KellyHardCap > 0 && kelly > e.deps.Config.KellyHardCap {
			kelly = e.deps.Config.KellyHardCap
		}
		kellyTargetQty := kelly * e.deps.Config.HedgeFractionalKelly * e.deps.Config.Capital / price
		capQty := e.deps.Config.HedgeMaxStakePct * e.deps.Config.Capital / price
		if kellyTargetQty > capQty {
			kellyTargetQty = capQty
		}

		inc, ok := hedge.SizeIncrementalHedge(band, kellyTargetQty, ownPos.Stake)
		if !ok {
			SkipDecisionsTotal.WithLabelValues("hedge_at_max_band").Inc()
			return
		}
		incQty, ok = hedge.RevalidateWithWeightedEntry(
			float64(oppPos.Stake), oppPos.EntryPrice,
			ownPos.Stake, ownPos.EntryPrice,
			ownPos.Stake+inc, price,
			e.deps.Config.HedgeTargetROI, false, e.deps.Config.HedgeIsMaker,
		)
		if !ok {
			SkipDecisionsTotal.WithLabelValues("hedge_revalidation_failed").Inc()
			return
		}
	}
	if incQty <= 0 {
		return
	}

	sideExp, eventExp, totalExp := e.exposures(market.Ticker, me.EventTicker)
	firstSeen, hasFirstSeen := e.deps.Store.FirstDetection(me.EventTicker)
	if !hasFirstSeen {
		firstSeen = now
	}

	decision := e.deps.RiskGate.Check(risk.Input{
		Now:                  now,
		EventTicker:          me.EventTicker,
		MarketTicker:         market.Ticker,
		Sport:                me.Odds.Sport,
		IsHedgeLeg:           true,
		IsFirstEntry:         false,
		AskPrice:             quote.YesAsk,
		BidPrice:             quote.YesBid,
		EV:                   pricing.EVAtBuy(trueProb, price, false),
		Kelly:                pricing.KellyFraction(trueProb, price, 2*pricing.FeePerContract(price, false)),
		Volume24h:            quote.Volume24h,
		CandidateQty:         incQty,
		CandidatePrice:       price,
		CurrentSideExposure:  sideExp,
		CurrentEventExposure: eventExp,
		CurrentTotalExposure: totalExp,
		Capital:              e.deps.Config.Capital,
		InStopLossCooldown:   e.deps.Cooldowns.InCooldown(me.EventTicker, quote.YesAsk, e.deps.Config.StopLossCooldownWindow, now),
		SevenPctExited:       e.deps.Exited.Contains(me.EventTicker),
		FirstDetectionAge:    firstSeen,
		PeriodClock:          e.deps.OddsAdapter.PeriodClock(me.EventTicker),
		OddsFreshThisTick:    true,
	})

	risk.RecordDecision(decision)
	if !decision.Allowed {
		SkipDecisionsTotal.WithLabelValues(decision.Reason).Inc()
		return
	}

	if mid := (quote.YesBid + quote.YesAsk) / 2; mid > 0 {
		SlippageBps.Observe((price - mid) / mid * 10000)
	}

	e.submitOrder(ctx, me, market, decision.Qty, price, false, pricing.EVAtBuy(trueProb, price, false), "hedge_increment", false)
}

// submitExit sells an entire position at sellPrice.
func (e *Engine) submitExit(ctx context.Context, eventTicker string, market types.Market, pos *types.Position, sellPrice float64) {
	e.orderMu.Lock()
	defer e.orderMu.Unlock()

	if !e.deps.Config.LiveOrders {
		e.deps.Logger.Info("dry-run-exit-preview",
			zap.String("market-ticker", market.Ticker), zap.Int("qty", pos.Stake), zap.Float64("price", sellPrice))
		OrdersSubmittedTotal.WithLabelValues("sell", "dry_run").Inc()
		return
	}

	e.deps.Store.MarkClosing(market.Ticker, "yes", time.Now())
	orderID, err := e.deps.Orders.PlaceOrder(ctx, exchange.PlaceOrderRequest{
		MarketTicker: market.Ticker, Side: "yes", Price: sellPrice, Qty: pos.Stake, Action: exchange.ActionSell,
	})
	if err != nil {
		e.deps.Logger.Error("exit-order-failed", zap.String("market-ticker", market.Ticker), zap.Error(err))
		OrdersSubmittedTotal.WithLabelValues("sell", "error").Inc()
		e.deps.Store.ClearClosing(market.Ticker, "yes")
		return
	}

	status, filledQty, err := e.deps.Orders.WaitForFill(ctx, orderID, e.deps.Config.LimitOrderTimeout, false)
	if err != nil {
		e.deps.Logger.Error("exit-wait-for-fill-failed", zap.String("market-ticker", market.Ticker), zap.Error(err))
	}
	if filledQty > 0 {
		e.deps.Store.DecrementStake(market.Ticker, "yes", filledQty)
		e.recordTradeEvent(ctx, eventTicker, market.Ticker, types.TradeEventClose, filledQty, sellPrice, 0, false, "profit_protector_or_stop_loss")
	}
	OrdersSubmittedTotal.WithLabelValues("sell", string(status)).Inc()
	e.deps.Store.ClearClosing(market.Ticker, "yes")
}

// submitOrder places (or, under LIVE_ORDERS=no, previews) a buy order,
// waits for it to resolve, and upserts the fill into the position store.
// Serialized by orderMu so the strategy and stop-loss workers never race a
// submission onto the same market.
func (e *Engine) submitOrder(ctx context.Context, me *matchedEvent, market types.Market, qty int, price float64, isMaker bool, ev float64, reason string, isFirstEntry bool) {
	e.orderMu.Lock()
	defer e.orderMu.Unlock()

	if !e.deps.Config.LiveOrders {
		e.deps.Logger.Info("dry-run-entry-preview",
			zap.String("market-ticker", market.Ticker), zap.Int("qty", qty), zap.Float64("price", price),
			zap.Bool("is-maker", isMaker), zap.String("reason", reason))
		OrdersSubmittedTotal.WithLabelValues("buy", "dry_run").Inc()
		return
	}

	timeout := e.deps.Config.LimitOrderTimeout
	if !isMaker {
		timeout = e.deps.Config.AggressiveTakerTimeout
	}

	orderID, err := e.deps.Orders.PlaceOrder(ctx, exchange.PlaceOrderRequest{
		MarketTicker: market.Ticker, Side: "yes", Price: price, Qty: qty, Action: exchange.ActionBuy,
	})
	if err != nil {
		e.deps.Logger.Error("entry-order-failed", zap.String("market-ticker", market.Ticker), zap.Error(err))
		OrdersSubmittedTotal.WithLabelValues("buy", "error").Inc()
		return
	}

	status, filledQty, err := e.deps.Orders.WaitForFill(ctx, orderID, timeout, false)
	if err != nil {
		e.deps.Logger.Error("entry-wait-for-fill-failed", zap.String("market-ticker", market.Ticker), zap.Error(err))
	}
	OrdersSubmittedTotal.WithLabelValues("buy", string(status)).Inc()
	if filledQty <= 0 {
		return
	}

	now := time.Now()
	e.deps.Store.UpsertFill(market.Ticker, me.EventTicker, "yes", filledQty, price, now)
	if isFirstEntry {
		e.deps.Store.SetEventLock(me.EventTicker, market.Ticker)
	} else if me.HasSideB {
		// A filled hedge leg neutralizes the event; release the
		// half-hedge lock once both sides are open.
		_, openA := e.deps.Store.GetByMarket(me.SideA.Ticker, "yes")
		_, openB := e.deps.Store.GetByMarket(me.SideB.Ticker, "yes")
		if openA && openB {
			e.deps.Store.ClearEventLock(me.EventTicker)
		}
	}
	action := types.TradeEventOpen
	if !isFirstEntry {
		action = types.TradeEventAdd
	}
	e.recordTradeEvent(ctx, me.EventTicker, market.Ticker, action, filledQty, price, ev, isMaker, reason)
}

func (e *Engine) recordTradeEvent(ctx context.Context, eventTicker, marketTicker string, action types.TradeEventAction, qty int, price, ev float64, isMaker bool, reason string) {
	fee := e.deps.FeeSchedule(price, isMaker)
	evt := &types.TradeEvent{
		ID:           marketTicker + "|" + string(action) + "|" + time.Now().Format(time.RFC3339Nano),
		EventTicker:  eventTicker,
		MarketTicker: marketTicker,
		Side:         "yes",
		Action:       action,
		Qty:          qty,
		Price:        price,
		Fee:          fee,
		EV:           ev,
		IsMaker:      isMaker,
		Reason:       reason,
		OccurredAt:   time.Now(),
	}
	if err := e.deps.Storage.StoreTradeEvent(ctx, evt); err != nil {
		e.deps.Logger.Error("store-trade-event-failed", zap.Error(err))
	}
}

// isWomensSport reports whether sport is a women's league/division key,
// used to pick the final-period threshold in fill-probability estimation.
func isWomensSport(sport string) bool {
	s := strings.ToLower(sport)
	return strings.Contains(s, "women") || strings.Contains(s, "wnba") || strings.HasSuffix(s, "_w") || strings.Contains(s, "ncaaw")
}
