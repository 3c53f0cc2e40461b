package engine

import (
	"context"
	"math"
	"time"

	"github.com/kalshi-sports/live-engine/internal/exchange"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// runStopLossWorker watches every one-sided open position (no opposite leg
// yet, so no protector coverage) for a hard or soft price breach, on the
// faster of the engine's two trading ticks.
func (e *Engine) runStopLossWorker(ctx context.Context) {
	ticker := time.NewTicker(e.deps.Config.StopLossTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.safeRun("stop-loss-tick", func() { e.stopLossTick(ctx) })
		}
	}
}

func (e *Engine) stopLossTick(ctx context.Context) {
	now := time.Now()
	if err := e.deps.Reconciler.Reconcile(ctx, now); err != nil {
		e.deps.Logger.Warn("pre-exit-tick-reconcile-failed", zap.Error(err))
	}
	for _, me := range e.snapshotMatched() {
		me := me
		e.safePerEvent(me.EventTicker, "stop-loss-event", func() { e.evaluateStopLoss(ctx, me, now) })
	}
}

// evaluateStopLoss checks each side of the event that holds a position
// without an opposite leg open; a fully hedged event is the profit
// protector's territory instead, since it already holds the
// guaranteed-settlement outcome the hedge exists to create.
func (e *Engine) evaluateStopLoss(ctx context.Context, me *matchedEvent, now time.Time) {
	posA, hasA := e.deps.Store.GetByMarket(me.SideA.Ticker, "yes")
	hasB := false
	var posB *types.Position
	if me.HasSideB {
		posB, hasB = e.deps.Store.GetByMarket(me.SideB.Ticker, "yes")
	}

	if hasA && hasB {
		return
	}
	if hasA {
		e.checkOneSidedStopLoss(ctx, me, me.SideA.Ticker, posA, now)
	}
	if hasB {
		e.checkOneSidedStopLoss(ctx, me, me.SideB.Ticker, posB, now)
	}
}

func (e *Engine) checkOneSidedStopLoss(ctx context.Context, me *matchedEvent, marketTicker string, pos *types.Position, now time.Time) {
	if pos.ClosingInProgress && !pos.IsClosingStale(now, e.deps.Config.ClosingStaleThreshold) {
		return
	}

	quote, fresh, ok := e.deps.Quotes.Get(marketTicker, now, e.deps.Config.QuoteStaleSecs)
	if !ok || !fresh {
		return
	}

	currentValue := float64(pos.Stake) * quote.YesBid
	entryValue := float64(pos.Stake) * pos.EntryPrice
	if entryValue <= 0 {
		return
	}
	lossPct := (entryValue - currentValue) / entryValue
	if lossPct <= 0 {
		return
	}

	hard := lossPct >= e.deps.Config.HardStopPct
	soft := false
	if !hard && lossPct >= e.deps.Config.SoftStopPct {
		diff := math.Abs(e.sportsbookProb(me, marketTicker) - quote.YesBid)
		soft = diff <= e.deps.Config.OddsDiffThreshold
	}
	if !hard && !soft {
		return
	}

	// The hold-time and other-side-7%-exit escapes soften only the soft
	// stop; a hard breach fires regardless.
	if soft && !hard {
		if now.Sub(pos.EntryTime) < e.deps.Config.MinHoldTime {
			return
		}
		if e.deps.Exited.Contains(me.EventTicker) {
			// The event already tripped a permanent 7% exit on the
			// other market; hold this leg to settlement instead of
			// compounding exits.
			return
		}
	}

	kind := "soft"
	if hard {
		kind = "hard"
	}
	StopLossFiredTotal.WithLabelValues(kind).Inc()
	e.deps.Logger.Info("stop-loss-firing",
		zap.String("event-ticker", me.EventTicker), zap.String("market-ticker", marketTicker),
		zap.String("kind", kind), zap.Float64("loss-pct", lossPct))

	sellPrice := floorPrice(quote.YesBid - 2*tickSizeOrDefault(me, marketTicker))

	e.orderMu.Lock()
	e.fireStopLoss(ctx, me.EventTicker, marketTicker, pos, sellPrice, now)
	e.orderMu.Unlock()
}

func (e *Engine) fireStopLoss(ctx context.Context, eventTicker, marketTicker string, pos *types.Position, sellPrice float64, now time.Time) {
	if !e.deps.Config.LiveOrders {
		e.deps.Logger.Info("dry-run-stop-loss-preview",
			zap.String("market-ticker", marketTicker), zap.Int("qty", pos.Stake), zap.Float64("price", sellPrice))
		OrdersSubmittedTotal.WithLabelValues("sell", "dry_run").Inc()
		e.deps.Cooldowns.MarkStopLossed(eventTicker, pos.EntryPrice, now)
		return
	}

	e.deps.Store.MarkClosing(marketTicker, "yes", now)
	orderID, err := e.deps.Orders.PlaceOrder(ctx, exchange.PlaceOrderRequest{
		MarketTicker: marketTicker, Side: "yes", Price: sellPrice, Qty: pos.Stake, Action: exchange.ActionSell,
	})
	if err != nil {
		e.deps.Logger.Error("stop-loss-order-failed", zap.String("market-ticker", marketTicker), zap.Error(err))
		OrdersSubmittedTotal.WithLabelValues("sell", "error").Inc()
		e.deps.Store.ClearClosing(marketTicker, "yes")
		return
	}

	status, filledQty, err := e.deps.Orders.WaitForFill(ctx, orderID, e.deps.Config.AggressiveTakerTimeout, false)
	if err != nil {
		e.deps.Logger.Error("stop-loss-wait-for-fill-failed", zap.String("market-ticker", marketTicker), zap.Error(err))
	}
	OrdersSubmittedTotal.WithLabelValues("sell", string(status)).Inc()
	if filledQty > 0 {
		e.deps.Store.DecrementStake(marketTicker, "yes", filledQty)
		e.recordTradeEvent(ctx, eventTicker, marketTicker, types.TradeEventClose, filledQty, sellPrice, 0, false, "stop_loss")
		e.deps.Cooldowns.MarkStopLossed(eventTicker, pos.EntryPrice, now)
	}
	e.deps.Store.ClearClosing(marketTicker, "yes")
}

// sportsbookProb returns the odds-feed fair probability for marketTicker's
// side, used by the soft-stop's odds-agreement check.
func (e *Engine) sportsbookProb(me *matchedEvent, marketTicker string) float64 {
	snap, ok := e.deps.OddsAdapter.Snapshot(me.EventTicker)
	if !ok {
		return 0
	}
	if marketTicker == me.SideA.Ticker {
		return snap.HomeProb
	}
	return snap.AwayProb
}

// floorPrice clamps an aggressive sell price to the exchange's minimum
// one-cent print.
func floorPrice(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	return p
}

func tickSizeOrDefault(me *matchedEvent, marketTicker string) float64 {
	if marketTicker == me.SideA.Ticker && me.SideA.TickSize > 0 {
		return me.SideA.TickSize
	}
	if me.HasSideB && marketTicker == me.SideB.Ticker && me.SideB.TickSize > 0 {
		return me.SideB.TickSize
	}
	return 0.01
}
