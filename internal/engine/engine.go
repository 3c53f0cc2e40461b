// Package engine runs the three cooperative workers that make up the live
// trading loop: a strategy worker that opens, hedges, and pyramids
// positions; a stop-loss worker that watches one-sided exposure for a hard
// or soft price breach; and a UI worker that periodically logs a read-only
// snapshot. All three share the position store's internal locking rather
// than a package-level lock, and a single orderMu serializes order
// submission so two workers never race a PlaceOrder call onto the same
// market: a panic-isolated, ticker-driven loop per worker.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/kalshi-sports/live-engine/internal/exchange"
	"github.com/kalshi-sports/live-engine/internal/matcher"
	"github.com/kalshi-sports/live-engine/internal/odds"
	"github.com/kalshi-sports/live-engine/internal/positions"
	"github.com/kalshi-sports/live-engine/internal/pricing"
	"github.com/kalshi-sports/live-engine/internal/protector"
	"github.com/kalshi-sports/live-engine/internal/risk"
	"github.com/kalshi-sports/live-engine/internal/storage"
	"github.com/kalshi-sports/live-engine/pkg/config"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// Deps bundles every component the engine orchestrates. All fields are
// required except FeeSchedule, which defaults to pricing.DefaultFeeSchedule.
type Deps struct {
	Logger *zap.Logger
	Config *config.Config

	Store     *positions.Store
	Persister *positions.Persister

	Orders     *exchange.OrderClient
	Quotes     *exchange.QuoteCache
	WS         *exchange.WSClient
	Reconciler *exchange.Reconciler

	OddsAdapter *odds.Adapter
	Discoverer  *odds.Discoverer

	Matcher *matcher.Resolver

	RiskGate  *risk.Gate
	Cooldowns *risk.CooldownStore
	Exited    *risk.ExitedSet

	Protector *protector.Protector

	Storage storage.Storage

	FeeSchedule pricing.FeeSchedule
}

// matchedEvent is the engine's in-memory record of a resolved odds-feed
// event: its exchange event ticker and the (up to two) matched markets,
// arbitrarily labelled side A / side B since neither the odds feed nor the
// exchange's market listing tags which side is "home" beyond the ticker
// itself.
type matchedEvent struct {
	Odds        types.OddsEvent
	EventTicker string
	SideA       types.Market
	SideB       types.Market
	HasSideB    bool
	MatchedAt   time.Time
}

// Engine owns the matched-event table and the workers that trade it.
type Engine struct {
	deps Deps

	mu      sync.Mutex
	matched map[string]*matchedEvent // keyed by odds feed event ID

	recentMu      sync.Mutex
	recentMarkets []types.Market // fuzzy-match seed pool, see refreshActiveMatches

	orderMu sync.Mutex

	// Touched only by the strategy worker goroutine.
	lastHousekeeping time.Time

	wg sync.WaitGroup
}

// New builds an Engine from its dependencies.
func New(deps Deps) *Engine {
	if deps.FeeSchedule == nil {
		deps.FeeSchedule = pricing.DefaultFeeSchedule
	}
	return &Engine{
		deps:    deps,
		matched: make(map[string]*matchedEvent),
	}
}

// Run starts every worker goroutine and blocks until ctx is cancelled, then
// waits for them to drain and persists durable state before returning.
func (e *Engine) Run(ctx context.Context) error {
	e.deps.Logger.Info("engine-starting",
		zap.Duration("strategy-tick", e.deps.Config.StrategyTick),
		zap.Duration("stop-loss-tick", e.deps.Config.StopLossTick),
		zap.Duration("ui-tick", e.deps.Config.UITick),
		zap.Bool("live-orders", e.deps.Config.LiveOrders),
	)

	e.wg.Add(5)
	go func() {
		defer e.wg.Done()
		if err := e.deps.Discoverer.Run(ctx); err != nil && ctx.Err() == nil {
			e.deps.Logger.Error("discoverer-stopped", zap.Error(err))
		}
	}()
	go func() { defer e.wg.Done(); e.pumpQuotes(ctx) }()
	go func() { defer e.wg.Done(); e.pumpDiscovery(ctx) }()
	go func() { defer e.wg.Done(); e.runStrategyWorker(ctx) }()
	go func() { defer e.wg.Done(); e.runStopLossWorker(ctx) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.runUIWorker(ctx) }()

	<-ctx.Done()
	e.deps.Logger.Info("engine-stopping")
	e.wg.Wait()

	return e.persist()
}

func (e *Engine) persist() error {
	if err := e.deps.Persister.Save(e.deps.Store); err != nil {
		e.deps.Logger.Error("persist-positions-failed", zap.Error(err))
	}
	if err := e.deps.Cooldowns.Save(); err != nil {
		e.deps.Logger.Error("persist-cooldowns-failed", zap.Error(err))
	}
	if err := e.deps.Exited.Save(); err != nil {
		e.deps.Logger.Error("persist-exited-failed", zap.Error(err))
	}
	return nil
}

// pumpQuotes drains the WebSocket quote stream into the shared quote cache.
func (e *Engine) pumpQuotes(ctx context.Context) {
	ch := e.deps.WS.QuoteChan()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			e.deps.Quotes.Update(msg, time.Now())
		}
	}
}

// pumpDiscovery drains newly-listed odds-feed events into the matched-event
// table, resolving each to an exchange ticker via the matcher.
func (e *Engine) pumpDiscovery(ctx context.Context) {
	ch := e.deps.Discoverer.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-ch:
			if !ok {
				return
			}
			e.safeRun("discovery-resolve", func() { e.resolveEvents(ctx, events) })
		}
	}
}

func (e *Engine) resolveEvents(ctx context.Context, events []types.OddsEvent) {
	for _, ev := range events {
		ev := ev
		e.safeRun("discovery-resolve-event", func() { e.resolveOneEvent(ctx, ev) })
	}
}

func (e *Engine) resolveOneEvent(ctx context.Context, ev types.OddsEvent) {
	e.mu.Lock()
	_, already := e.matched[ev.ID]
	e.mu.Unlock()
	if already {
		return
	}

	ticker, markets, err := e.deps.Matcher.Resolve(ctx, ev.Sport, ev.HomeTeam, ev.AwayTeam, ev.CommenceTime, e.snapshotRecentMarkets())
	if err != nil {
		e.deps.Logger.Debug("event-not-yet-matched", zap.String("odds-event-id", ev.ID), zap.Error(err))
		return
	}

	me := &matchedEvent{Odds: ev, EventTicker: ticker, MatchedAt: time.Now()}
	if len(markets) > 0 {
		me.SideA = markets[0]
	}
	if len(markets) > 1 {
		me.SideB = markets[1]
		me.HasSideB = true
	}

	e.mu.Lock()
	e.matched[ev.ID] = me
	e.mu.Unlock()

	e.rememberMarkets(markets)

	// Start quotes flowing for the new markets right away rather than
	// waiting for the next strategy tick's subscription sync.
	tickers := make([]string, 0, len(markets))
	for _, m := range markets {
		tickers = append(tickers, m.Ticker)
	}
	if err := e.deps.WS.Subscribe(tickers); err != nil {
		e.deps.Logger.Warn("subscribe-new-match-failed", zap.String("event-ticker", ticker), zap.Error(err))
	}

	if _, seen := e.deps.Store.FirstDetection(ticker); !seen {
		e.deps.Store.RecordFirstDetection(ticker, me.MatchedAt)
	}

	e.deps.Logger.Info("event-matched",
		zap.String("odds-event-id", ev.ID),
		zap.String("event-ticker", ticker),
		zap.String("home", ev.HomeTeam), zap.String("away", ev.AwayTeam))
}

// rememberMarkets seeds the fuzzy-match pool for future resolutions. The
// exchange adapter in scope only exposes per-event market listing, not a
// full active-market dump, so the engine builds its own bounded pool from
// markets it has already resolved successfully.
func (e *Engine) rememberMarkets(markets []types.Market) {
	if len(markets) == 0 {
		return
	}
	e.recentMu.Lock()
	defer e.recentMu.Unlock()
	e.recentMarkets = append(e.recentMarkets, markets...)
	const maxPool = 500
	if len(e.recentMarkets) > maxPool {
		e.recentMarkets = e.recentMarkets[len(e.recentMarkets)-maxPool:]
	}
}

func (e *Engine) snapshotRecentMarkets() []types.Market {
	e.recentMu.Lock()
	defer e.recentMu.Unlock()
	out := make([]types.Market, len(e.recentMarkets))
	copy(out, e.recentMarkets)
	return out
}

func (e *Engine) snapshotMatched() []*matchedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*matchedEvent, 0, len(e.matched))
	for _, me := range e.matched {
		out = append(out, me)
	}
	return out
}

// safeRun recovers a panic in fn, logs it, and pauses the calling worker
// goroutine for a random duration in [GlobalErrorPauseMin, GlobalErrorPauseMax] so a bug in
// one tick can't spin the process hot. Per-event callers additionally wrap
// with safePerEvent so one bad event doesn't pause the whole worker.
func (e *Engine) safeRun(label string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.deps.Logger.Error("worker-panic-recovered", zap.String("where", label), zap.Any("panic", r))
			EnginePanicsTotal.WithLabelValues(label).Inc()
			time.Sleep(randomPause(e.deps.Config.GlobalErrorPauseMin, e.deps.Config.GlobalErrorPauseMax))
		}
	}()
	fn()
}

// safePerEvent recovers a panic scoped to a single event's evaluation,
// logging it and moving on to the next event rather than pausing the whole
// worker.
func (e *Engine) safePerEvent(eventTicker, label string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.deps.Logger.Error("event-panic-recovered",
				zap.String("where", label), zap.String("event-ticker", eventTicker), zap.Any("panic", r))
			EnginePanicsTotal.WithLabelValues(label).Inc()
		}
	}()
	fn()
}

func randomPause(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(pseudoJitter())%span
}

// pseudoJitter returns a coarse, monotonically-varying jitter source without
// reaching for math/rand's package-level generator inside a hot error path;
// the high-resolution component of the current time is good enough to
// avoid every worker pausing for the exact same duration.
func pseudoJitter() int64 {
	return time.Now().UnixNano()
}
