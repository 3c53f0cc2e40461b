package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kalshi-sports/live-engine/internal/hedge"
	"github.com/kalshi-sports/live-engine/internal/positions"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// HedgeBand is the cached (q_low, q_high) opposite-side quantity range for a
// neutralized event, refreshed every reconcile pass against current quotes.
type HedgeBand struct {
	EventTicker string
	Low         float64
	High        float64
	UpdatedAt   time.Time
}

// HedgeBandCache holds the most recently computed hedge band per event,
// consulted by the profit protector and the UI worker so both see
// current-quote-derived bounds rather than stale ones from entry time.
type HedgeBandCache struct {
	mu     sync.RWMutex
	bands  map[string]HedgeBand
	logger *zap.Logger
}

func newHedgeBandCache(logger *zap.Logger) *HedgeBandCache {
	return &HedgeBandCache{bands: make(map[string]HedgeBand), logger: logger}
}

// Get returns the cached hedge band for an event, if any.
func (c *HedgeBandCache) Get(eventTicker string) (HedgeBand, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bands[eventTicker]
	return b, ok
}

func (c *HedgeBandCache) set(b HedgeBand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bands[b.EventTicker] = b
}

// Reconciler ties the order client's live-position view to the local store,
// applying a live-wins contract on every strategy and exit tick.
type Reconciler struct {
	orders     *OrderClient
	store      *positions.Store
	quotes     *QuoteCache
	bands      *HedgeBandCache
	logger     *zap.Logger
	targetR    float64
	isMaker    bool
	staleAfter time.Duration
}

// NewReconciler builds a Reconciler. targetR is the hedge planner's target
// ROI (HEDGE_TARGET_ROI); isMaker reflects whether hedge orders route as
// maker or taker for fee estimation in the cached band; staleAfter is the
// same STALE_SECS threshold the strategy worker applies to the quote cache.
func NewReconciler(orders *OrderClient, store *positions.Store, quotes *QuoteCache, logger *zap.Logger, targetR float64, isMaker bool, staleAfter time.Duration) *Reconciler {
	return &Reconciler{
		orders:     orders,
		store:      store,
		quotes:     quotes,
		bands:      newHedgeBandCache(logger),
		logger:     logger,
		targetR:    targetR,
		isMaker:    isMaker,
		staleAfter: staleAfter,
	}
}

// Bands exposes the hedge-band cache for the profit protector and UI worker.
func (r *Reconciler) Bands() *HedgeBandCache {
	return r.bands
}

// deriveEventTicker takes the first two hyphen-separated segments of a
// market ticker, uppercased, when the exchange doesn't supply an event
// ticker directly.
func deriveEventTicker(marketTicker string) string {
	parts := strings.SplitN(marketTicker, "-", 3)
	if len(parts) < 2 {
		return strings.ToUpper(marketTicker)
	}
	return strings.ToUpper(parts[0] + "-" + parts[1])
}

// Reconcile runs the full 7-step contract. It never aborts the caller's tick
// on a fetch failure; it logs and leaves the local store as the fallback
// truth.
func (r *Reconciler) Reconcile(ctx context.Context, now time.Time) error {
	live, err := r.orders.FetchLivePositions(ctx)
	if err != nil {
		ReconcileFailuresTotal.Inc()
		r.logger.Warn("reconcile-fetch-failed", zap.Error(err))
		return fmt.Errorf("fetch live positions: %w", err)
	}

	liveKeys := make(map[string]bool, len(live))
	for _, lp := range live {
		side := lp.Side
		if side == "" {
			side = "yes"
		}
		key := lp.MarketTicker + "|" + side

		eventTicker := lp.EventTicker
		if eventTicker == "" {
			eventTicker = deriveEventTicker(lp.MarketTicker)
		}

		liveKeys[key] = true

		changed := r.store.ApplyLiveFact(lp.MarketTicker, eventTicker, side, lp.Contracts, lp.AvgPrice, now)
		if changed {
			ReconcileMismatchesTotal.WithLabelValues("stake_or_price").Inc()
		}
	}

	settled := r.store.MarkSettledIfAbsent(liveKeys)
	if len(settled) > 0 {
		ReconcileMismatchesTotal.WithLabelValues("settled_locally").Add(float64(len(settled)))
		for _, ticker := range settled {
			r.logger.Info("position-settled-on-reconcile", zap.String("market_ticker", ticker))
		}
	}

	r.refreshNeutralizedHedgeBands(now)
	return nil
}

// refreshNeutralizedHedgeBands recomputes step 6 (neutralized flag: both
// sides of an event open) and step 7 (hedge band cache) for every event with
// open positions.
func (r *Reconciler) refreshNeutralizedHedgeBands(now time.Time) {
	seen := make(map[string]bool)
	for _, p := range r.store.GetOpenPositions() {
		if seen[p.EventTicker] {
			continue
		}
		seen[p.EventTicker] = true

		positionsOnEvent := r.store.GetByEvent(p.EventTicker)
		markets := make(map[string]bool, 2)
		for _, op := range positionsOnEvent {
			markets[op.MarketTicker] = true
		}
		if len(markets) < 2 {
			continue
		}

		r.cacheHedgeBand(p.EventTicker, positionsOnEvent, now)
	}
}

// cacheHedgeBand picks the larger-stake side as the held side and the other
// market as the hedge candidate, recomputing QtyBounds against the
// candidate market's current ask.
func (r *Reconciler) cacheHedgeBand(eventTicker string, positionsOnEvent []*types.Position, now time.Time) {
	byMarket := make(map[string]*types.Position)
	for _, p := range positionsOnEvent {
		existing, ok := byMarket[p.MarketTicker]
		if !ok || p.Stake > existing.Stake {
			byMarket[p.MarketTicker] = p
		}
	}
	if len(byMarket) < 2 {
		return
	}

	var held, candidate *types.Position
	for _, p := range byMarket {
		if held == nil || p.Stake > held.Stake {
			held = p
		}
	}
	for _, p := range byMarket {
		if p.MarketTicker != held.MarketTicker {
			candidate = p
			break
		}
	}
	if held == nil || candidate == nil {
		return
	}

	snapshot, fresh, ok := r.quotes.Get(candidate.MarketTicker, now, r.staleAfter)
	if !ok || !fresh {
		return
	}

	band := hedge.QtyBounds(float64(held.Stake), held.EntryPrice, snapshot.YesAsk, r.targetR, r.isMaker, r.isMaker)
	if band.Empty() {
		return
	}

	r.bands.set(HedgeBand{
		EventTicker: eventTicker,
		Low:         band.Low,
		High:        band.High,
		UpdatedAt:   now,
	})
}
