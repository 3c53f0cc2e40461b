// Package exchange is the adapter boundary to the trading exchange: the
// quote-stream cache, signed REST order calls, and live-position
// reconciliation. Nothing downstream talks to the exchange except through
// this package.
package exchange

import (
	"sync"
	"time"

	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// QuoteCache holds the latest normalized quote per market ticker, with the
// staleness tracking the strategy worker enforces QUOTE_STALE_SECS against.
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]*types.QuoteSnapshot
	logger *zap.Logger
}

// NewQuoteCache creates an empty QuoteCache.
func NewQuoteCache(logger *zap.Logger) *QuoteCache {
	return &QuoteCache{
		quotes: make(map[string]*types.QuoteSnapshot),
		logger: logger,
	}
}

// normalizePrice maps a wire price to fractional [0,1]. The stream may
// carry integer cents 1..99 or fractional dollars; anything above 1 is
// cents.
func normalizePrice(p float64) float64 {
	if p > 1 {
		return p / 100.0
	}
	return p
}

// Update applies a quote-stream message, overwriting whatever was cached for
// that market ticker.
func (c *QuoteCache) Update(msg types.QuoteMessage, now time.Time) {
	c.mu.Lock()
	c.quotes[msg.MarketTicker] = &types.QuoteSnapshot{
		MarketTicker: msg.MarketTicker,
		YesBid:       normalizePrice(msg.YesBid),
		YesAsk:       normalizePrice(msg.YesAsk),
		Liquidity:    msg.Liquidity,
		Volume24h:    msg.Volume24h,
		LastUpdate:   now,
	}
	size := len(c.quotes)
	c.mu.Unlock()

	QuoteUpdatesTotal.WithLabelValues("quote").Inc()
	QuotesTracked.Set(float64(size))
}

// Get returns the cached snapshot for a market ticker and whether it is
// fresh as of now. A stale entry is still returned (the caller decides
// whether to fall back to a REST snapshot), but freshness is reported
// honestly so callers don't mistake a stale quote for a live one.
func (c *QuoteCache) Get(marketTicker string, now time.Time, staleAfter time.Duration) (snapshot types.QuoteSnapshot, fresh bool, ok bool) {
	c.mu.RLock()
	q, found := c.quotes[marketTicker]
	c.mu.RUnlock()

	if !found {
		return types.QuoteSnapshot{}, false, false
	}

	stale := q.IsStale(now, staleAfter)
	if stale {
		StaleQuoteServedTotal.WithLabelValues(marketTicker).Inc()
	}
	return *q, !stale, true
}

// ApplySnapshot overwrites the cache entry for a market ticker from a REST
// fallback fetch, used when the quote stream cache is stale.
func (c *QuoteCache) ApplySnapshot(marketTicker string, bid, ask, liquidity, volume24h float64, now time.Time) {
	c.mu.Lock()
	c.quotes[marketTicker] = &types.QuoteSnapshot{
		MarketTicker: marketTicker,
		YesBid:       bid,
		YesAsk:       ask,
		Liquidity:    liquidity,
		Volume24h:    volume24h,
		LastUpdate:   now,
	}
	c.mu.Unlock()
}

// All returns a copy of every cached snapshot, used by the UI worker.
func (c *QuoteCache) All() []types.QuoteSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.QuoteSnapshot, 0, len(c.quotes))
	for _, q := range c.quotes {
		out = append(out, *q)
	}
	return out
}
