package testutil

import (
	"sync"
	"time"

	"github.com/kalshi-sports/live-engine/pkg/types"
)

// CreateTestMarket creates an active binary market with a symmetric book
// around mid.
func CreateTestMarket(ticker, eventTicker string, mid float64) types.Market {
	return types.Market{
		Ticker:      ticker,
		EventTicker: eventTicker,
		Status:      types.MarketStatusActive,
		YesBid:      mid - 0.01,
		YesAsk:      mid + 0.01,
		Liquidity:   10000,
		Volume24h:   5000,
		TickSize:    0.01,
		LastUpdate:  time.Now(),
	}
}

// CreateTestPosition creates an open YES position.
func CreateTestPosition(marketTicker, eventTicker string, stake int, entryPrice float64, entryTime time.Time) *types.Position {
	return &types.Position{
		EventTicker:  eventTicker,
		MarketTicker: marketTicker,
		Side:         "yes",
		Stake:        stake,
		EntryPrice:   entryPrice,
		EntryTime:    entryTime,
		MaxSeenBid:   entryPrice,
		LastSeenLive: entryTime,
	}
}

// CreateTestQuote creates a quote snapshot for a market.
func CreateTestQuote(marketTicker string, bid, ask float64, at time.Time) types.QuoteSnapshot {
	return types.QuoteSnapshot{
		MarketTicker: marketTicker,
		YesBid:       bid,
		YesAsk:       ask,
		Liquidity:    10000,
		Volume24h:    5000,
		LastUpdate:   at,
	}
}

// CreateTestOddsEvent creates an in-play odds-feed event with a mild
// overround on the moneyline.
func CreateTestOddsEvent(id, sport, home, away string) MockOddsEvent {
	return MockOddsEvent{
		ID:            id,
		Sport:         sport,
		HomeTeam:      home,
		AwayTeam:      away,
		CommenceTime:  time.Now().Add(-30 * time.Minute).UTC().Format(time.RFC3339),
		HomeOdds:      1.80,
		AwayOdds:      2.10,
		ScoreSnapshot: "55-51",
		PeriodClock:   "Q3 5:30",
	}
}

// FixedClock hands out a settable, monotonically advanceable time, so tests
// of hold-time and cooldown windows don't sleep.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a FixedClock pinned at start.
func NewFixedClock(start time.Time) *FixedClock {
	return &FixedClock{now: start}
}

// Now returns the clock's current time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
