package types

import "time"

// Position is the fundamental unit of persistent trading state: a YES
// holding on a single market. The engine is YES-only; opposite exposure is
// expressed by holding YES on the event's other market.
type Position struct {
	EventTicker  string    `json:"event_ticker"`
	MarketTicker string    `json:"market_ticker"`
	Side         string    `json:"side"` // always "yes"
	Stake        int       `json:"stake"`
	EntryPrice   float64   `json:"entry_price"`
	EntryTime    time.Time `json:"entry_time"`

	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`

	MaxSeenBid float64 `json:"max_seen_bid"`

	Settled bool `json:"settled"`

	ClosingInProgress  bool      `json:"closing_in_progress"`
	ClosingInitiatedAt time.Time `json:"closing_initiated_at"`

	LastSeenLive time.Time `json:"last_seen_live"`
	TrackingLost bool      `json:"tracking_lost"`

	TimeExitTriggered bool `json:"time_exit_triggered"`
}

// Key identifies the at-most-one-non-settled-position slot this position
// occupies: (market_ticker, side).
func (p *Position) Key() string {
	return p.MarketTicker + "|" + p.Side
}

// CostBasis returns the total dollars invested in this position.
func (p *Position) CostBasis() float64 {
	return float64(p.Stake) * p.EntryPrice
}

// IsClosingStale reports whether a closing_in_progress flag has outlived
// the staleness threshold (default 5 minutes) and should be reaped.
func (p *Position) IsClosingStale(now time.Time, threshold time.Duration) bool {
	return p.ClosingInProgress && now.Sub(p.ClosingInitiatedAt) > threshold
}

// EventLock marks an event with exactly one side open ("half-hedged lock").
type EventLock struct {
	EventTicker string `json:"event_ticker"`
	OpenSide    string `json:"open_side_market_ticker"`
}

// StopLossCooldown records that an event recently tripped a stop-loss and
// blocks new entries until either the cooldown window elapses or price
// recovers to at least the price recorded at stop time.
type StopLossCooldown struct {
	EventTicker      string    `json:"event_ticker"`
	Timestamp        time.Time `json:"timestamp"`
	EntryPriceAtStop float64   `json:"entry_price_at_stop"`
}

// Expired reports whether the cooldown window (STOP_LOSS_COOLDOWN_WINDOW,
// default 10 minutes) has elapsed as of now.
func (c *StopLossCooldown) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(c.Timestamp) > window
}

// Recovered reports whether currentPrice has recovered to at least the
// price recorded when the stop-loss fired, which clears the cooldown
// immediately regardless of the time window.
func (c *StopLossCooldown) Recovered(currentPrice float64) bool {
	return currentPrice >= c.EntryPriceAtStop
}
