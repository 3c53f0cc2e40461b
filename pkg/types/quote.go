package types

import "time"

// QuoteMessage is a single quote-stream update from the exchange's
// WebSocket feed. Prices may arrive as integer cents (1..99) or fractional
// dollars; normalization to fractional [0,1] happens in the exchange
// adapter before a QuoteSnapshot is built.
type QuoteMessage struct {
	MarketTicker string  `json:"market_ticker"`
	YesBid       float64 `json:"yes_bid"`
	YesAsk       float64 `json:"yes_ask"`
	Liquidity    float64 `json:"liquidity"`
	Volume24h    float64 `json:"volume_24h"`
}

// QuoteSnapshot is the cached, normalized view of a market's current book,
// with the staleness timestamp the exchange adapter enforces STALE_SECS
// against.
type QuoteSnapshot struct {
	MarketTicker string
	YesBid       float64
	YesAsk       float64
	Liquidity    float64
	Volume24h    float64
	LastUpdate   time.Time
}

// IsStale reports whether this snapshot is older than maxAge as of now.
func (q *QuoteSnapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(q.LastUpdate) > maxAge
}
