package types

import "time"

// OddsEvent is a single event listed by the odds provider's LIST_EVENTS
// call, before moneyline odds have been fetched for it.
type OddsEvent struct {
	ID            string    `json:"id"`
	Sport         string    `json:"sport"`
	HomeTeam      string    `json:"home_team"`
	AwayTeam      string    `json:"away_team"`
	CommenceTime  time.Time `json:"commence_time"`
}

// Moneyline is the decimal-odds moneyline plus score/clock snapshot
// returned by GET_EVENT_MONEYLINE.
type Moneyline struct {
	HomeOdds   float64 `json:"home_odds"` // decimal odds, e.g. 1.91
	AwayOdds   float64 `json:"away_odds"`
	Score      ScoreClock
	PeriodClock string `json:"period_clock"` // raw clock string, e.g. "Q4 2:15" or "H2 10:00"
	FetchedAt  time.Time
}
