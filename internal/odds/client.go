// Package odds is the adapter boundary to the live sportsbook odds feed:
// listing in-play events, fetching per-event moneyline odds plus
// score/clock, and de-vigging raw odds into fair probabilities via
// internal/pricing.
package odds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// ClientConfig configures the HTTP client for the live odds feed's API.
// The feed returns score_snapshot and period_clock inline with the odds
// rather than via a separate scores endpoint.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Logger  *zap.Logger
}

// Client fetches live events and per-event odds/score/clock from the
// sportsbook feed's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     cfg.Logger,
	}
}

type rawLiveEvent struct {
	ID            string    `json:"id"`
	Sport         string    `json:"sport"`
	HomeTeam      string    `json:"home_team"`
	AwayTeam      string    `json:"away_team"`
	CommenceTime  time.Time `json:"commence_time"`
	HomeOdds      float64   `json:"home_odds"`
	AwayOdds      float64   `json:"away_odds"`
	ScoreSnapshot string    `json:"score_snapshot"`
	PeriodClock   string    `json:"period_clock"`
}

var errThrottled = fmt.Errorf("odds feed rate-limited the request")

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("odds feed API key not configured")
	}
	params.Set("apiKey", c.apiKey)

	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errThrottled
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// ListLiveEvents lists current in-play events filtered to a sport key,
// driving the discovery worker's periodic sweep of the sports of interest.
func (c *Client) ListLiveEvents(ctx context.Context, sportKey string) ([]types.OddsEvent, error) {
	body, err := c.get(ctx, "/live-events", url.Values{"sport": {sportKey}})
	if err != nil {
		return nil, err
	}

	var events []rawLiveEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("unmarshal live events: %w", err)
	}

	out := make([]types.OddsEvent, 0, len(events))
	for _, e := range events {
		out = append(out, types.OddsEvent{
			ID:           e.ID,
			Sport:        sportKey,
			HomeTeam:     e.HomeTeam,
			AwayTeam:     e.AwayTeam,
			CommenceTime: e.CommenceTime,
		})
	}
	return out, nil
}

// FetchEventMoneyline fetches the current moneyline odds plus score/clock
// snapshot for a single event.
func (c *Client) FetchEventMoneyline(ctx context.Context, eventID string) (types.Moneyline, error) {
	body, err := c.get(ctx, "/event-odds", url.Values{"id": {eventID}})
	if err != nil {
		return types.Moneyline{}, err
	}

	var e rawLiveEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return types.Moneyline{}, fmt.Errorf("unmarshal event odds: %w", err)
	}

	if e.HomeOdds <= 1 || e.AwayOdds <= 1 {
		return types.Moneyline{}, fmt.Errorf("event %s missing usable moneyline odds", eventID)
	}

	return types.Moneyline{
		HomeOdds:    e.HomeOdds,
		AwayOdds:    e.AwayOdds,
		Score:       parseScoreSnapshot(e.ScoreSnapshot),
		PeriodClock: e.PeriodClock,
		FetchedAt:   time.Now(),
	}, nil
}

// parseScoreSnapshot parses a "home-away" score string (e.g. "84-78") into
// a ScoreClock's score fields. Period and raw clock are carried separately
// on Moneyline.PeriodClock since they only make sense together as a single
// token (e.g. "Q4 2:15").
func parseScoreSnapshot(raw string) types.ScoreClock {
	var home, away int
	_, err := fmt.Sscanf(raw, "%d-%d", &home, &away)
	if err != nil {
		return types.ScoreClock{}
	}
	return types.ScoreClock{HomeScore: home, AwayScore: away}
}
