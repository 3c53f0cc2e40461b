package odds

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kalshi-sports/live-engine/internal/pricing"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// DeVigMethod selects which de-vigging model the adapter applies to raw
// moneyline odds. Shin is the default; logit-shift is offered as an
// alternative.
type DeVigMethod string

const (
	DeVigShin  DeVigMethod = "shin"
	DeVigLogit DeVigMethod = "logit"
)

// cachedSnapshot pairs the fair-probability snapshot with the raw
// period-clock token the risk gate's game-clock gate needs; the two travel
// together but ProbabilitySnapshot itself only carries the parsed score.
type cachedSnapshot struct {
	snapshot    types.ProbabilitySnapshot
	periodClock string
}

// Adapter fetches per-event moneyline odds on a throttle, de-vigs them, and
// caches the resulting fair-probability snapshot so a failed fetch can fall
// back to the prior value rather than blocking the strategy tick.
type Adapter struct {
	client      *Client
	method      DeVigMethod
	minInterval time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	snapshots map[string]*cachedSnapshot
	lastFetch time.Time
}

// Config configures an Adapter.
type Config struct {
	Client      *Client
	Method      DeVigMethod
	MinInterval time.Duration // minimum time between outbound requests, default 100ms
	Logger      *zap.Logger
}

// New builds an Adapter.
func New(cfg Config) *Adapter {
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = 100 * time.Millisecond
	}
	return &Adapter{
		client:      cfg.Client,
		method:      cfg.Method,
		minInterval: minInterval,
		logger:      cfg.Logger,
		snapshots:   make(map[string]*cachedSnapshot),
	}
}

// throttle blocks until at least minInterval has elapsed since the last
// outbound request, a shared rate limit across every event the adapter
// tracks; the odds feed throttles at the account level, not per-event.
func (a *Adapter) throttle() {
	a.mu.Lock()
	wait := a.minInterval - time.Since(a.lastFetch)
	a.mu.Unlock()

	if wait > 0 {
		ThrottleWaitSeconds.Observe(wait.Seconds())
		time.Sleep(wait)
	}

	a.mu.Lock()
	a.lastFetch = time.Now()
	a.mu.Unlock()
}

// FetchEvent fetches and de-vigs the current moneyline for an event, keyed
// by the exchange's event ticker. On fetch failure the previous snapshot is
// returned unmodified (its stale LastUpdateTS left in place) so callers can
// still trade off the last-known fair probability while treating freshness
// gates accordingly.
func (a *Adapter) FetchEvent(ctx context.Context, eventTicker, oddsFeedEventID, homeTeam, awayTeam string, now time.Time) (types.ProbabilitySnapshot, error) {
	a.throttle()

	ml, err := a.client.FetchEventMoneyline(ctx, oddsFeedEventID)
	if err != nil {
		FetchesTotal.WithLabelValues("error").Inc()
		a.logger.Warn("odds-fetch-failed", zap.String("event_ticker", eventTicker), zap.Error(err))

		a.mu.Lock()
		prev, ok := a.snapshots[eventTicker]
		a.mu.Unlock()
		if ok {
			StaleSnapshotServedTotal.Inc()
			return prev.snapshot, nil
		}
		return types.ProbabilitySnapshot{}, fmt.Errorf("fetch event moneyline: %w", err)
	}

	var homeProb, awayProb float64
	switch a.method {
	case DeVigLogit:
		homeProb, awayProb = pricing.DeVigLogit(1.0/ml.HomeOdds, 1.0/ml.AwayOdds)
	default:
		homeProb, awayProb = pricing.DeVigShin(ml.HomeOdds, ml.AwayOdds, 0, 0)
	}

	snap := types.ProbabilitySnapshot{
		EventTicker:  eventTicker,
		HomeProb:     homeProb,
		AwayProb:     awayProb,
		Score:        ml.Score,
		LastUpdateTS: now,
		DeVigMethod:  string(a.method),
		MatchName:    normalizeMatchName(homeTeam, awayTeam),
	}

	a.mu.Lock()
	a.snapshots[eventTicker] = &cachedSnapshot{snapshot: snap, periodClock: ml.PeriodClock}
	a.mu.Unlock()

	FetchesTotal.WithLabelValues("ok").Inc()
	return snap, nil
}

// Snapshot returns the cached fair-probability snapshot for an event, if
// any has been fetched.
func (a *Adapter) Snapshot(eventTicker string) (types.ProbabilitySnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.snapshots[eventTicker]
	if !ok {
		return types.ProbabilitySnapshot{}, false
	}
	return s.snapshot, true
}

// PeriodClock returns the raw period-clock token (e.g. "Q4 2:15") last
// fetched for an event, consumed by the risk gate's game-clock gate via
// pricing.ParsePeriodClock.
func (a *Adapter) PeriodClock(eventTicker string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.snapshots[eventTicker]
	if !ok {
		return ""
	}
	return s.periodClock
}

func normalizeMatchName(home, away string) string {
	return strings.TrimSpace(home) + " vs " + strings.TrimSpace(away)
}
