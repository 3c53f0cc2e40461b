package matcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kalshi-sports/live-engine/pkg/cache"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// MarketQuerier is the exchange-side capability the matcher needs: listing
// markets under a candidate event ticker. The fuzzy-match fallback works on
// the active-market list the caller passes to Resolve. Satisfied by
// internal/exchange.OrderClient.
type MarketQuerier interface {
	ListMarketsForEvent(ctx context.Context, eventTicker string) ([]types.Market, error)
}

// resolved is what the TTL cache stores per (event, date) key.
type resolved struct {
	EventTicker string
	Markets     []types.Market
}

// Resolver maps an odds-feed event to the exchange's event ticker and
// market list: direct candidate-ticker construction first, fuzzy matching
// as the fallback.
type Resolver struct {
	exchange MarketQuerier
	lookup   TeamCodeLookup
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Config configures a Resolver.
type Config struct {
	Exchange MarketQuerier
	Lookup   TeamCodeLookup
	Cache    cache.Cache
	CacheTTL time.Duration // default 10 minutes
	Logger   *zap.Logger
}

// New builds a Resolver.
func New(cfg Config) *Resolver {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Resolver{
		exchange: cfg.Exchange,
		lookup:   cfg.Lookup,
		cache:    cfg.Cache,
		cacheTTL: ttl,
		logger:   cfg.Logger,
	}
}

func cacheKey(sport, home, away string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s", sport, strings.ToLower(home), strings.ToLower(away), date.Format("2006-01-02"))
}

func candidateTickers(sport, home, away string, date time.Time, lookup TeamCodeLookup) []string {
	dates := []time.Time{date, date.AddDate(0, 0, -1)}
	var candidates []string

	build := func(h, a string, d time.Time) string {
		if strings.HasPrefix(sport, "basketball_ncaa") || strings.Contains(strings.ToLower(sport), "ncaa") {
			return MakeNCAAEventTicker(h, a, d, lookup)
		}
		return MakeNBAEventTicker(h, a, d, lookup)
	}

	for _, d := range dates {
		candidates = append(candidates, build(home, away, d))
		candidates = append(candidates, build(away, home, d))
	}
	return candidates
}

// isRateLimited reports whether err represents a 429 from the exchange.
func isRateLimited(err error) bool {
	if oe, ok := err.(*types.OrderError); ok {
		return oe.Code == "429"
	}
	return false
}

// Resolve finds the exchange's event ticker and markets for an odds-feed
// event. It tries candidate tickers (permuting home/away order, today's
// and yesterday's date code), caches the first non-empty hit with a TTL,
// and falls back to fuzzy matching against a caller-supplied active-ticker
// list when no candidate resolves. On a 429, it sleeps and retries once;
// if still throttled, it abandons remaining candidates for this event on
// this pass.
func (r *Resolver) Resolve(ctx context.Context, sport, home, away string, date time.Time, activeMarkets []types.Market) (string, []types.Market, error) {
	key := cacheKey(sport, home, away, date)

	if cached, ok := r.cache.Get(key); ok {
		if res, ok := cached.(resolved); ok {
			return res.EventTicker, res.Markets, nil
		}
	}

	for _, candidate := range candidateTickers(sport, home, away, date, r.lookup) {
		markets, err := r.exchange.ListMarketsForEvent(ctx, candidate)
		if err != nil {
			if isRateLimited(err) {
				time.Sleep(time.Second)
				markets, err = r.exchange.ListMarketsForEvent(ctx, candidate)
				if err != nil {
					if isRateLimited(err) {
						r.logger.Warn("matcher-throttled-abandoning-pass", zap.String("sport", sport))
						break
					}
					r.logger.Warn("matcher-candidate-query-failed", zap.String("candidate", candidate), zap.Error(err))
					continue
				}
			} else {
				r.logger.Warn("matcher-candidate-query-failed", zap.String("candidate", candidate), zap.Error(err))
				continue
			}
		}

		if len(markets) > 0 {
			r.cache.Set(key, resolved{EventTicker: candidate, Markets: markets}, r.cacheTTL)
			return candidate, markets, nil
		}
	}

	ticker, markets, ok := r.fuzzyMatch(home, away, activeMarkets)
	if ok {
		r.cache.Set(key, resolved{EventTicker: ticker, Markets: markets}, r.cacheTTL)
		return ticker, markets, nil
	}

	return "", nil, fmt.Errorf("no market match found for %s vs %s (%s)", home, away, sport)
}

// geoModifiers guards against false-positive substring matches between
// geographically-qualified team names (e.g. "East Texas" vs "Texas").
var geoModifiers = map[string]bool{
	"east": true, "west": true, "north": true, "south": true,
	"central": true, "southern": true, "northern": true, "eastern": true,
	"western": true,
}

// fuzzyMatch normalizes home/away names and the active market list's event
// tickers into token sets, requiring a token-set intersection while
// rejecting matches that differ only by a geographic modifier. Substring
// containment is not tried.
func (r *Resolver) fuzzyMatch(home, away string, activeMarkets []types.Market) (string, []types.Market, bool) {
	homeTokens := NormalizeTokens(home, r.lookup)
	awayTokens := NormalizeTokens(away, r.lookup)
	if len(homeTokens) == 0 || len(awayTokens) == 0 {
		return "", nil, false
	}

	byEvent := make(map[string][]types.Market)
	for _, m := range activeMarkets {
		byEvent[m.EventTicker] = append(byEvent[m.EventTicker], m)
	}

	for eventTicker, markets := range byEvent {
		eventTokens := NormalizeTokens(eventTicker, r.lookup)
		if len(eventTokens) == 0 {
			continue
		}

		if tokenSetMatches(homeTokens, eventTokens) && tokenSetMatches(awayTokens, eventTokens) {
			r.logger.Debug("matcher-fuzzy-hit",
				zap.String("event_ticker", eventTicker),
				zap.Strings("home_tokens", sortedKeys(homeTokens)),
				zap.Strings("away_tokens", sortedKeys(awayTokens)))
			return eventTicker, markets, true
		}
	}

	return "", nil, false
}

// tokenSetMatches reports whether any non-geographic-modifier token in
// teamTokens appears in eventTokens. Two sets that differ only in their
// geographic modifiers ("East Texas" vs "Texas") do not match.
func tokenSetMatches(teamTokens, eventTokens map[string]bool) bool {
	geoDiffers, sameCore := false, true
	for _, sets := range [][2]map[string]bool{{teamTokens, eventTokens}, {eventTokens, teamTokens}} {
		for tok := range sets[0] {
			if sets[1][tok] {
				continue
			}
			if geoModifiers[tok] {
				geoDiffers = true
			} else {
				sameCore = false
			}
		}
	}
	if geoDiffers && sameCore {
		return false
	}

	for tok := range teamTokens {
		if geoModifiers[tok] {
			continue
		}
		if eventTokens[tok] {
			return true
		}
	}
	return false
}
