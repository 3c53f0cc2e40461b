package positions

import (
	"time"

	"go.uber.org/zap"
)

// RefreshPositionTracking marks positions as settled/tracking-lost once
// their market or event is no longer among the active, trackable set: a
// market that disappears from both the live-market list and the live-event
// list is presumed closed out from under us and should stop counting
// against exposure caps. preserveManual short-circuits the whole sweep, for
// deployments that hold hand-opened positions the discovery loop will
// never list as active.
func (s *Store) RefreshPositionTracking(activeMarketTickers, activeEventKeys map[string]bool, preserveManual bool) int {
	if preserveManual {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, p := range s.positions {
		if p.Settled {
			continue
		}
		marketActive := activeMarketTickers[p.MarketTicker]
		eventActive := activeEventKeys[p.EventTicker]
		if marketActive || eventActive {
			continue
		}

		p.Settled = true
		p.TrackingLost = true
		changed++
		s.logger.Warn("position-tracking-lost",
			zap.String("market_ticker", p.MarketTicker),
			zap.String("event_ticker", p.EventTicker))
	}
	return changed
}

// PurgeStalePositions retires non-settled positions that have gone unseen
// for longer than maxAge, a backstop for markets that vanished out from
// under the engine. hasLiveQuote re-checks live market status first: a
// market that still shows an active quote is kept regardless of age. A
// purged position is marked settled with tracking lost rather than
// deleted, so a holding the exchange may still report never silently
// disappears from the book's exposure accounting.
func (s *Store) PurgeStalePositions(now time.Time, maxAge time.Duration, hasLiveQuote func(marketTicker string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	retired := 0
	for _, p := range s.positions {
		if p.Settled {
			continue
		}
		if hasLiveQuote != nil && hasLiveQuote(p.MarketTicker) {
			continue
		}

		ref := p.LastSeenLive
		if ref.IsZero() {
			ref = p.EntryTime
		}
		if ref.IsZero() || now.Sub(ref) <= maxAge {
			continue
		}

		p.Settled = true
		p.TrackingLost = true
		retired++
		s.logger.Info("position-purged-stale",
			zap.String("market_ticker", p.MarketTicker),
			zap.Duration("unseen", now.Sub(ref)))
	}
	return retired
}

// PurgeOldSettledPositions drops settled positions older than maxAge so the
// persisted book doesn't grow without bound.
func (s *Store) PurgeOldSettledPositions(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, p := range s.positions {
		if !p.Settled {
			continue
		}
		if now.Sub(p.EntryTime) > maxAge {
			delete(s.positions, key)
			removed++
		}
	}
	return removed
}

// CheckTimeBasedExits flags positions that have been held past
// exitThreshold with TimeExitTriggered. The flag is stored and persisted
// with the position; no exit path reads it.
func (s *Store) CheckTimeBasedExits(now time.Time, exitThreshold time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	triggered := 0
	for _, p := range s.positions {
		if p.Settled || p.TimeExitTriggered {
			continue
		}
		if p.EntryTime.IsZero() {
			continue
		}
		if now.Sub(p.EntryTime) >= exitThreshold {
			p.TimeExitTriggered = true
			triggered++
			s.logger.Info("time-exit-triggered",
				zap.String("market_ticker", p.MarketTicker),
				zap.Duration("held", now.Sub(p.EntryTime)))
		}
	}
	return triggered
}

// ReapStaleClosingFlags clears closing_in_progress on any position whose
// close attempt has outlived the staleness threshold, allowing the risk
// and hedge logic to retry instead of treating the position as
// permanently in flight.
func (s *Store) ReapStaleClosingFlags(now time.Time, threshold time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for _, p := range s.positions {
		if p.IsClosingStale(now, threshold) {
			p.ClosingInProgress = false
			reaped++
			s.logger.Warn("closing-flag-reaped",
				zap.String("market_ticker", p.MarketTicker),
				zap.Time("initiated_at", p.ClosingInitiatedAt))
		}
	}
	return reaped
}
