// Package positions owns the durable position book: the set of open and
// settled YES holdings, the half-hedge event locks, and the per-event
// first-detection clock. Every write goes through a single coarse lock,
// matching the one-writer-lock-per-engine-tick shape the rest of the
// system assumes.
package positions

import (
	"sync"
	"time"

	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// Store holds positions keyed by (market_ticker, side) alongside the
// auxiliary collections that share its lock: event locks (half-hedge
// tracking) and first-detection timestamps.
type Store struct {
	mu sync.RWMutex

	positions      map[string]*types.Position
	eventLocks     map[string]*types.EventLock
	firstDetection map[string]time.Time

	logger *zap.Logger
}

// New creates an empty Store.
func New(logger *zap.Logger) *Store {
	return &Store{
		positions:      make(map[string]*types.Position),
		eventLocks:     make(map[string]*types.EventLock),
		firstDetection: make(map[string]time.Time),
		logger:         logger,
	}
}

// UpsertFill records a fill against the (market, side) slot, enforcing that
// at most one non-settled position may occupy a slot. A fill against an
// existing open position is averaged into a new weighted entry price; a
// fill against a settled or absent slot opens a fresh position.
func (s *Store) UpsertFill(marketTicker, eventTicker, side string, qty int, price float64, now time.Time) *types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := marketTicker + "|" + side
	existing, ok := s.positions[key]

	if !ok || existing.Settled {
		pos := &types.Position{
			EventTicker:  eventTicker,
			MarketTicker: marketTicker,
			Side:         side,
			Stake:        qty,
			EntryPrice:   price,
			EntryTime:    now,
			LastSeenLive: now,
		}
		s.positions[key] = pos
		s.logger.Info("position-opened",
			zap.String("market_ticker", marketTicker),
			zap.Int("qty", qty),
			zap.Float64("price", price))
		return pos
	}

	totalCost := existing.CostBasis() + float64(qty)*price
	totalStake := existing.Stake + qty
	existing.EntryPrice = totalCost / float64(totalStake)
	existing.Stake = totalStake
	existing.LastSeenLive = now

	s.logger.Info("position-averaged",
		zap.String("market_ticker", marketTicker),
		zap.Int("new_stake", existing.Stake),
		zap.Float64("new_entry_price", existing.EntryPrice))
	return existing
}

// DecrementStake reduces the stake on a position by qty and marks it
// settled once stake reaches zero.
func (s *Store) DecrementStake(marketTicker, side string, qty int) *types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := marketTicker + "|" + side
	pos, ok := s.positions[key]
	if !ok {
		return nil
	}
	pos.Stake -= qty
	if pos.Stake <= 0 {
		pos.Stake = 0
		pos.Settled = true
	}
	pos.ClosingInProgress = false
	return pos
}

// GetByMarket returns the open (non-settled) position for a market/side
// slot, if any.
func (s *Store) GetByMarket(marketTicker, side string) (*types.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[marketTicker+"|"+side]
	if !ok || pos.Settled {
		return nil, false
	}
	return pos, true
}

// GetOpenPositions returns every non-settled position.
func (s *Store) GetOpenPositions() []*types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if !p.Settled {
			out = append(out, p)
		}
	}
	return out
}

// GetByEvent returns every non-settled position belonging to an event,
// across both of its markets.
func (s *Store) GetByEvent(eventTicker string) []*types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Position
	for _, p := range s.positions {
		if !p.Settled && p.EventTicker == eventTicker {
			out = append(out, p)
		}
	}
	return out
}

// AggregateSide sums stake and weighted entry price for all open positions
// on one side of an event (a side may be split across partial fills that
// upsert into the same slot, but callers that pre-aggregate expect this
// helper regardless).
func AggregateSide(positionsOnSide []*types.Position) (qty int, weightedEntry float64) {
	var totalCost float64
	for _, p := range positionsOnSide {
		qty += p.Stake
		totalCost += p.CostBasis()
	}
	if qty == 0 {
		return 0, 0
	}
	return qty, totalCost / float64(qty)
}

// MarkClosing sets closing_in_progress, recording the initiation time used
// by the 5-minute staleness reaper.
func (s *Store) MarkClosing(marketTicker, side string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.positions[marketTicker+"|"+side]; ok {
		pos.ClosingInProgress = true
		pos.ClosingInitiatedAt = now
	}
}

// ClearClosing clears closing_in_progress without altering stake, used
// when an order is cancelled or fails to route.
func (s *Store) ClearClosing(marketTicker, side string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.positions[marketTicker+"|"+side]; ok {
		pos.ClosingInProgress = false
	}
}

// TouchLastSeenLive refreshes the liveness timestamp used by the stale
// position reaper.
func (s *Store) TouchLastSeenLive(marketTicker, side string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.positions[marketTicker+"|"+side]; ok {
		pos.LastSeenLive = now
		pos.TrackingLost = false
	}
}

// SetEventLock records that exactly one side of an event is open, the
// half-hedged lock consulted by the risk gate before allowing entry on
// the other side.
func (s *Store) SetEventLock(eventTicker, openSideMarketTicker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventLocks[eventTicker] = &types.EventLock{
		EventTicker: eventTicker,
		OpenSide:    openSideMarketTicker,
	}
}

// ClearEventLock removes a half-hedge lock once both sides are open (or
// the event is fully closed).
func (s *Store) ClearEventLock(eventTicker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eventLocks, eventTicker)
}

// PruneEventLocks drops half-hedge locks for events that no longer have
// exactly one side open: the lock's job is done once the hedge fills, and
// it is meaningless once the event has no open positions at all.
func (s *Store) PruneEventLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	openMarkets := make(map[string]map[string]bool)
	for _, p := range s.positions {
		if p.Settled {
			continue
		}
		if openMarkets[p.EventTicker] == nil {
			openMarkets[p.EventTicker] = make(map[string]bool)
		}
		openMarkets[p.EventTicker][p.MarketTicker] = true
	}

	pruned := 0
	for evt := range s.eventLocks {
		if len(openMarkets[evt]) != 1 {
			delete(s.eventLocks, evt)
			pruned++
		}
	}
	return pruned
}

// EventLock returns the half-hedge lock for an event, if any.
func (s *Store) EventLock(eventTicker string) (*types.EventLock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.eventLocks[eventTicker]
	return l, ok
}

// RecordFirstDetection stores the earliest-seen timestamp for an event,
// keeping the oldest of any two writes (an event that flickers in and out
// of the candidate set keeps its original detection time).
func (s *Store) RecordFirstDetection(eventTicker string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.firstDetection[eventTicker]; !ok || ts.Before(existing) {
		s.firstDetection[eventTicker] = ts
	}
}

// FirstDetection returns the recorded first-detection time for an event.
func (s *Store) FirstDetection(eventTicker string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.firstDetection[eventTicker]
	return ts, ok
}

// CleanupOldFirstDetectionTimes drops first-detection entries older than
// maxAge for events no longer in the active set, bounding unbounded growth
// of the map across a long-running process.
func (s *Store) CleanupOldFirstDetectionTimes(activeEventTickers map[string]bool, now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ticker, ts := range s.firstDetection {
		if activeEventTickers[ticker] {
			continue
		}
		if now.Sub(ts) > maxAge {
			delete(s.firstDetection, ticker)
			removed++
		}
	}
	return removed
}

// Snapshot returns a shallow copy of every position, used by persistence
// and the UI tick.
func (s *Store) Snapshot() []types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out
}

// Restore replaces the store's contents, used at startup to load
// persisted state.
func (s *Store) Restore(snapshot []types.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = make(map[string]*types.Position, len(snapshot))
	for i := range snapshot {
		p := snapshot[i]
		s.positions[p.Key()] = &p
	}
}

// ApplyLiveFact overwrites (or inserts) the local record for a market/side
// slot with the exchange's reported stake and cost-weighted average price.
// A position with closing_in_progress set is left untouched: the local
// engine requested the close and the exchange snapshot may simply not have
// caught up yet.
func (s *Store) ApplyLiveFact(marketTicker, eventTicker, side string, liveStake int, liveAvgPrice float64, now time.Time) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := marketTicker + "|" + side
	existing, ok := s.positions[key]

	if ok && existing.ClosingInProgress {
		existing.LastSeenLive = now
		existing.TrackingLost = false
		return false
	}

	if !ok {
		s.positions[key] = &types.Position{
			EventTicker:  eventTicker,
			MarketTicker: marketTicker,
			Side:         side,
			Stake:        liveStake,
			EntryPrice:   liveAvgPrice,
			EntryTime:    now,
			LastSeenLive: now,
		}
		return true
	}

	changed = existing.Stake != liveStake || existing.EntryPrice != liveAvgPrice
	existing.Stake = liveStake
	existing.EntryPrice = liveAvgPrice
	existing.LastSeenLive = now
	existing.TrackingLost = false
	if existing.EventTicker == "" {
		existing.EventTicker = eventTicker
	}
	return changed
}

// MarkSettledIfAbsent marks every open position settled whose (market, side)
// key is not present in liveKeys, used when the exchange no longer reports a
// position the local store still carries open.
func (s *Store) MarkSettledIfAbsent(liveKeys map[string]bool) (settledTickers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, p := range s.positions {
		if p.Settled || p.ClosingInProgress {
			continue
		}
		if !liveKeys[key] {
			p.Settled = true
			p.Stake = 0
			settledTickers = append(settledTickers, p.MarketTicker)
		}
	}
	return settledTickers
}
