package risk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// CooldownStore tracks events that recently tripped a stop-loss, blocking
// re-entry until either the cooldown window elapses or price recovers past
// the price recorded at stop time.
type CooldownStore struct {
	mu      sync.RWMutex
	entries map[string]*types.StopLossCooldown

	path                    string
	logger                  *zap.Logger
	allowRecoveryPriceReset bool
}

// NewCooldownStore creates an empty cooldown store. If path is non-empty,
// Save/Load persist the set to disk.
func NewCooldownStore(path string, allowRecoveryPriceReset bool, logger *zap.Logger) *CooldownStore {
	return &CooldownStore{
		entries:                 make(map[string]*types.StopLossCooldown),
		path:                    path,
		logger:                  logger,
		allowRecoveryPriceReset: allowRecoveryPriceReset,
	}
}

// MarkStopLossed records a stop-loss trip for an event, starting its
// cooldown window.
func (s *CooldownStore) MarkStopLossed(eventTicker string, entryPriceAtStop float64, now time.Time) {
	s.mu.Lock()
	s.entries[eventTicker] = &types.StopLossCooldown{
		EventTicker:      eventTicker,
		Timestamp:        now,
		EntryPriceAtStop: entryPriceAtStop,
	}
	s.mu.Unlock()

	s.logger.Warn("event-stop-lossed",
		zap.String("event_ticker", eventTicker),
		zap.Float64("entry_price_at_stop", entryPriceAtStop))
}

// InCooldown reports whether an event is still blocked from new entries.
// If allowRecoveryPriceReset is set and currentPrice has recovered to at
// least the stop-time price, the cooldown clears immediately regardless of
// elapsed time.
func (s *CooldownStore) InCooldown(eventTicker string, currentPrice float64, window time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[eventTicker]
	if !ok {
		return false
	}

	if s.allowRecoveryPriceReset && entry.Recovered(currentPrice) {
		delete(s.entries, eventTicker)
		s.logger.Info("stop-loss-cooldown-cleared-on-recovery",
			zap.String("event_ticker", eventTicker),
			zap.Float64("current_price", currentPrice),
			zap.Float64("entry_price_at_stop", entry.EntryPriceAtStop))
		return false
	}

	return !entry.Expired(now, window)
}

// Clear removes a cooldown entry unconditionally.
func (s *CooldownStore) Clear(eventTicker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, eventTicker)
}

// Save persists the cooldown set to disk using write-to-temp-then-rename.
func (s *CooldownStore) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	snapshot := make(map[string]*types.StopLossCooldown, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cooldowns: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".cooldowns-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load restores a previously persisted cooldown set. A missing file is not
// an error.
func (s *CooldownStore) Load() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cooldowns file: %w", err)
	}

	var snapshot map[string]*types.StopLossCooldown
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("unmarshal cooldowns: %w", err)
	}

	s.mu.Lock()
	s.entries = snapshot
	s.mu.Unlock()
	return nil
}
