package risk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ExitedSet records events where the aggressive absolute-exit rule fired;
// such events are permanently blocked from new entries for the session.
// Durable across restarts, same persisted-map shape as CooldownStore.
type ExitedSet struct {
	mu      sync.RWMutex
	entries map[string]time.Time

	path   string
	logger *zap.Logger
}

// NewExitedSet creates an empty set. If path is non-empty, Save/Load
// persist it to disk.
func NewExitedSet(path string, logger *zap.Logger) *ExitedSet {
	return &ExitedSet{
		entries: make(map[string]time.Time),
		path:    path,
		logger:  logger,
	}
}

// Mark permanently blocks an event from further entries this session.
func (s *ExitedSet) Mark(eventTicker string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[eventTicker] = now
	s.logger.Warn("event-seven-pct-exited-permanent-block", zap.String("event_ticker", eventTicker))
}

// Contains reports whether an event has tripped the permanent block.
func (s *ExitedSet) Contains(eventTicker string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[eventTicker]
	return ok
}

// Save persists the set to disk using write-to-temp-then-rename.
func (s *ExitedSet) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	snapshot := make(map[string]time.Time, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal exited set: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".exited-*.tmp")
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

// Load restores a previously persisted set. A missing file is not an error.
func (s *ExitedSet) Load() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read exited set file: %w", err)
	}

	var snapshot map[string]time.Time
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("unmarshal exited set: %w", err)
	}

	s.mu.Lock()
	s.entries = snapshot
	s.mu.Unlock()
	return nil
}
