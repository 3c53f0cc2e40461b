package positions

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// persistedState is the full on-disk shape written atomically by Persist
// and read back by Load: positions plus the auxiliary collections that
// share the store's lock.
type persistedState struct {
	Positions      []types.Position         `json:"positions"`
	EventLocks     []types.EventLock        `json:"event_locks"`
	FirstDetection map[string]time.Time     `json:"first_detection"`
	SavedAt        time.Time                `json:"saved_at"`
}

// Persister writes the position store to a JSON file using write-to-temp-
// then-rename, so a crash mid-write never corrupts the previous snapshot.
type Persister struct {
	path   string
	logger *zap.Logger
}

// NewPersister creates a Persister that reads/writes the given path.
func NewPersister(path string, logger *zap.Logger) *Persister {
	return &Persister{path: path, logger: logger}
}

// Save writes the store's current contents to disk.
func (p *Persister) Save(s *Store) error {
	s.mu.RLock()
	state := persistedState{
		Positions:      make([]types.Position, 0, len(s.positions)),
		EventLocks:     make([]types.EventLock, 0, len(s.eventLocks)),
		FirstDetection: make(map[string]time.Time, len(s.firstDetection)),
		SavedAt:        time.Now(),
	}
	for _, pos := range s.positions {
		state.Positions = append(state.Positions, *pos)
	}
	for _, lock := range s.eventLocks {
		state.EventLocks = append(state.EventLocks, *lock)
	}
	for k, v := range s.firstDetection {
		state.FirstDetection[k] = v
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal position state: %w", err)
	}

	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".positions-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	p.logger.Debug("positions-persisted",
		zap.String("path", p.path),
		zap.Int("count", len(state.Positions)))
	return nil
}

// Load reads a previously persisted snapshot and restores it into s. A
// missing file is not an error: the engine starts with an empty book.
func (p *Persister) Load(s *Store) error {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		p.logger.Info("no-persisted-positions-file", zap.String("path", p.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read positions file: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("unmarshal position state: %w", err)
	}

	s.Restore(state.Positions)

	s.mu.Lock()
	for _, lock := range state.EventLocks {
		l := lock
		s.eventLocks[l.EventTicker] = &l
	}
	for k, v := range state.FirstDetection {
		s.firstDetection[k] = v
	}
	s.mu.Unlock()

	p.logger.Info("positions-restored",
		zap.String("path", p.path),
		zap.Int("count", len(state.Positions)),
		zap.Time("saved_at", state.SavedAt))
	return nil
}
