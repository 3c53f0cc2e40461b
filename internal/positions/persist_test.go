package positions

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPersister_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	persister := NewPersister(path, zap.NewNop())

	now := time.Now().Truncate(time.Second)
	src := New(zap.NewNop())
	src.UpsertFill("KXNBAGAME-25NOV01BOSLAL-BOS", "KXNBAGAME-25NOV01BOSLAL", "yes", 100, 0.40, now)
	src.UpsertFill("KXNBAGAME-25NOV01BOSLAL-LAL", "KXNBAGAME-25NOV01BOSLAL", "yes", 95, 0.55, now)
	src.SetEventLock("KXNBAGAME-25NOV02NYKMIA", "KXNBAGAME-25NOV02NYKMIA-NYK")
	src.RecordFirstDetection("KXNBAGAME-25NOV01BOSLAL", now.Add(-10*time.Minute))

	if err := persister.Save(src); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := New(zap.NewNop())
	if err := persister.Load(dst); err != nil {
		t.Fatalf("Load: %v", err)
	}

	open := dst.GetOpenPositions()
	if len(open) != 2 {
		t.Fatalf("expected 2 open positions restored, got %d", len(open))
	}
	pos, ok := dst.GetByMarket("KXNBAGAME-25NOV01BOSLAL-BOS", "yes")
	if !ok {
		t.Fatal("expected restored position for BOS market")
	}
	if pos.Stake != 100 || pos.EntryPrice != 0.40 {
		t.Errorf("restored position drifted: stake=%d entry=%f", pos.Stake, pos.EntryPrice)
	}

	if _, ok := dst.EventLock("KXNBAGAME-25NOV02NYKMIA"); !ok {
		t.Error("expected event lock to survive the round trip")
	}
	firstSeen, ok := dst.FirstDetection("KXNBAGAME-25NOV01BOSLAL")
	if !ok {
		t.Fatal("expected first-detection time to survive the round trip")
	}
	if !firstSeen.Equal(now.Add(-10 * time.Minute)) {
		t.Errorf("first-detection time drifted: %v", firstSeen)
	}
}

func TestPersister_LoadMissingFileStartsEmpty(t *testing.T) {
	persister := NewPersister(filepath.Join(t.TempDir(), "nope.json"), zap.NewNop())
	s := New(zap.NewNop())
	if err := persister.Load(s); err != nil {
		t.Fatalf("expected missing file to be fine, got %v", err)
	}
	if len(s.GetOpenPositions()) != 0 {
		t.Error("expected empty store")
	}
}
