package positions

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func testStore() *Store {
	return New(zap.NewNop())
}

func TestUpsertFill_OpensNewPosition(t *testing.T) {
	s := testStore()
	now := time.Now()

	pos := s.UpsertFill("KXNBA-25JUL29LALGSW-LAL", "KXNBA-25JUL29LALGSW", "yes", 100, 0.45, now)

	if pos.Stake != 100 {
		t.Errorf("expected stake 100, got %d", pos.Stake)
	}
	if pos.EntryPrice != 0.45 {
		t.Errorf("expected entry price 0.45, got %f", pos.EntryPrice)
	}
}

func TestUpsertFill_AveragesExistingPosition(t *testing.T) {
	s := testStore()
	now := time.Now()

	s.UpsertFill("T-LAL", "E", "yes", 100, 0.40, now)
	pos := s.UpsertFill("T-LAL", "E", "yes", 100, 0.60, now)

	if pos.Stake != 200 {
		t.Errorf("expected stake 200, got %d", pos.Stake)
	}
	wantEntry := 0.50
	if diff := pos.EntryPrice - wantEntry; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected averaged entry 0.50, got %f", pos.EntryPrice)
	}
}

func TestUpsertFill_SettledSlotReopens(t *testing.T) {
	s := testStore()
	now := time.Now()

	s.UpsertFill("T-LAL", "E", "yes", 100, 0.40, now)
	s.DecrementStake("T-LAL", "yes", 100)

	if _, ok := s.GetByMarket("T-LAL", "yes"); ok {
		t.Fatal("expected position to be settled and absent from open set")
	}

	pos := s.UpsertFill("T-LAL", "E", "yes", 50, 0.55, now)
	if pos.Stake != 50 {
		t.Errorf("expected fresh stake 50, got %d", pos.Stake)
	}
	if pos.Settled {
		t.Error("expected reopened position to be non-settled")
	}
}

func TestDecrementStake_SettlesAtZero(t *testing.T) {
	s := testStore()
	now := time.Now()

	s.UpsertFill("T-LAL", "E", "yes", 100, 0.40, now)
	pos := s.DecrementStake("T-LAL", "yes", 100)

	if !pos.Settled {
		t.Error("expected position to be settled")
	}
	if pos.Stake != 0 {
		t.Errorf("expected stake 0, got %d", pos.Stake)
	}
}

func TestGetByEvent(t *testing.T) {
	s := testStore()
	now := time.Now()

	s.UpsertFill("T-LAL", "E", "yes", 100, 0.40, now)
	s.UpsertFill("T-GSW", "E", "yes", 50, 0.55, now)
	s.UpsertFill("T-OTHER", "F", "yes", 10, 0.30, now)

	got := s.GetByEvent("E")
	if len(got) != 2 {
		t.Fatalf("expected 2 positions for event E, got %d", len(got))
	}
}

func TestAggregateSide(t *testing.T) {
	s := testStore()
	now := time.Now()

	s.UpsertFill("T-LAL", "E", "yes", 100, 0.40, now)
	s.UpsertFill("T-GSW", "E", "yes", 50, 0.60, now)

	qty, entry := AggregateSide(s.GetByEvent("E"))
	if qty != 150 {
		t.Errorf("expected qty 150, got %d", qty)
	}
	wantEntry := (100*0.40 + 50*0.60) / 150
	if diff := entry - wantEntry; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected weighted entry %f, got %f", wantEntry, entry)
	}
}

func TestEventLock(t *testing.T) {
	s := testStore()
	s.SetEventLock("E", "T-LAL")

	lock, ok := s.EventLock("E")
	if !ok {
		t.Fatal("expected event lock to exist")
	}
	if lock.OpenSide != "T-LAL" {
		t.Errorf("expected open side T-LAL, got %s", lock.OpenSide)
	}

	s.ClearEventLock("E")
	if _, ok := s.EventLock("E"); ok {
		t.Error("expected event lock to be cleared")
	}
}

func TestIsClosingStaleReaping(t *testing.T) {
	s := testStore()
	now := time.Now()

	s.UpsertFill("T-LAL", "E", "yes", 100, 0.40, now)
	s.MarkClosing("T-LAL", "yes", now.Add(-10*time.Minute))

	reaped := s.ReapStaleClosingFlags(now, 5*time.Minute)
	if reaped != 1 {
		t.Fatalf("expected 1 reaped flag, got %d", reaped)
	}

	pos, _ := s.GetByMarket("T-LAL", "yes")
	if pos.ClosingInProgress {
		t.Error("expected closing flag cleared after reap")
	}
}

func TestRecordFirstDetectionKeepsEarliest(t *testing.T) {
	s := testStore()
	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()

	s.RecordFirstDetection("E", t2)
	s.RecordFirstDetection("E", t1)

	got, ok := s.FirstDetection("E")
	if !ok {
		t.Fatal("expected first detection to exist")
	}
	if !got.Equal(t1) {
		t.Errorf("expected earliest timestamp kept, got %v want %v", got, t1)
	}
}

func TestPruneEventLocks(t *testing.T) {
	s := testStore()
	now := time.Now()

	// Event A: one side open, lock stays.
	s.UpsertFill("A-HOME", "A", "yes", 50, 0.40, now)
	s.SetEventLock("A", "A-HOME")

	// Event B: both sides open, lock released.
	s.UpsertFill("B-HOME", "B", "yes", 50, 0.40, now)
	s.UpsertFill("B-AWAY", "B", "yes", 50, 0.55, now)
	s.SetEventLock("B", "B-HOME")

	// Event C: fully closed out, lock released.
	s.UpsertFill("C-HOME", "C", "yes", 50, 0.40, now)
	s.SetEventLock("C", "C-HOME")
	s.DecrementStake("C-HOME", "yes", 50)

	pruned := s.PruneEventLocks()
	if pruned != 2 {
		t.Fatalf("expected 2 locks pruned, got %d", pruned)
	}
	if _, ok := s.EventLock("A"); !ok {
		t.Error("expected half-hedged event A to keep its lock")
	}
	if _, ok := s.EventLock("B"); ok {
		t.Error("expected neutralized event B's lock released")
	}
	if _, ok := s.EventLock("C"); ok {
		t.Error("expected closed-out event C's lock released")
	}
}
