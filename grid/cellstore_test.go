package grid

import (
	"testing"
	"time"
)

func strptr(s string) *string { return &s }

func TestCellStore_NotRequestedIsNotAnError(t *testing.T) {
	s := NewCellStore()
	cell := s.Get("U1", "C1")
	if cell.Loading || cell.Value != nil {
		t.Fatalf("zero cell must read as not requested, got %+v", cell)
	}
}

func TestCellStore_SetLoadingPreservesStaleHint(t *testing.T) {
	s := NewCellStore()
	s.SetValue("U1", "C1", strptr("old"), time.Time{})
	s.SetLoading("U1", "C1")

	cell := s.Get("U1", "C1")
	if !cell.Loading {
		t.Fatalf("expected loading")
	}
	if cell.Value != nil {
		t.Fatalf("loading cell must not expose a current value")
	}
	if cell.StaleValue == nil || *cell.StaleValue != "old" {
		t.Fatalf("prior value should survive as stale hint, got %+v", cell)
	}
}

func TestCellStore_SetValueClearsLoading(t *testing.T) {
	s := NewCellStore()
	s.SetLoading("U1", "C1")
	s.SetValue("U1", "C1", strptr("v"), time.Time{})

	cell := s.Get("U1", "C1")
	if cell.Loading {
		t.Fatalf("SetValue must clear loading")
	}
	if cell.Value == nil || *cell.Value != "v" {
		t.Fatalf("expected committed value, got %+v", cell)
	}
	if cell.StaleValue != nil {
		t.Fatalf("stale hint should be dropped on commit")
	}
}

func TestCellStore_StaleWriteIsDropped(t *testing.T) {
	s := NewCellStore()
	now := time.Now()
	s.SetValue("U1", "C1", strptr("manual edit"), now)

	if s.SetValue("U1", "C1", strptr("slow backfill"), now.Add(-time.Minute)) {
		t.Fatalf("older write must be rejected")
	}
	cell := s.Get("U1", "C1")
	if *cell.Value != "manual edit" {
		t.Fatalf("newer value clobbered by stale write: %q", *cell.Value)
	}
}

func TestCellStore_ClearForColumnPurgesEverything(t *testing.T) {
	s := NewCellStore()
	s.SetValue("U1", "C1", strptr("a"), time.Time{})
	s.SetLoading("U2", "C1")
	s.SetValue("U1", "C2", strptr("keep"), time.Time{})

	s.ClearForColumn("C1")

	for _, id := range []string{"U1", "U2"} {
		cell := s.Get(id, "C1")
		if cell.Loading || cell.Value != nil {
			t.Fatalf("cell %s:C1 not purged: %+v", id, cell)
		}
	}
	if cell := s.Get("U1", "C2"); cell.Value == nil {
		t.Fatalf("unrelated column was purged")
	}
}

func TestCellStore_ClearForEntity(t *testing.T) {
	s := NewCellStore()
	s.SetValue("U1", "C1", strptr("a"), time.Time{})
	s.SetValue("U1", "C2", strptr("b"), time.Time{})
	s.SetValue("U2", "C1", strptr("keep"), time.Time{})

	s.ClearForEntity("U1")

	if s.Len() != 1 {
		t.Fatalf("expected 1 surviving cell, got %d", s.Len())
	}
	if cell := s.Get("U2", "C1"); cell.Value == nil || *cell.Value != "keep" {
		t.Fatalf("unrelated entity was purged")
	}
}

func TestCellStore_ClearLoadingForEntityLeavesValues(t *testing.T) {
	s := NewCellStore()
	s.SetValue("U1", "C1", strptr("done"), time.Time{})
	s.SetLoading("U1", "C2")
	s.SetLoading("U2", "C2")

	s.ClearLoadingForEntity("U1")

	if cell := s.Get("U1", "C1"); cell.Value == nil {
		t.Fatalf("committed value lost")
	}
	if cell := s.Get("U1", "C2"); cell.Loading {
		t.Fatalf("loading flag not cleared")
	}
	if cell := s.Get("U2", "C2"); !cell.Loading {
		t.Fatalf("other entity's loading flag cleared")
	}
}

func TestCellStore_WatchFiresOnMutation(t *testing.T) {
	s := NewCellStore()
	fired := 0
	s.Watch(func() { fired++ })

	s.SetLoading("U1", "C1")
	s.SetValue("U1", "C1", strptr("v"), time.Time{})
	if fired != 2 {
		t.Fatalf("expected 2 notifications, got %d", fired)
	}
}
