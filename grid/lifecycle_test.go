package grid

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLifecycle_AddColumnMarksLoadingBeforeBackend(t *testing.T) {
	api := newFakeAPI()
	store := NewCellStore()
	registry := NewRegistry(store)
	lc := NewLifecycle(api, registry, store)

	visible := []Entity{{ID: "U1"}, {ID: "U2"}, {ID: "U3"}}
	loadingAtFirstAsk := 0
	api.answer = func(question, universityID string) (string, error) {
		if loadingAtFirstAsk == 0 {
			for _, e := range visible {
				if store.Get(e.ID, "col-Tuition").Loading {
					loadingAtFirstAsk++
				}
			}
		}
		return "42", nil
	}

	col, err := lc.AddColumn(context.Background(), "Tuition", visible)
	if err != nil {
		t.Fatalf("add column failed: %v", err)
	}
	if col.Title != "Tuition" {
		t.Fatalf("unexpected column: %+v", col)
	}
	if loadingAtFirstAsk != 3 {
		t.Fatalf("expected all cells loading before the first retrieval call, got %d", loadingAtFirstAsk)
	}
	if _, ok := registry.Get(col.ID); !ok {
		t.Fatalf("column not registered")
	}
}

func TestLifecycle_BackfillRowIsolation(t *testing.T) {
	api := newFakeAPI()
	store := NewCellStore()
	lc := NewLifecycle(api, NewRegistry(store), store)

	visible := []Entity{{ID: "U1"}, {ID: "U2"}, {ID: "U3"}, {ID: "U4"}, {ID: "U5"}}
	api.answer = func(question, universityID string) (string, error) {
		if universityID == "U2" {
			return "", errors.New("retrieval backend unavailable")
		}
		return "value for " + universityID, nil
	}

	col, err := lc.AddColumn(context.Background(), "Ranking", visible)
	if err != nil {
		t.Fatalf("add column failed: %v", err)
	}

	for _, id := range []string{"U1", "U3", "U4", "U5"} {
		cell := store.Get(id, col.ID)
		if cell.Loading || cell.Value == nil {
			t.Fatalf("row %s should have a value despite U2 failing: %+v", id, cell)
		}
	}
	failed := store.Get("U2", col.ID)
	if failed.Loading {
		t.Fatalf("failed row left loading")
	}
	if failed.Value != nil {
		t.Fatalf("failed row should read as no information available, got %q", *failed.Value)
	}
}

func TestLifecycle_BackfillIsSequential(t *testing.T) {
	api := newFakeAPI()
	store := NewCellStore()
	lc := NewLifecycle(api, NewRegistry(store), store)

	visible := []Entity{{ID: "U1"}, {ID: "U2"}, {ID: "U3"}}
	if _, err := lc.AddColumn(context.Background(), "Fees", visible); err != nil {
		t.Fatalf("add column failed: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	want := []string{"U1", "U2", "U3"}
	if len(api.asks) != len(want) {
		t.Fatalf("expected %d retrieval calls, got %d", len(want), len(api.asks))
	}
	for i := range want {
		if api.asks[i] != want[i] {
			t.Fatalf("expected row order %v, got %v", want, api.asks)
		}
	}
}

func TestLifecycle_DeleteColumnOwnership(t *testing.T) {
	api := newFakeAPI()
	store := NewCellStore()
	registry := NewRegistry(store)
	lc := NewLifecycle(api, registry, store)

	col, err := lc.AddColumn(context.Background(), "Tuition", nil)
	if err != nil {
		t.Fatalf("add column failed: %v", err)
	}
	store.SetValue("U1", col.ID, strptr("x"), time.Time{})

	if err := lc.DeleteColumn(context.Background(), col.ID, SessionUser{Email: "other@x.com"}); err == nil {
		t.Fatalf("non-owner delete must be rejected before any mutation")
	}
	if cell := store.Get("U1", col.ID); cell.Value == nil {
		t.Fatalf("rejected delete mutated the store")
	}

	if err := lc.DeleteColumn(context.Background(), col.ID, SessionUser{Email: "me@x.com"}); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	if cell := store.Get("U1", col.ID); cell.Value != nil {
		t.Fatalf("column deletion did not purge cells")
	}
	if _, ok := registry.Get(col.ID); ok {
		t.Fatalf("column still registered after delete")
	}
}
