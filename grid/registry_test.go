package grid

import (
	"testing"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

func TestRegistry_ListStartsWithFixedColumns(t *testing.T) {
	r := NewRegistry(NewCellStore())
	cols := r.List()
	fixed := model.FixedColumns()
	if len(cols) != len(fixed) {
		t.Fatalf("expected %d fixed columns, got %d", len(fixed), len(cols))
	}
	for i, c := range fixed {
		if cols[i].ID != c.ID {
			t.Fatalf("column %d: expected %s, got %s", i, c.ID, cols[i].ID)
		}
	}
}

func TestRegistry_ReplaceSortsByCreation(t *testing.T) {
	r := NewRegistry(NewCellStore())
	base := time.Now()
	r.Replace([]model.Column{
		{ID: "C2", Title: "Second", CreatedAt: base.Add(time.Hour)},
		{ID: "C1", Title: "First", CreatedAt: base},
		{ID: model.FixedColumnName, Title: "Name"}, // fixed ids must be ignored
	})

	cols := r.List()
	dynamic := cols[len(model.FixedColumns()):]
	if len(dynamic) != 2 || dynamic[0].ID != "C1" || dynamic[1].ID != "C2" {
		t.Fatalf("unexpected dynamic column order: %+v", dynamic)
	}
}

func TestRegistry_RemovePurgesStore(t *testing.T) {
	store := NewCellStore()
	r := NewRegistry(store)
	r.Add(model.Column{ID: "C1", Title: "Tuition", Scope: model.ScopeUser})

	store.SetValue("U1", "C1", strptr("$50k"), time.Time{})
	store.SetLoading("U2", "C1")
	store.SetValue("U1", "other", strptr("keep"), time.Time{})

	r.Remove("C1")

	if _, ok := r.Get("C1"); ok {
		t.Fatalf("column still resolvable after remove")
	}
	if got := store.Get("U1", "C1"); got.Value != nil {
		t.Fatalf("value survived column removal: %+v", got)
	}
	if got := store.Get("U2", "C1"); got.Loading {
		t.Fatalf("loading flag survived column removal")
	}
	if got := store.Get("U1", "other"); got.Value == nil {
		t.Fatalf("removal purged an unrelated column")
	}
}

func TestRegistry_RemoveFixedIsNoop(t *testing.T) {
	store := NewCellStore()
	r := NewRegistry(store)
	r.Remove(model.FixedColumnName)
	if _, ok := r.Get(model.FixedColumnName); !ok {
		t.Fatalf("fixed column removed")
	}
}

func TestCanDelete(t *testing.T) {
	owner := SessionUser{Email: "me@x.com"}
	other := SessionUser{Email: "other@x.com"}
	admin := SessionUser{Email: "admin@x.com", Admin: true}

	cases := []struct {
		name string
		col  model.Column
		user SessionUser
		want bool
	}{
		{"owner deletes own column", model.Column{Scope: model.ScopeUser, OwnerEmail: "me@x.com"}, owner, true},
		{"non-owner rejected", model.Column{Scope: model.ScopeUser, OwnerEmail: "me@x.com"}, other, false},
		{"fixed never deletable", model.Column{Scope: model.ScopeFixed}, owner, false},
		{"global not deletable by members", model.Column{Scope: model.ScopeGlobal}, owner, false},
		{"admin deletes global", model.Column{Scope: model.ScopeGlobal}, admin, true},
		{"admin deletes fixed", model.Column{Scope: model.ScopeFixed}, admin, true},
		{"admin deletes someone else's", model.Column{Scope: model.ScopeUser, OwnerEmail: "me@x.com"}, admin, true},
		{"ownerless user column rejected", model.Column{Scope: model.ScopeUser}, owner, false},
	}

	for _, tc := range cases {
		if got := CanDelete(tc.col, tc.user); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
