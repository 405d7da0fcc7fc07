package grid

import (
	"testing"

	"github.com/sahilchouksey/gradgrid/model"
)

func fiveEntities() []Entity {
	return []Entity{{ID: "U1"}, {ID: "U2"}, {ID: "U3"}, {ID: "U4"}, {ID: "U5"}}
}

func TestVisibleRows_ExpiredNonPremiumCapped(t *testing.T) {
	visible, hidden := VisibleRows(fiveEntities(), VisibilityPolicy{
		SubscriptionStatus: model.SubscriptionExpired,
	})

	if len(visible) != 3 || hidden != 2 {
		t.Fatalf("expected 3 visible / 2 hidden, got %d / %d", len(visible), hidden)
	}
	for i, want := range []string{"U1", "U2", "U3"} {
		if visible[i].ID != want {
			t.Fatalf("expected first rows in original order, got %v", visible)
		}
	}
}

func TestVisibleRows_PremiumSeesAll(t *testing.T) {
	visible, hidden := VisibleRows(fiveEntities(), VisibilityPolicy{
		SubscriptionStatus: model.SubscriptionExpired,
		IsPremium:          true,
	})
	if len(visible) != 5 || hidden != 0 {
		t.Fatalf("expected 5 visible / 0 hidden, got %d / %d", len(visible), hidden)
	}
}

func TestVisibleRows_OtherTiersUncapped(t *testing.T) {
	for _, status := range []model.SubscriptionStatus{
		model.SubscriptionActive,
		model.SubscriptionCancelled,
		model.SubscriptionFree,
	} {
		visible, hidden := VisibleRows(fiveEntities(), VisibilityPolicy{SubscriptionStatus: status})
		if len(visible) != 5 || hidden != 0 {
			t.Fatalf("status %s: expected all rows, got %d visible / %d hidden", status, len(visible), hidden)
		}
	}
}

func TestVisibleRows_FewerRowsThanCap(t *testing.T) {
	visible, hidden := VisibleRows([]Entity{{ID: "U1"}}, VisibilityPolicy{
		SubscriptionStatus: model.SubscriptionExpired,
	})
	if len(visible) != 1 || hidden != 0 {
		t.Fatalf("expected 1 visible / 0 hidden, got %d / %d", len(visible), hidden)
	}
}

func TestNewlyVisible(t *testing.T) {
	all := fiveEntities()
	ids := NewlyVisible(all[:3], all)
	if len(ids) != 2 || ids[0] != "U4" || ids[1] != "U5" {
		t.Fatalf("expected [U4 U5], got %v", ids)
	}
	if got := NewlyVisible(all, all); got != nil {
		t.Fatalf("expected no newly visible ids, got %v", got)
	}
}
