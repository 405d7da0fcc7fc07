package grid

import "github.com/sahilchouksey/gradgrid/model"

// FreeRowLimit is how many rows an expired, non-premium user keeps.
const FreeRowLimit = model.FreeRowLimit

// VisibleRows derives the subset of rows the user is entitled to see.
// It is pure and deterministic: the hidden-rows banner and the
// materialized row set are computed from the same call and can never
// disagree. Rows keep their original order; hidden is total minus
// visible.
func VisibleRows(all []Entity, policy VisibilityPolicy) (visible []Entity, hidden int) {
	if policy.SubscriptionStatus == model.SubscriptionExpired && !policy.IsPremium {
		if len(all) <= FreeRowLimit {
			return all, 0
		}
		return all[:FreeRowLimit], len(all) - FreeRowLimit
	}
	return all, 0
}

// NewlyVisible returns the ids present in after but not in before, in
// after's order. On a hidden-to-visible transition only these ids get
// fetched, not the whole table.
func NewlyVisible(before, after []Entity) []string {
	seen := make(map[string]struct{}, len(before))
	for _, e := range before {
		seen[e.ID] = struct{}{}
	}
	var ids []string
	for _, e := range after {
		if _, ok := seen[e.ID]; !ok {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
