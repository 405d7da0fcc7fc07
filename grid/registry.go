package grid

import (
	"sort"
	"sync"

	"github.com/sahilchouksey/gradgrid/model"
)

// Registry is the engine-side schema of fixed plus dynamic columns.
// Fixed columns are seeded at construction and can never be removed;
// dynamic columns mirror what the columns endpoint returns.
type Registry struct {
	mu      sync.RWMutex
	store   *CellStore
	fixed   []model.Column
	dynamic map[string]model.Column
	order   []string
}

// NewRegistry creates a registry seeded with the fixed columns, bound
// to the cell store it purges on column removal.
func NewRegistry(store *CellStore) *Registry {
	return &Registry{
		store:   store,
		fixed:   model.FixedColumns(),
		dynamic: make(map[string]model.Column),
	}
}

// List returns fixed columns followed by dynamic columns in the order
// they were registered.
func (r *Registry) List() []model.Column {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Column, 0, len(r.fixed)+len(r.order))
	out = append(out, r.fixed...)
	for _, id := range r.order {
		out = append(out, r.dynamic[id])
	}
	return out
}

// Get looks up a column by id, fixed or dynamic.
func (r *Registry) Get(id string) (model.Column, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.fixed {
		if c.ID == id {
			return c, true
		}
	}
	c, ok := r.dynamic[id]
	return c, ok
}

// Add registers a dynamic column. Re-registering an id updates it in
// place without changing its position.
func (r *Registry) Add(col model.Column) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.dynamic[col.ID]; !exists {
		r.order = append(r.order, col.ID)
	}
	r.dynamic[col.ID] = col
}

// Replace swaps the full dynamic column set, keeping a stable sort by
// creation time for columns the server returned unordered.
func (r *Registry) Replace(cols []model.Column) {
	sorted := make([]model.Column, len(cols))
	copy(sorted, cols)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynamic = make(map[string]model.Column, len(sorted))
	r.order = r.order[:0]
	for _, c := range sorted {
		if model.IsFixed(c.ID) {
			continue
		}
		r.dynamic[c.ID] = c
		r.order = append(r.order, c.ID)
	}
}

// Remove unregisters a dynamic column and purges its cells from the
// store so a reused id can never surface stale values. Fixed columns
// are ignored.
func (r *Registry) Remove(id string) {
	if model.IsFixed(id) {
		return
	}
	r.mu.Lock()
	if _, ok := r.dynamic[id]; ok {
		delete(r.dynamic, id)
		for i, oid := range r.order {
			if oid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	r.store.ClearForColumn(id)
}

// CanDelete reports whether user may delete col: admins always, owners
// only for their own non-fixed, non-global columns.
func CanDelete(col model.Column, user SessionUser) bool {
	if user.Admin {
		return true
	}
	if col.Scope == model.ScopeFixed || col.Scope == model.ScopeGlobal {
		return false
	}
	return col.OwnerEmail != "" && col.OwnerEmail == user.Email
}
