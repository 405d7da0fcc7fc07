package grid

import (
	"strings"
	"sync"
	"time"
)

// CellStore is the single source of truth for per-(entity,column) cell
// state. All mutation goes through its atomic setters; readers take an
// immutable snapshot. Writes carry the value's last_updated timestamp
// so a slow backfill or batch response can never clobber a newer write:
// stale writes are silent no-ops, matching how writes to purged keys
// behave after a column or row disappears mid-flight.
type CellStore struct {
	mu      sync.RWMutex
	cells   map[string]Cell
	watcher func()
}

// NewCellStore creates an empty cell store.
func NewCellStore() *CellStore {
	return &CellStore{cells: make(map[string]Cell)}
}

// cellKey builds the canonical "entityID:columnID" key.
func cellKey(entityID, columnID string) string {
	return entityID + ":" + columnID
}

// Watch registers a callback invoked after every effective mutation.
// The materializer uses it to re-run on state changes.
func (s *CellStore) Watch(fn func()) {
	s.mu.Lock()
	s.watcher = fn
	s.mu.Unlock()
}

// SetLoading marks a cell as loading. Any prior value is preserved as a
// stale hint, not shown while loading.
func (s *CellStore) SetLoading(entityID, columnID string) {
	s.mu.Lock()
	cell := s.cells[cellKey(entityID, columnID)]
	cell.StaleValue = cell.Value
	cell.Value = nil
	cell.Loading = true
	s.cells[cellKey(entityID, columnID)] = cell
	watcher := s.watcher
	s.mu.Unlock()
	if watcher != nil {
		watcher()
	}
}

// SetValue atomically clears loading and installs value. This is the
// single commit point after any fetch, edit or push-delivered update.
// at is the value's authoritative last_updated timestamp; a zero at
// means "now". A write older than the cell's current timestamp is
// dropped.
func (s *CellStore) SetValue(entityID, columnID string, value *string, at time.Time) bool {
	if at.IsZero() {
		at = time.Now()
	}

	s.mu.Lock()
	key := cellKey(entityID, columnID)
	cell := s.cells[key]
	if !cell.LastUpdatedAt.IsZero() && at.Before(cell.LastUpdatedAt) {
		s.mu.Unlock()
		return false
	}
	cell.Loading = false
	cell.Value = value
	cell.StaleValue = nil
	cell.LastUpdatedAt = at
	s.cells[key] = cell
	watcher := s.watcher
	s.mu.Unlock()
	if watcher != nil {
		watcher()
	}
	return true
}

// ClearLoading drops a lingering loading flag without installing a
// value, leaving the cell as "no information available".
func (s *CellStore) ClearLoading(entityID, columnID string) {
	s.mu.Lock()
	key := cellKey(entityID, columnID)
	cell, ok := s.cells[key]
	if !ok || !cell.Loading {
		s.mu.Unlock()
		return
	}
	cell.Loading = false
	cell.StaleValue = nil
	s.cells[key] = cell
	watcher := s.watcher
	s.mu.Unlock()
	if watcher != nil {
		watcher()
	}
}

// ClearLoadingForEntity drops loading flags on every cell of an entity.
// Used on terminal status transitions: no further value is coming for
// this cycle.
func (s *CellStore) ClearLoadingForEntity(entityID string) {
	prefix := entityID + ":"
	s.mu.Lock()
	changed := false
	for key, cell := range s.cells {
		if !strings.HasPrefix(key, prefix) || !cell.Loading {
			continue
		}
		cell.Loading = false
		cell.StaleValue = nil
		s.cells[key] = cell
		changed = true
	}
	watcher := s.watcher
	s.mu.Unlock()
	if changed && watcher != nil {
		watcher()
	}
}

// Get returns the current state of a cell. The zero Cell means "not
// requested".
func (s *CellStore) Get(entityID, columnID string) Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cells[cellKey(entityID, columnID)]
}

// ClearForColumn purges every cell of a column. Used by column deletion
// so a reused column id can never leak stale values.
func (s *CellStore) ClearForColumn(columnID string) {
	suffix := ":" + columnID
	s.mu.Lock()
	for key := range s.cells {
		if strings.HasSuffix(key, suffix) {
			delete(s.cells, key)
		}
	}
	watcher := s.watcher
	s.mu.Unlock()
	if watcher != nil {
		watcher()
	}
}

// ClearForEntity purges every cell of an entity. Used on row removal.
func (s *CellStore) ClearForEntity(entityID string) {
	prefix := entityID + ":"
	s.mu.Lock()
	for key := range s.cells {
		if strings.HasPrefix(key, prefix) {
			delete(s.cells, key)
		}
	}
	watcher := s.watcher
	s.mu.Unlock()
	if watcher != nil {
		watcher()
	}
}

// Snapshot returns an immutable copy of the current cell map keyed by
// "entityID:columnID". The materializer renders from snapshots only.
func (s *CellStore) Snapshot() map[string]Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Cell, len(s.cells))
	for k, v := range s.cells {
		out[k] = v
	}
	return out
}

// Len reports the number of tracked cells.
func (s *CellStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}
