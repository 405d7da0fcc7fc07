package grid

import (
	"sort"
	"sync"
	"time"
)

// Default debounce windows. Detail refreshes are rarer and user-visible
// sooner; cell refreshes are higher-volume and benefit more from
// coalescing, so they wait longer for the burst to finish.
const (
	DetailFetchDelay = 500 * time.Millisecond
	CellFetchDelay   = 1000 * time.Millisecond
)

// BatchFetcher coalesces many "this entity needs fresh data" signals
// arriving within a short window into one network round trip. The timer
// is trailing-edge: it fires delay after the last enqueue, not the
// first, which maximizes coalescing under bursty pushes.
type BatchFetcher struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	onFire  func(ids []string)
}

// NewBatchFetcher creates a fetcher firing onFire with the deduplicated
// id union once the debounce window closes.
func NewBatchFetcher(delay time.Duration, onFire func(ids []string)) *BatchFetcher {
	if delay <= 0 {
		delay = CellFetchDelay
	}
	return &BatchFetcher{
		delay:   delay,
		pending: make(map[string]struct{}),
		onFire:  onFire,
	}
}

// Enqueue adds an entity id to the pending set and restarts the window.
func (f *BatchFetcher) Enqueue(id string) {
	if id == "" {
		return
	}
	f.mu.Lock()
	f.pending[id] = struct{}{}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.delay, f.fire)
	f.mu.Unlock()
}

// EnqueueAll adds several ids in one window restart.
func (f *BatchFetcher) EnqueueAll(ids []string) {
	if len(ids) == 0 {
		return
	}
	f.mu.Lock()
	for _, id := range ids {
		if id != "" {
			f.pending[id] = struct{}{}
		}
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.delay, f.fire)
	f.mu.Unlock()
}

// Flush fires immediately with whatever is pending, bypassing the
// timer. Used on shutdown and in tests.
func (f *BatchFetcher) Flush() {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()
	f.fire()
}

// Pending reports the number of ids awaiting the next batch.
func (f *BatchFetcher) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Stop cancels any armed timer without firing. Pending ids are kept and
// will go out with the next enqueue.
func (f *BatchFetcher) Stop() {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()
}

// fire snapshots and atomically clears the pending set, then issues the
// batch exactly once for the union of enqueued ids.
func (f *BatchFetcher) fire() {
	f.mu.Lock()
	pending := f.pending
	f.pending = make(map[string]struct{})
	fn := f.onFire
	f.mu.Unlock()

	if fn == nil || len(pending) == 0 {
		return
	}

	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fn(ids)
}
