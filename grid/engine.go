package grid

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

// Engine binds the cell store, registry, ingestion pipeline, batch
// fetchers and visibility policy into one grid session for a single
// user. All reads happen through materialized snapshots; all writes
// funnel through the store's atomic setters, so independent fetches may
// run concurrently without further locking.
type Engine struct {
	api  API
	user SessionUser

	store     *CellStore
	registry  *Registry
	lifecycle *Lifecycle
	pipeline  *Pipeline

	cellFetcher   *BatchFetcher
	detailFetcher *BatchFetcher
	processing    *ProcessingSet

	mu        sync.RWMutex
	entities  []Entity
	policy    VisibilityPolicy
	overrides map[string]model.UniversityStatus
	hidden    int
	onChange  func()
}

// Options tune the engine; zero values take the defaults.
type Options struct {
	CellFetchDelay   time.Duration
	DetailFetchDelay time.Duration
}

// NewEngine wires an engine for the given session user.
func NewEngine(api API, user SessionUser, opts Options) *Engine {
	if opts.CellFetchDelay <= 0 {
		opts.CellFetchDelay = CellFetchDelay
	}
	if opts.DetailFetchDelay <= 0 {
		opts.DetailFetchDelay = DetailFetchDelay
	}

	store := NewCellStore()
	registry := NewRegistry(store)

	e := &Engine{
		api:        api,
		user:       user,
		store:      store,
		registry:   registry,
		lifecycle:  NewLifecycle(api, registry, store),
		processing: NewProcessingSet(),
		overrides:  make(map[string]model.UniversityStatus),
	}
	e.cellFetcher = NewBatchFetcher(opts.CellFetchDelay, e.fetchCellBatch)
	e.detailFetcher = NewBatchFetcher(opts.DetailFetchDelay, e.fetchDetailBatch)
	e.pipeline = &Pipeline{
		User:        user,
		Store:       store,
		Refresh:     e.cellFetcher,
		Processing:  e.processing,
		SetStatus:   e.setStatusOverride,
		FullRefresh: e.fullRefresh,
	}
	store.Watch(e.changed)
	return e
}

// Store exposes the cell store for rendering-adjacent helpers.
func (e *Engine) Store() *CellStore { return e.store }

// Registry exposes the column registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Pipeline exposes the ingestion pipeline for the push-channel stream.
func (e *Engine) Pipeline() *Pipeline { return e.pipeline }

// Processing exposes the mid-computation id set (UI affordance only).
func (e *Engine) Processing() *ProcessingSet { return e.processing }

// OnChange registers a hook invoked after every state mutation; the
// renderer re-materializes there.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

func (e *Engine) changed() {
	e.mu.RLock()
	fn := e.onChange
	e.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Load performs the initial sync: columns, subscription tier, entity
// list, then one coalesced cell fetch covering every visible row.
func (e *Engine) Load(ctx context.Context) error {
	cols, err := e.api.ListColumns(ctx)
	if err != nil {
		return err
	}
	e.registry.Replace(cols)

	policy, err := e.api.SubscriptionStatus(ctx)
	if err != nil {
		return err
	}

	entities, err := e.api.ListUniversities(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.entities = entities
	e.policy = policy
	visible, hidden := VisibleRows(entities, policy)
	e.hidden = hidden
	e.mu.Unlock()

	ids := make([]string, 0, len(visible))
	for _, ent := range visible {
		ids = append(ids, ent.ID)
	}
	e.cellFetcher.EnqueueAll(ids)
	e.changed()
	return nil
}

// Rows materializes the currently visible rows.
func (e *Engine) Rows() []Row {
	e.mu.RLock()
	entities := e.entities
	policy := e.policy
	overrides := make(map[string]model.UniversityStatus, len(e.overrides))
	for k, v := range e.overrides {
		overrides[k] = v
	}
	e.mu.RUnlock()

	visible, _ := VisibleRows(entities, policy)
	return Materialize(visible, e.registry.List(), e.store.Snapshot(), overrides)
}

// HiddenCount reports how many rows the current tier hides; the "N
// universities hidden" banner renders from the same arithmetic as the
// row set.
func (e *Engine) HiddenCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hidden
}

// Policy returns the current visibility policy input.
func (e *Engine) Policy() VisibilityPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// EnqueueRefresh queues one entity for the next coalesced cell fetch.
func (e *Engine) EnqueueRefresh(entityID string) {
	e.cellFetcher.Enqueue(entityID)
}

// EnqueueDetails queues one entity for a coalesced detail refresh.
func (e *Engine) EnqueueDetails(entityID string) {
	e.detailFetcher.Enqueue(entityID)
}

// AddColumn creates and backfills a column over the visible rows.
func (e *Engine) AddColumn(ctx context.Context, title string) (model.Column, error) {
	e.mu.RLock()
	visible, _ := VisibleRows(e.entities, e.policy)
	e.mu.RUnlock()
	return e.lifecycle.AddColumn(ctx, title, visible)
}

// DeleteColumn removes a column after the ownership check.
func (e *Engine) DeleteColumn(ctx context.Context, id string) error {
	return e.lifecycle.DeleteColumn(ctx, id, e.user)
}

// EditCell persists a manual edit and commits it locally. The store's
// timestamp guard keeps a slower in-flight backfill from clobbering it.
func (e *Engine) EditCell(ctx context.Context, entityID, columnID, value string) error {
	if err := e.api.SaveCellValue(ctx, entityID, columnID, value); err != nil {
		return err
	}
	e.store.SetValue(entityID, columnID, &value, time.Time{})
	return nil
}

// RemoveEntity drops a row locally and purges its cells.
func (e *Engine) RemoveEntity(entityID string) {
	e.mu.Lock()
	for i, ent := range e.entities {
		if ent.ID == entityID {
			e.entities = append(e.entities[:i], e.entities[i+1:]...)
			break
		}
	}
	delete(e.overrides, entityID)
	_, e.hidden = VisibleRows(e.entities, e.policy)
	e.mu.Unlock()
	e.store.ClearForEntity(entityID)
}

// RefreshSubscription re-polls the tier and applies any transition,
// fetching details and cell data only for rows that just became
// visible.
func (e *Engine) RefreshSubscription(ctx context.Context) error {
	policy, err := e.api.SubscriptionStatus(ctx)
	if err != nil {
		return err
	}
	e.applyPolicy(policy)
	return nil
}

// ForceFullRefresh rebuilds everything from the server. Used after a
// push-channel gap, when an unknown number of events was lost.
func (e *Engine) ForceFullRefresh(ctx context.Context) {
	if err := e.Load(ctx); err != nil {
		log.Printf("[grid] full refresh failed: %v", err)
	}
}

// Close stops the debounce timers.
func (e *Engine) Close() {
	e.cellFetcher.Stop()
	e.detailFetcher.Stop()
}

// setStatusOverride records a push-delivered status for rendering.
func (e *Engine) setStatusOverride(id string, status model.UniversityStatus) {
	e.mu.Lock()
	e.overrides[id] = status
	e.mu.Unlock()
	e.changed()
}

// fullRefresh handles a push-delivered subscription transition.
func (e *Engine) fullRefresh(ev model.UserEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	policy, err := e.api.SubscriptionStatus(ctx)
	if err != nil {
		log.Printf("[grid] subscription refresh failed: %v", err)
		return
	}
	e.applyPolicy(policy)
}

// applyPolicy swaps the visibility policy, purging cells for rows that
// became hidden and fetching only the rows that were just revealed.
func (e *Engine) applyPolicy(policy VisibilityPolicy) {
	e.mu.Lock()
	before, _ := VisibleRows(e.entities, e.policy)
	e.policy = policy
	after, hidden := VisibleRows(e.entities, e.policy)
	e.hidden = hidden
	e.mu.Unlock()

	revealed := NewlyVisible(before, after)
	if len(revealed) > 0 {
		e.detailFetcher.EnqueueAll(revealed)
		e.cellFetcher.EnqueueAll(revealed)
	}
	for _, id := range NewlyVisible(after, before) {
		e.store.ClearForEntity(id)
	}
	e.changed()
}

// fetchCellBatch is the cell fetcher's fire callback: one batched call
// for the whole id union. On failure the affected cells keep their
// prior state; the next push event or manual refresh is the recovery
// path.
func (e *Engine) fetchCellBatch(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := e.api.FetchCellData(ctx, ids)
	if err != nil {
		log.Printf("[grid] batch cell fetch failed for %d universities: %v", len(ids), err)
		return
	}
	for entityID, columns := range data {
		for columnID, datum := range columns {
			value := datum.Value
			e.store.SetValue(entityID, columnID, &value, datum.LastUpdated)
		}
	}
}

// fetchDetailBatch refreshes whole entity snapshots.
func (e *Engine) fetchDetailBatch(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	details, err := e.api.FetchDetails(ctx, ids)
	if err != nil {
		log.Printf("[grid] detail fetch failed for %d universities: %v", len(ids), err)
		return
	}

	e.mu.Lock()
	byID := make(map[string]Entity, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}
	replaced := false
	for i, ent := range e.entities {
		if d, ok := byID[ent.ID]; ok {
			e.entities[i] = d
			delete(byID, ent.ID)
			replaced = true
		}
	}
	// Ids the engine has never seen are new rows (e.g. revealed after a
	// reactivation that raced the entity list).
	for _, d := range byID {
		e.entities = append(e.entities, d)
		replaced = true
	}
	_, e.hidden = VisibleRows(e.entities, e.policy)
	e.mu.Unlock()

	if replaced {
		e.changed()
	}
}

// AttachStream wires a push-channel stream into the pipeline and the
// gap-recovery refresh.
func (e *Engine) AttachStream(s *Stream) {
	s.OnUniversity = e.pipeline.HandleUniversity
	s.OnUser = e.pipeline.HandleUser
	s.OnGap = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		e.ForceFullRefresh(ctx)
	}
}
