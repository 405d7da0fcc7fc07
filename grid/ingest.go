package grid

import (
	"sync"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

// Action is what the classifier decided to do with a push event.
type Action int

const (
	// ActionDiscard drops the event (cross-user or empty).
	ActionDiscard Action = iota
	// ActionApplyValue installs the carried cell value directly.
	ActionApplyValue
	// ActionStatusTransition updates the entity status; terminal
	// statuses also clear lingering loading flags.
	ActionStatusTransition
	// ActionEnqueueRefresh queues the entity for a coalesced batch
	// fetch because the event carried no value.
	ActionEnqueueRefresh
)

// Classify is a pure function of event shape; it holds no state and
// applies no ordering or batching of its own.
func Classify(ev model.UniversityEvent) Action {
	if ev.UniversityID == "" {
		return ActionDiscard
	}
	if ev.Status == model.StatusColumnProcessed && ev.ColumnID != "" && ev.Value != nil {
		return ActionApplyValue
	}
	if ev.Status != "" {
		return ActionStatusTransition
	}
	// Bare id: the push only says "something changed".
	return ActionEnqueueRefresh
}

// ProcessingSet tracks entity ids known (from push events) to be
// mid-computation. It exists for UI affordance only, never correctness.
type ProcessingSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewProcessingSet creates an empty set.
func NewProcessingSet() *ProcessingSet {
	return &ProcessingSet{ids: make(map[string]struct{})}
}

// Add marks ids as processing.
func (p *ProcessingSet) Add(ids ...string) {
	p.mu.Lock()
	for _, id := range ids {
		if id != "" {
			p.ids[id] = struct{}{}
		}
	}
	p.mu.Unlock()
}

// Remove unmarks an id.
func (p *ProcessingSet) Remove(id string) {
	p.mu.Lock()
	delete(p.ids, id)
	p.mu.Unlock()
}

// Has reports whether an id is mid-computation.
func (p *ProcessingSet) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[id]
	return ok
}

// Pipeline routes classified push events into the cell store, the batch
// fetcher queue, status transitions or a full refresh. Events are
// processed in arrival order; only the resulting network calls are
// batched.
type Pipeline struct {
	User       SessionUser
	Store      *CellStore
	Refresh    *BatchFetcher
	Processing *ProcessingSet

	// SetStatus records an entity status override for rendering.
	SetStatus func(id string, status model.UniversityStatus)
	// FullRefresh re-polls the tier and applies the transition: rows
	// revealed by a reactivation are fetched, rows hidden by an expiry
	// are purged.
	FullRefresh func(ev model.UserEvent)
}

// HandleUniversity ingests one university_update event.
func (p *Pipeline) HandleUniversity(ev model.UniversityEvent) {
	// Multi-tenant push channel: drop other users' events before
	// classification.
	if ev.UserEmail != p.User.Email {
		return
	}

	switch Classify(ev) {
	case ActionApplyValue:
		p.Store.SetValue(ev.UniversityID, ev.ColumnID, ev.Value, time.Time{})
		if p.SetStatus != nil {
			p.SetStatus(ev.UniversityID, model.StatusColumnProcessed)
		}

	case ActionStatusTransition:
		if p.SetStatus != nil {
			p.SetStatus(ev.UniversityID, ev.Status)
		}
		if ev.Status == model.StatusCompleted || ev.Status == model.StatusFailed {
			// Terminal for this cycle: no further value is coming, so
			// lingering loading flags would spin forever.
			p.Store.ClearLoadingForEntity(ev.UniversityID)
			if p.Processing != nil {
				p.Processing.Remove(ev.UniversityID)
			}
		}

	case ActionEnqueueRefresh:
		p.Refresh.Enqueue(ev.UniversityID)
	}
}

// HandleUser ingests one user_update event.
func (p *Pipeline) HandleUser(ev model.UserEvent) {
	if ev.UserEmail != p.User.Email {
		return
	}

	switch ev.Type {
	case model.UserEventProcessingStarted:
		if p.Processing != nil {
			p.Processing.Add(ev.UniversityIDs...)
		}
	case model.UserEventSubscriptionReactivated, model.UserEventSubscriptionExpired:
		// Both tier transitions re-poll the authoritative status
		// instead of trusting the event payload.
		if p.FullRefresh != nil {
			p.FullRefresh(ev)
		}
	}
}
