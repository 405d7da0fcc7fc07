package grid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

// fakeAPI is an in-memory API implementation recording every call.
type fakeAPI struct {
	mu sync.Mutex

	columns  []model.Column
	entities []Entity
	policy   VisibilityPolicy
	cellData CellData

	batchCalls  [][]string
	detailCalls [][]string
	asks        []string
	saved       map[string]string // "entity:column" -> value

	// answer overrides Ask; nil means echo a canned answer.
	answer func(question, universityID string) (string, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		policy:   VisibilityPolicy{SubscriptionStatus: model.SubscriptionActive},
		cellData: CellData{},
		saved:    make(map[string]string),
	}
}

func (f *fakeAPI) ListUniversities(ctx context.Context) ([]Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Entity(nil), f.entities...), nil
}

func (f *fakeAPI) FetchDetails(ctx context.Context, ids []string) ([]Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, ids)
	var out []Entity
	for _, e := range f.entities {
		for _, id := range ids {
			if e.ID == id {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (f *fakeAPI) ListColumns(ctx context.Context) ([]model.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Column(nil), f.columns...), nil
}

func (f *fakeAPI) CreateColumn(ctx context.Context, title string) (model.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	col := model.Column{ID: "col-" + title, Title: title, Scope: model.ScopeUser, OwnerEmail: "me@x.com"}
	f.columns = append(f.columns, col)
	return col, nil
}

func (f *fakeAPI) DeleteColumn(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.columns {
		if c.ID == id {
			f.columns = append(f.columns[:i], f.columns[i+1:]...)
			return nil
		}
	}
	return errors.New("column not found")
}

func (f *fakeAPI) SaveCellValue(ctx context.Context, universityID, columnID, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[universityID+":"+columnID] = value
	return nil
}

func (f *fakeAPI) FetchCellData(ctx context.Context, ids []string) (CellData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls = append(f.batchCalls, ids)
	out := CellData{}
	for _, id := range ids {
		if cols, ok := f.cellData[id]; ok {
			out[id] = cols
		}
	}
	return out, nil
}

func (f *fakeAPI) Ask(ctx context.Context, question, universityID string) (string, error) {
	f.mu.Lock()
	answer := f.answer
	f.asks = append(f.asks, universityID)
	f.mu.Unlock()
	if answer != nil {
		return answer(question, universityID)
	}
	return "answer for " + universityID, nil
}

func (f *fakeAPI) SubscriptionStatus(ctx context.Context) (VisibilityPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.policy, nil
}

func (f *fakeAPI) batchCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batchCalls)
}

var testUser = SessionUser{Email: "me@x.com"}

func testEngine(api API) *Engine {
	return NewEngine(api, testUser, Options{
		CellFetchDelay:   20 * time.Millisecond,
		DetailFetchDelay: 10 * time.Millisecond,
	})
}

func TestEngine_BareIDEventEndToEnd(t *testing.T) {
	api := newFakeAPI()
	api.entities = []Entity{{ID: "U1", Name: "MIT"}}
	api.columns = []model.Column{{ID: "C1", Title: "Tuition", Scope: model.ScopeUser, OwnerEmail: "me@x.com"}}
	when := time.Now().Add(-time.Minute)
	api.cellData = CellData{"U1": {"C1": {Value: "MS CS", LastUpdated: when}}}

	e := testEngine(api)
	defer e.Close()
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond) // initial coalesced fetch

	// Bare-id push: "something changed for U1".
	e.Pipeline().HandleUniversity(model.UniversityEvent{UserEmail: "me@x.com", UniversityID: "U1"})
	time.Sleep(60 * time.Millisecond)

	cell := e.Store().Get("U1", "C1")
	if cell.Loading {
		t.Fatalf("cell still loading after batch response")
	}
	if cell.Value == nil || *cell.Value != "MS CS" {
		t.Fatalf("expected value %q, got %v", "MS CS", cell.Value)
	}
}

func TestEngine_CrossUserEventDiscarded(t *testing.T) {
	api := newFakeAPI()
	api.entities = []Entity{{ID: "U1"}}

	e := testEngine(api)
	defer e.Close()
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	calls := api.batchCallCount()

	value := "stolen"
	e.Pipeline().HandleUniversity(model.UniversityEvent{
		UserEmail:    "other@x.com",
		UniversityID: "U1",
		Status:       model.StatusColumnProcessed,
		ColumnID:     "C1",
		Value:        &value,
	})
	e.Pipeline().HandleUniversity(model.UniversityEvent{UserEmail: "other@x.com", UniversityID: "U1"})
	time.Sleep(60 * time.Millisecond)

	if got := e.Store().Get("U1", "C1"); got.Value != nil || got.Loading {
		t.Fatalf("cross-user event mutated state: %+v", got)
	}
	if api.batchCallCount() != calls {
		t.Fatalf("cross-user bare id triggered a fetch")
	}
}

func TestEngine_ReactivationFetchesOnlyRevealedRows(t *testing.T) {
	api := newFakeAPI()
	api.policy = VisibilityPolicy{SubscriptionStatus: model.SubscriptionExpired}
	api.entities = []Entity{{ID: "U1"}, {ID: "U2"}, {ID: "U3"}, {ID: "U4"}, {ID: "U5"}}

	e := testEngine(api)
	defer e.Close()
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := e.HiddenCount(); got != 2 {
		t.Fatalf("expected 2 hidden rows, got %d", got)
	}
	time.Sleep(60 * time.Millisecond)

	api.mu.Lock()
	api.policy = VisibilityPolicy{SubscriptionStatus: model.SubscriptionActive}
	api.mu.Unlock()

	e.Pipeline().HandleUser(model.UserEvent{
		UserEmail: "me@x.com",
		Type:      model.UserEventSubscriptionReactivated,
	})
	time.Sleep(80 * time.Millisecond)

	if got := e.HiddenCount(); got != 0 {
		t.Fatalf("expected 0 hidden rows after reactivation, got %d", got)
	}

	api.mu.Lock()
	lastBatch := api.batchCalls[len(api.batchCalls)-1]
	lastDetails := api.detailCalls[len(api.detailCalls)-1]
	api.mu.Unlock()

	want := []string{"U4", "U5"}
	for i, calls := range [][]string{lastBatch, lastDetails} {
		if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
			t.Fatalf("call set %d: expected only revealed ids %v, got %v", i, want, calls)
		}
	}
}

func TestEngine_ExpiryEventHidesRowsImmediately(t *testing.T) {
	api := newFakeAPI()
	api.entities = []Entity{{ID: "U1"}, {ID: "U2"}, {ID: "U3"}, {ID: "U4"}, {ID: "U5"}}
	api.cellData = CellData{"U5": {"C1": {Value: "old", LastUpdated: time.Now()}}}

	e := testEngine(api)
	defer e.Close()
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if got := e.HiddenCount(); got != 0 {
		t.Fatalf("expected no hidden rows while active, got %d", got)
	}

	api.mu.Lock()
	api.policy = VisibilityPolicy{SubscriptionStatus: model.SubscriptionExpired}
	api.mu.Unlock()

	// The expiry must take effect on the push event itself, not on the
	// next status poll.
	e.Pipeline().HandleUser(model.UserEvent{
		UserEmail:               "me@x.com",
		Type:                    model.UserEventSubscriptionExpired,
		HiddenUniversitiesCount: 2,
	})
	time.Sleep(80 * time.Millisecond)

	if got := e.HiddenCount(); got != 2 {
		t.Fatalf("expected 2 hidden rows after expiry event, got %d", got)
	}
	if rows := e.Rows(); len(rows) != 3 {
		t.Fatalf("expected 3 visible rows, got %d", len(rows))
	}
	if got := e.Store().Get("U5", "C1"); got.Value != nil || got.Loading {
		t.Fatalf("hidden row's cells not purged: %+v", got)
	}
}

func TestEngine_ProcessingStartedMarksSet(t *testing.T) {
	api := newFakeAPI()
	e := testEngine(api)
	defer e.Close()

	e.Pipeline().HandleUser(model.UserEvent{
		UserEmail:     "me@x.com",
		Type:          model.UserEventProcessingStarted,
		UniversityIDs: []string{"U1", "U2"},
	})
	if !e.Processing().Has("U1") || !e.Processing().Has("U2") {
		t.Fatalf("processing ids not tracked")
	}

	e.Pipeline().HandleUniversity(model.UniversityEvent{
		UserEmail:    "me@x.com",
		UniversityID: "U1",
		Status:       model.StatusCompleted,
	})
	if e.Processing().Has("U1") {
		t.Fatalf("terminal status should clear processing mark")
	}
}
