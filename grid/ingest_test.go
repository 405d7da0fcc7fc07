package grid

import (
	"testing"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

func TestClassify(t *testing.T) {
	value := "v"
	cases := []struct {
		name string
		ev   model.UniversityEvent
		want Action
	}{
		{"empty event", model.UniversityEvent{}, ActionDiscard},
		{"column processed with value", model.UniversityEvent{UniversityID: "U1", Status: model.StatusColumnProcessed, ColumnID: "C1", Value: &value}, ActionApplyValue},
		{"column processed missing value", model.UniversityEvent{UniversityID: "U1", Status: model.StatusColumnProcessed, ColumnID: "C1"}, ActionStatusTransition},
		{"completed", model.UniversityEvent{UniversityID: "U1", Status: model.StatusCompleted}, ActionStatusTransition},
		{"failed", model.UniversityEvent{UniversityID: "U1", Status: model.StatusFailed}, ActionStatusTransition},
		{"processing", model.UniversityEvent{UniversityID: "U1", Status: model.StatusProcessing}, ActionStatusTransition},
		{"bare id", model.UniversityEvent{UniversityID: "U1"}, ActionEnqueueRefresh},
	}
	for _, tc := range cases {
		if got := Classify(tc.ev); got != tc.want {
			t.Errorf("%s: expected action %d, got %d", tc.name, tc.want, got)
		}
	}
}

func newTestPipeline() (*Pipeline, *CellStore, *BatchFetcher) {
	store := NewCellStore()
	fetcher := NewBatchFetcher(10*time.Millisecond, func([]string) {})
	p := &Pipeline{
		User:       SessionUser{Email: "me@x.com"},
		Store:      store,
		Refresh:    fetcher,
		Processing: NewProcessingSet(),
	}
	return p, store, fetcher
}

func TestPipeline_ColumnProcessedIsIdempotent(t *testing.T) {
	p, store, _ := newTestPipeline()
	value := "MS CS"
	ev := model.UniversityEvent{
		UserEmail:    "me@x.com",
		UniversityID: "U1",
		Status:       model.StatusColumnProcessed,
		ColumnID:     "C1",
		Value:        &value,
	}

	p.HandleUniversity(ev)
	first := store.Get("U1", "C1")
	p.HandleUniversity(ev)
	second := store.Get("U1", "C1")

	if first.Loading || first.Value == nil || *first.Value != "MS CS" {
		t.Fatalf("unexpected state after first apply: %+v", first)
	}
	if second.Loading != first.Loading || *second.Value != *first.Value {
		t.Fatalf("duplicate event changed cell state: %+v vs %+v", first, second)
	}
}

func TestPipeline_TerminalStatusClearsLoading(t *testing.T) {
	p, store, _ := newTestPipeline()
	store.SetLoading("U1", "C1")
	store.SetLoading("U1", "C2")

	p.HandleUniversity(model.UniversityEvent{
		UserEmail:    "me@x.com",
		UniversityID: "U1",
		Status:       model.StatusFailed,
	})

	for _, col := range []string{"C1", "C2"} {
		if cell := store.Get("U1", col); cell.Loading {
			t.Fatalf("loading flag for %s survived terminal status", col)
		}
	}
}

func TestPipeline_BareIDEnqueues(t *testing.T) {
	p, _, fetcher := newTestPipeline()

	p.HandleUniversity(model.UniversityEvent{UserEmail: "me@x.com", UniversityID: "U1"})
	p.HandleUniversity(model.UniversityEvent{UserEmail: "me@x.com", UniversityID: "U2"})
	p.HandleUniversity(model.UniversityEvent{UserEmail: "me@x.com", UniversityID: "U1"})

	if got := fetcher.Pending(); got != 2 {
		t.Fatalf("expected 2 pending ids after dedup, got %d", got)
	}
}

func TestPipeline_CrossUserDiscardedBeforeClassification(t *testing.T) {
	p, store, fetcher := newTestPipeline()
	value := "v"

	p.HandleUniversity(model.UniversityEvent{
		UserEmail:    "other@x.com",
		UniversityID: "U1",
		Status:       model.StatusColumnProcessed,
		ColumnID:     "C1",
		Value:        &value,
	})
	p.HandleUniversity(model.UniversityEvent{UserEmail: "other@x.com", UniversityID: "U2"})
	p.HandleUser(model.UserEvent{UserEmail: "other@x.com", Type: model.UserEventProcessingStarted, UniversityIDs: []string{"U3"}})

	if cell := store.Get("U1", "C1"); cell.Value != nil {
		t.Fatalf("cross-user value applied")
	}
	if fetcher.Pending() != 0 {
		t.Fatalf("cross-user id enqueued")
	}
	if p.Processing.Has("U3") {
		t.Fatalf("cross-user processing mark applied")
	}
}

func TestPipeline_UnknownIDIsHarmless(t *testing.T) {
	p, store, _ := newTestPipeline()

	// Deletions race in-flight pushes; a stale id must be a no-op, not
	// an error.
	p.HandleUniversity(model.UniversityEvent{
		UserEmail:    "me@x.com",
		UniversityID: "gone",
		Status:       model.StatusCompleted,
	})
	if store.Len() != 0 {
		t.Fatalf("stale id created state")
	}
}
