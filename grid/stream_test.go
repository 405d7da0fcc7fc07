package grid

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

func TestStream_DispatchesEventsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("missing accept header, got %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		fmt.Fprint(w, "event: university_update\n")
		fmt.Fprint(w, `data: {"user_email":"me@x.com","university_id":"U1","status":"completed"}`+"\n\n")
		fmt.Fprint(w, "event: user_update\n")
		fmt.Fprint(w, `data: {"user_email":"me@x.com","type":"processing_started","university_ids":["U1"]}`+"\n\n")
		fmt.Fprint(w, "event: bogus\n")
		fmt.Fprint(w, `data: {"whatever":1}`+"\n\n")
	}))
	defer srv.Close()

	s := NewStream(srv.URL, "tok")
	s.MaxAttempts = 1

	var got []string
	s.OnUniversity = func(ev model.UniversityEvent) {
		got = append(got, "uni:"+ev.UniversityID+":"+string(ev.Status))
	}
	s.OnUser = func(ev model.UserEvent) {
		got = append(got, "user:"+string(ev.Type))
	}

	err := s.Run(context.Background())
	if err == nil {
		t.Fatalf("expected stream end error after server close")
	}

	want := []string{"uni:U1:completed", "user:processing_started"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event order mismatch: expected %v, got %v", want, got)
		}
	}
}

func TestStream_GapFiresOnReconnectOnly(t *testing.T) {
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Three healthy connections, then the server starts refusing.
		if atomic.AddInt32(&conns, 1) > 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
	}))
	defer srv.Close()

	s := NewStream(srv.URL, "")
	s.MaxAttempts = 3
	s.Backoff = 5 * time.Millisecond

	var gaps int32
	s.OnGap = func() { atomic.AddInt32(&gaps, 1) }

	if err := s.Run(context.Background()); err == nil {
		t.Fatalf("expected run to exhaust reconnect budget")
	}

	// Connects 1-3 succeed and drop; each drop is attempt 1 of the
	// budget, reset by the next success. Connects 4 and 5 fail outright,
	// exhausting the budget at three consecutive failures.
	if got := atomic.LoadInt32(&conns); got != 5 {
		t.Fatalf("expected 5 connections, got %d", got)
	}
	if got := atomic.LoadInt32(&gaps); got != 2 {
		t.Fatalf("gap must fire once per successful reconnect, got %d", got)
	}
}

func TestStream_SuccessfulReconnectRestoresBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&conns, 1) == 5 {
			cancel()
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
	}))
	defer srv.Close()

	s := NewStream(srv.URL, "")
	s.MaxAttempts = 2
	s.Backoff = time.Millisecond

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Four healthy connections that each drop would exhaust a
	// cumulative budget of 2; with the budget restored per successful
	// connect the stream must still be running by the fifth.
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("stream gave up on healthy drops: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
	if got := atomic.LoadInt32(&conns); got != 5 {
		t.Fatalf("expected 5 connections before cancel, got %d", got)
	}
}

func TestStream_CancelStopsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl, _ := w.(http.Flusher)
		fmt.Fprint(w, ": connected\n\n")
		if fl != nil {
			fl.Flush()
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(srv.URL, "")
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}
