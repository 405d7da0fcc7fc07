package grid

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

// Stream consumes the server's push channel over SSE. Delivery is
// best-effort, at-most-once, with no ordering guarantee across
// reconnects: events arriving while disconnected are gone, so OnGap
// fires after every successful reconnect to let the engine bound
// staleness with a full refresh.
type Stream struct {
	url   string
	token string

	// MaxAttempts bounds consecutive failed reconnects before Run
	// gives up. Zero means the default.
	MaxAttempts int
	// Backoff is the base delay between reconnect attempts, grown
	// linearly per consecutive failure.
	Backoff time.Duration

	OnUniversity func(model.UniversityEvent)
	OnUser       func(model.UserEvent)
	OnGap        func()

	client *http.Client
}

const defaultMaxAttempts = 5

// NewStream creates a push-channel consumer for the given SSE endpoint.
func NewStream(url, token string) *Stream {
	// No client-level timeout: the stream is long-lived. Connection
	// establishment is still bounded at the transport.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 90 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &Stream{
		url:         url,
		token:       token,
		MaxAttempts: defaultMaxAttempts,
		Backoff:     2 * time.Second,
		client:      &http.Client{Transport: transport},
	}
}

// Run connects and consumes events until ctx is cancelled or the
// reconnect budget is exhausted.
func (s *Stream) Run(ctx context.Context) error {
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoff := s.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	attempts := 0
	connectedBefore := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		connected, err := s.consume(ctx, connectedBefore)
		if connected {
			// A successful connect restores the full budget:
			// MaxAttempts bounds consecutive failures, not the total
			// drops over a long-lived session.
			connectedBefore = true
			attempts = 0
		}
		if err == nil || errors.Is(err, context.Canceled) {
			return ctx.Err()
		}

		attempts++
		if attempts >= maxAttempts {
			return fmt.Errorf("push channel gave up after %d attempts: %w", attempts, err)
		}
		log.Printf("[grid] push channel dropped (attempt %d/%d): %v", attempts, maxAttempts, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempts)):
		}
	}
}

// consume opens one SSE connection and dispatches events until it
// drops. notifyGap marks this as a reconnect whose missed events are
// permanently lost. The bool reports whether a connection was actually
// established, regardless of how it later ended.
func (s *Stream) consume(ctx context.Context, notifyGap bool) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("push channel returned status %d", resp.StatusCode)
	}

	if notifyGap && s.OnGap != nil {
		s.OnGap()
	}

	var eventName string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			eventName = ""
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			s.dispatch(eventName, strings.TrimPrefix(line, "data: "))
		}
	}
	if err := scanner.Err(); err != nil {
		return true, err
	}
	return true, errors.New("push channel closed by server")
}

// dispatch decodes one event payload. Events are handled strictly in
// arrival order; unknown names and malformed payloads are dropped.
func (s *Stream) dispatch(name, data string) {
	switch name {
	case model.EventUniversityUpdate:
		var ev model.UniversityEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			log.Printf("[grid] dropping malformed university_update: %v", err)
			return
		}
		if s.OnUniversity != nil {
			s.OnUniversity(ev)
		}
	case model.EventUserUpdate:
		var ev model.UserEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			log.Printf("[grid] dropping malformed user_update: %v", err)
			return
		}
		if s.OnUser != nil {
			s.OnUser(ev)
		}
	}
}
