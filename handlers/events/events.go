package events

import (
	"bufio"
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/gradgrid/services/events"
	"github.com/sahilchouksey/gradgrid/utils/middleware"
	"github.com/sahilchouksey/gradgrid/utils/response"
	"github.com/sahilchouksey/gradgrid/utils/sse"
)

// keepAliveInterval keeps proxies from reaping idle streams
const keepAliveInterval = 25 * time.Second

// EventsHandler serves the push channel
type EventsHandler struct {
	broker *events.Broker
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(broker *events.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

// Stream handles GET /api/events: a long-lived SSE stream forwarding
// every broker event. The channel is multi-tenant; clients filter by
// the user_email inside each payload. Delivery is at-most-once: events
// published while a client is reconnecting are gone.
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	email, ok := middleware.GetUserEmail(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, unsubscribe := h.broker.Subscribe(ctx)
		defer unsubscribe()

		if err := sse.SendKeepAlive(w); err != nil {
			return
		}
		log.Printf("[events] stream opened for %s", email)

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case env, ok := <-ch:
				if !ok {
					return
				}
				err := sse.Send(w, sse.Event{
					Event: env.Name,
					Data:  []byte(env.Payload),
				})
				if err != nil {
					// Client went away; the write error is the only signal
					log.Printf("[events] stream closed for %s: %v", email, err)
					return
				}
			case <-keepAlive.C:
				if err := sse.SendKeepAlive(w); err != nil {
					log.Printf("[events] stream closed for %s: %v", email, err)
					return
				}
			}
		}
	})

	return nil
}
