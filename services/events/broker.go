package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/sahilchouksey/gradgrid/model"
	"github.com/sahilchouksey/gradgrid/utils/cache"
)

// Channel is the single multi-tenant pub/sub channel. Every event
// carries the owning user's email; consumers filter client-side.
const Channel = "gradgrid:events"

// Envelope wraps one push event on the wire
type Envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Broker fans push events out to all connected SSE streams through
// Redis pub/sub, so every API instance sees every event.
type Broker struct {
	redis *cache.RedisCache
}

// NewBroker creates an event broker on the given Redis connection
func NewBroker(redis *cache.RedisCache) *Broker {
	return &Broker{redis: redis}
}

// PublishUniversity publishes a university_update event
func (b *Broker) PublishUniversity(ctx context.Context, ev model.UniversityEvent) error {
	return b.publish(ctx, model.EventUniversityUpdate, ev)
}

// PublishUser publishes a user_update event
func (b *Broker) PublishUser(ctx context.Context, ev model.UserEvent) error {
	return b.publish(ctx, model.EventUserUpdate, ev)
}

func (b *Broker) publish(ctx context.Context, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}
	env, err := json.Marshal(Envelope{Name: name, Payload: data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", name, err)
	}
	if err := b.redis.Publish(ctx, Channel, env); err != nil {
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}
	return nil
}

// Subscribe delivers every published envelope until ctx is cancelled.
// Malformed messages are dropped with a log line.
func (b *Broker) Subscribe(ctx context.Context) (<-chan Envelope, func()) {
	sub := b.redis.Subscribe(ctx, Channel)
	out := make(chan Envelope, 64)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("[events] dropping malformed envelope: %v", err)
					continue
				}
				select {
				case out <- env:
				default:
					// Slow consumer: drop rather than stall the
					// subscription. Delivery is at-most-once anyway.
					log.Printf("[events] dropping %s for slow consumer", env.Name)
				}
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
