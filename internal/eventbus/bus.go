// Package eventbus is the in-process publish/subscribe fabric connecting the
// trade coordinator, the arbitrage monitor and external observers.
//
// Dispatch is synchronous: Publish returns only after every subscriber has
// handled the event and every event published from inside a handler has been
// delivered too. Nested publishes are queued rather than delivered
// depth-first, so every subscriber sees events in publish order.
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

// Handler reacts to a single event. A returned error is logged by the bus and
// does not stop delivery to the remaining subscribers.
type Handler func(ctx context.Context, ev domain.Event) error

type subscription struct {
	name    string
	topic   domain.Topic
	all     bool
	handler Handler
}

type pending struct {
	ctx context.Context
	ev  domain.Event
}

// Bus is a synchronous, ordered callback registry.
type Bus struct {
	mu          sync.Mutex
	subs        []subscription
	queue       []pending
	dispatching bool
	published   map[domain.Topic]int64
	logger      *slog.Logger
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		published: make(map[domain.Topic]int64),
		logger:    logger.With(slog.String("component", "eventbus")),
	}
}

// Subscribe registers h for events on topic. Subscribers are invoked in
// registration order.
func (b *Bus) Subscribe(name string, topic domain.Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, topic: topic, handler: h})
}

// SubscribeAll registers h for every topic.
func (b *Bus) SubscribeAll(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, all: true, handler: h})
}

// Publish delivers ev to all matching subscribers before returning. When
// called from inside a handler the event is queued and delivered by the
// outermost Publish once the current event has been fully dispatched.
func (b *Bus) Publish(ctx context.Context, ev domain.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, pending{ctx: ctx, ev: ev})
	b.published[ev.Topic()]++
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true

	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		subs := make([]subscription, len(b.subs))
		copy(subs, b.subs)
		b.mu.Unlock()

		b.deliver(next.ctx, next.ev, subs)

		b.mu.Lock()
	}
	b.dispatching = false
	b.mu.Unlock()
}

func (b *Bus) deliver(ctx context.Context, ev domain.Event, subs []subscription) {
	topic := ev.Topic()
	for _, s := range subs {
		if !s.all && s.topic != topic {
			continue
		}
		if err := s.handler(ctx, ev); err != nil {
			b.logger.WarnContext(ctx, "subscriber failed",
				slog.String("subscriber", s.name),
				slog.String("topic", string(topic)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Published returns how many events have been published per topic.
func (b *Bus) Published() map[domain.Topic]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[domain.Topic]int64, len(b.published))
	for k, v := range b.published {
		out[k] = v
	}
	return out
}
