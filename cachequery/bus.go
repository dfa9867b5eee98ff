package cachequery

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Event names the mutation kinds a repository can announce. The set is
// closed: triggers with any other name are dropped.
type Event string

const (
	// EventCreated announces a newly inserted record.
	EventCreated Event = "created"
	// EventUpdated announces a modified record.
	EventUpdated Event = "updated"
	// EventDeleted announces a removed record.
	EventDeleted Event = "deleted"
)

func knownEvent(event Event) bool {
	switch event {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	default:
		return false
	}
}

// Handler is an invalidation callback. The args are the positional identity
// values the triggering repository passed along, typically the mutated
// row's id plus related foreign ids.
type Handler func(ctx context.Context, args ...any) error

// Delivery records the outcome of invoking one subscriber during Trigger.
type Delivery struct {
	Subscriber string
	Err        error
}

type subscription struct {
	name    string
	handler Handler
}

// Bus routes "a write happened to aggregate X" notifications to the
// invalidation handlers registered under X's topic prefix. Registration
// happens during dependency wiring; Trigger is the only method meant to be
// called while requests are in flight.
type Bus struct {
	mu       sync.RWMutex
	prefixes map[string]struct{}
	subs     map[string][]subscription
	log      zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		prefixes: make(map[string]struct{}),
		subs:     make(map[string][]subscription),
		log:      log.With().Str("component", "cachequery.bus").Logger(),
	}
}

// DeclarePrefix idempotently registers a topic prefix. Handlers can only be
// bound, and triggers only delivered, under declared prefixes.
func (b *Bus) DeclarePrefix(prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefixes[prefix] = struct{}{}
}

// Subscribe binds a handler to "<prefix>:<event>". Binding under an
// undeclared prefix or an unknown event is a silent no-op, mirroring the
// trigger side.
func (b *Bus) Subscribe(prefix string, event Event, subscriber string, handler Handler) {
	if !knownEvent(event) || handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.prefixes[prefix]; !ok {
		return
	}
	topic := topicKey(prefix, event)
	b.subs[topic] = append(b.subs[topic], subscription{name: subscriber, handler: handler})
}

// Trigger delivers the event to every subscriber bound to the topic,
// sequentially and in registration order. A failing or panicking handler is
// logged and skipped over; the remaining subscribers still run. The
// returned deliveries expose each subscriber's outcome.
//
// Undeclared prefixes and unknown events are dropped silently so that
// repositories can trigger defensively.
func (b *Bus) Trigger(ctx context.Context, prefix string, event Event, args ...any) []Delivery {
	if !knownEvent(event) {
		return nil
	}

	b.mu.RLock()
	_, declared := b.prefixes[prefix]
	subs := b.subs[topicKey(prefix, event)]
	b.mu.RUnlock()

	if !declared || len(subs) == 0 {
		return nil
	}

	deliveries := make([]Delivery, 0, len(subs))
	for _, sub := range subs {
		err := b.invoke(ctx, sub, args)
		if err != nil {
			b.log.Warn().
				Err(err).
				Str("topic", topicKey(prefix, event)).
				Str("subscriber", sub.name).
				Msg("invalidation handler failed")
		}
		deliveries = append(deliveries, Delivery{Subscriber: sub.name, Err: err})
	}
	return deliveries
}

func (b *Bus) invoke(ctx context.Context, sub subscription, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(ctx, args...)
}

func topicKey(prefix string, event Event) string {
	return prefix + ":" + string(event)
}
