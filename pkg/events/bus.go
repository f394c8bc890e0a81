// Package events provides the in-process deliberation event bus and the
// append-only trace store behind it.
//
// Delivery semantics:
//   - Events for one session are delivered in emission order; publishes
//     for the same session serialize on a per-session lock.
//   - Delivery is synchronous within Publish; every subscriber whose
//     type filter matches is called exactly once per event.
//   - A panicking or erroring handler is logged and swallowed; it never
//     affects other handlers or the publishing pipeline.
//   - Every published event is appended to the trace store before any
//     handler runs, so GetTraces observes at least what handlers saw.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synod-ai/synod/pkg/models"
)

// Handler processes one trace event. A returned error is logged and
// swallowed; it does not stop delivery to other handlers.
type Handler func(event models.TraceEvent) error

type subscription struct {
	id      string
	handler Handler
	// types is the filter; nil means all event types.
	types map[models.EventType]bool
}

func (s *subscription) matches(t models.EventType) bool {
	return s.types == nil || s.types[t]
}

// Bus is the in-process pub/sub hub. One instance per process; safe for
// concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*subscription

	sessionMu sync.Mutex
	sessions  map[string]*sync.Mutex

	store *TraceStore
}

// NewBus creates a bus that appends every published event to store.
// A nil store disables tracing but keeps delivery semantics intact.
func NewBus(store *TraceStore) *Bus {
	return &Bus{
		subs:     make(map[string]*subscription),
		sessions: make(map[string]*sync.Mutex),
		store:    store,
	}
}

// Subscribe registers a handler for the given event types and returns a
// subscription id for Unsubscribe. An empty type list matches all types.
func (b *Bus) Subscribe(handler Handler, types ...models.EventType) string {
	sub := &subscription{
		id:      uuid.New().String(),
		handler: handler,
	}
	if len(types) > 0 {
		sub.types = make(map[models.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub.id] = sub
	return sub.id
}

// Unsubscribe removes a subscription. Unknown ids are a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish assigns the event id and timestamp, appends the event to the
// trace store, and delivers it synchronously to matching subscribers.
// The per-session lock is held through delivery so concurrent publishes
// for one session cannot interleave; timestamps are non-decreasing per
// session as a consequence.
func (b *Bus) Publish(event models.TraceEvent) {
	if event.SessionID == "" {
		slog.Warn("Dropping event without session id", "event_type", event.Type)
		return
	}

	lock := b.sessionLock(event.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.Timestamp = time.Now().UTC()

	if b.store != nil {
		b.store.Append(event)
	}

	for _, sub := range b.snapshotSubscribers(event.Type) {
		b.invoke(sub, event)
	}
}

// Forget drops the per-session publish lock. Called after a session
// reaches a terminal state and its traces have been swept.
func (b *Bus) Forget(sessionID string) {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()
	delete(b.sessions, sessionID)
}

func (b *Bus) sessionLock(sessionID string) *sync.Mutex {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()

	lock, ok := b.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		b.sessions[sessionID] = lock
	}
	return lock
}

// snapshotSubscribers copies matching subscriptions so handlers run
// without holding the subscriber lock; a handler may itself call
// Subscribe or Unsubscribe.
func (b *Bus) snapshotSubscribers(t models.EventType) []*subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	matched := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(t) {
			matched = append(matched, sub)
		}
	}
	return matched
}

// invoke runs one handler with panic isolation.
func (b *Bus) invoke(sub *subscription, event models.TraceEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked",
				"subscription_id", sub.id,
				"event_type", event.Type,
				"session_id", event.SessionID,
				"panic", fmt.Sprintf("%v", r))
		}
	}()

	if err := sub.handler(event); err != nil {
		slog.Warn("Event handler failed",
			"subscription_id", sub.id,
			"event_type", event.Type,
			"session_id", event.SessionID,
			"error", err)
	}
}
