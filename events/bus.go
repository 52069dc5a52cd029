// Package events implements the graph's structured event fan-out (spec
// C12): a thread-safe bus that delivers Events synchronously to subscribers
// registered by type, or to wildcard subscribers registered for every type.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context carries the node-specific detail of an Event; all fields are
// optional and interpreted by the subscriber (spec §6, `events` callback).
type Context struct {
	Action      string
	Text        string
	Translation string
	Correction  string
	SubAction   string
	Message     string
	ID          string
}

// Event is one structured notification published on the bus.
type Event struct {
	Type      string
	RunID     string
	Timestamp time.Time
	Node      string
	Payload   Context
}

// Handler receives Events synchronously on the publishing goroutine. A
// Handler must not block for long or it will stall the publishing node's
// executor.
type Handler func(Event)

// Bus is a process-wide (but explicitly injected, never a singleton — see
// spec §9) fan-out point for graph Events. The zero value is not usable;
// use New.
type Bus struct {
	mu        sync.RWMutex // reentrant in spirit: emission always iterates a snapshot
	byType    map[string][]Handler
	wildcard  []Handler
	log       *slog.Logger
	runID     string
}

// New returns an empty Bus that also logs every event through log at Debug
// level, tagged with the "events" component.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		byType: make(map[string][]Handler),
		log:    log,
		runID:  uuid.NewString(),
	}
}

// RunID returns the bus's run identifier, stamped onto every Event it
// publishes.
func (b *Bus) RunID() string { return b.runID }

// Subscribe registers h for events of the given type. Pass "*" to receive
// every event regardless of type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if eventType == "*" {
		b.wildcard = append(b.wildcard, h)
		return
	}
	b.byType[eventType] = append(b.byType[eventType], h)
}

// Publish delivers an event synchronously on the caller's goroutine to
// every matching subscriber. A node calls this as events(nodeName, ctx);
// see NodePublisher below for that exact shape. Subscriber panics are
// recovered, logged, and swallowed so one misbehaving observer cannot take
// down a node's executor.
func (b *Bus) Publish(eventType, node string, payload Context) {
	ev := Event{
		Type:      eventType,
		RunID:     b.runID,
		Timestamp: time.Now(),
		Node:      node,
		Payload:   payload,
	}

	b.log.Debug("event",
		"component", "events",
		"type", eventType,
		"node", node,
		"action", payload.Action)

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.byType[eventType])+len(b.wildcard))
	handlers = append(handlers, b.byType[eventType]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, ev)
	}
}

// dispatch invokes h, recovering and logging any panic.
func (b *Bus) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				"component", "events",
				"panic", r,
				"type", ev.Type)
		}
	}()
	h(ev)
}

// NodePublisher returns a function bound to nodeName, matching the
// `events(node_name, context)` callback shape nodes call into (spec §6).
func (b *Bus) NodePublisher(nodeName string) func(eventType string, payload Context) {
	return func(eventType string, payload Context) {
		b.Publish(eventType, nodeName, payload)
	}
}
