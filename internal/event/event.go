// Package event carries tree notifications to observers that the tree engine
// does not know about (toolbars, breadcrumbs, other panels).
package event

import (
	"sync"

	"github.com/rs/zerolog"
)

type Type int

const (
	NodesMoved Type = iota
	NodesMoveReverted
	NodesLoaded
	NodesRemoved
	ContentChanged
)

func (t Type) String() string {
	switch t {
	case NodesMoved:
		return "nodes-moved"
	case NodesMoveReverted:
		return "nodes-move-reverted"
	case NodesLoaded:
		return "nodes-loaded"
	case NodesRemoved:
		return "nodes-removed"
	case ContentChanged:
		return "content-changed"
	}
	return "unknown"
}

type Event struct {
	Type Type
	Data any
}

type Handler func(Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine. A panicking handler is logged and skipped.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]subscription
	nextID      int
	logger      zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[Type][]subscription),
		logger:      logger,
	}
}

// Subscribe registers h for events of type t and returns a function that
// removes the registration.
func (b *Bus) Subscribe(t Type, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers[t] = append(b.subscribers[t], subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[t]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[e.Type]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s.handler, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event", e.Type.String()).Msg("event handler panicked")
		}
	}()
	h(e)
}
