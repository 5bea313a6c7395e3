// Package events implements the Connection's event-notification slot: one
// callback per transport.EventKind (plus an ALL_EVENTS fallback), not a
// multi-handler pub/sub bus — GMSEC
// only ever lets one callback own a given event kind at a time, so
// registering a second replaces the first rather than fanning out to both.
package events

import (
	"sync"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
)

// AllEvents is the wildcard kind: a handler registered under AllEvents
// receives every event kind that has no more specific handler registered.
const AllEvents transport.EventKind = -1

// Bus holds the per-kind callback slots.
type Bus struct {
	mu       sync.RWMutex
	handlers map[transport.EventKind]transport.EventHandler
}

func New() *Bus {
	return &Bus{handlers: make(map[transport.EventKind]transport.EventHandler)}
}

// Register installs handler for kind, replacing any previous handler for
// that kind. Passing a nil handler clears the slot.
func (b *Bus) Register(kind transport.EventKind, handler transport.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if handler == nil {
		delete(b.handlers, kind)
		return
	}
	b.handlers[kind] = handler
}

// Dispatch invokes the handler registered for kind, falling back to the
// AllEvents handler if no specific one is registered. It is a no-op if
// neither is registered.
func (b *Bus) Dispatch(kind transport.EventKind, err error) {
	b.mu.RLock()
	handler, ok := b.handlers[kind]
	if !ok {
		handler, ok = b.handlers[AllEvents]
	}
	b.mu.RUnlock()

	if ok {
		handler(kind, err)
	}
}
