// Package memory implements an in-process loopback transport driver: every
// Publish is delivered (fanned out via its own goroutine per subscriber to
// avoid reentrancy deadlocks) to every Subscribe whose pattern matches the
// message subject. It backs the "loopback"/"memory" mw-id.
//
// Every concrete broker this tree talks to (Kafka, ActiveMQ, SQS, NATS,
// Event Hubs, a Bolt relay) holds its routing state externally, so two
// independently constructed Connections naturally see each other's
// traffic. Loopback has no external process to hold that state, so
// instances sharing the same "mw-server" config key (default "default")
// are routed through one shared in-process bus instead — the nearest
// loopback analog of "two clients pointed at the same broker address".
package memory

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
	"github.com/google/uuid"
)

func init() {
	transport.Register("loopback", New)
	transport.Register("memory", New)
}

type subscription struct {
	id      string
	pattern string
	handler transport.MessageHandler
}

// sharedBus is the routing table for one named loopback bus, shared by
// every Driver constructed against the same "mw-server" key.
type sharedBus struct {
	mu   sync.RWMutex
	subs map[string]*subscription
}

var (
	busesMu sync.Mutex
	buses   = make(map[string]*sharedBus)
)

func busFor(name string) *sharedBus {
	busesMu.Lock()
	defer busesMu.Unlock()
	b, ok := buses[name]
	if !ok {
		b = &sharedBus{subs: make(map[string]*subscription)}
		buses[name] = b
	}
	return b
}

// Driver is the loopback transport.Driver implementation.
type Driver struct {
	bus       *sharedBus
	busName   string
	mu        sync.Mutex
	connected bool
	ownSubs   map[string]struct{}
	events    map[transport.EventKind]transport.EventHandler
}

// New builds a loopback driver attached to the shared bus named by the
// "mw-server" config key. It satisfies transport.Factory.
func New(cfg message.Config) (transport.Driver, error) {
	name := cfg.GetWithDefault("mw-server", "default")
	return &Driver{
		bus:     busFor(name),
		busName: name,
		ownSubs: make(map[string]struct{}),
		events:  make(map[transport.EventKind]transport.EventHandler),
	}, nil
}

func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	ids := make([]string, 0, len(d.ownSubs))
	for id := range d.ownSubs {
		ids = append(ids, id)
	}
	d.ownSubs = make(map[string]struct{})
	d.connected = false
	d.mu.Unlock()

	d.bus.mu.Lock()
	for _, id := range ids {
		delete(d.bus.subs, id)
	}
	d.bus.mu.Unlock()
	return nil
}

func (d *Driver) Publish(ctx context.Context, msg *message.Message, cfg message.Config) error {
	d.bus.mu.RLock()
	defer d.bus.mu.RUnlock()

	subject := msg.Subject()
	for _, s := range d.bus.subs {
		if message.MatchSubject(s.pattern, subject) {
			deliver := msg.Clone()
			h := s.handler
			go h(deliver)
		}
	}
	return nil
}

func (d *Driver) Subscribe(ctx context.Context, pattern string, cfg message.Config, handler transport.MessageHandler) (string, error) {
	id := uuid.New().String()

	d.bus.mu.Lock()
	d.bus.subs[id] = &subscription{id: id, pattern: pattern, handler: handler}
	d.bus.mu.Unlock()

	d.mu.Lock()
	d.ownSubs[id] = struct{}{}
	d.mu.Unlock()
	return id, nil
}

func (d *Driver) Unsubscribe(ctx context.Context, id string) error {
	d.bus.mu.Lock()
	delete(d.bus.subs, id)
	d.bus.mu.Unlock()

	d.mu.Lock()
	delete(d.ownSubs, id)
	d.mu.Unlock()
	return nil
}

func (d *Driver) SetEventHandler(kind transport.EventKind, handler transport.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if handler == nil {
		delete(d.events, kind)
		return
	}
	d.events[kind] = handler
}

func (d *Driver) MWInfo() string {
	return "loopback"
}

func (d *Driver) Endpoint() string {
	return d.busName
}
