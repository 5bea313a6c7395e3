// Package zeromq implements the "zeromq" transport driver on top of
// github.com/nats-io/nats.go, the lightweight pub/sub client already in
// the example pack's dependency set and the nearest available analog for
// ZeroMQ's brokerless pub/sub pattern (see DESIGN.md). NATS subject
// wildcards ("*" for one token, ">" for one-or-more trailing tokens) match
// GMSEC's subject wildcard semantics token for token, so patterns pass
// through unmodified.
package zeromq

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
)

func init() {
	transport.Register("zeromq", New)
}

type Driver struct {
	conn     *nats.Conn
	endpoint string

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

func New(cfg message.Config) (transport.Driver, error) {
	url := cfg.GetWithDefault("mw-server", nats.DefaultURL)
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Driver{conn: conn, endpoint: url, subs: make(map[string]*nats.Subscription)}, nil
}

func (d *Driver) Connect(ctx context.Context) error { return nil }

func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	for _, s := range d.subs {
		s.Unsubscribe()
	}
	d.subs = make(map[string]*nats.Subscription)
	d.mu.Unlock()

	d.conn.Close()
	return nil
}

func (d *Driver) Publish(ctx context.Context, msg *message.Message, cfg message.Config) error {
	body, err := msg.ToXML()
	if err != nil {
		return err
	}
	return d.conn.Publish(msg.Subject(), body)
}

func (d *Driver) Subscribe(ctx context.Context, pattern string, cfg message.Config, handler transport.MessageHandler) (string, error) {
	sub, err := d.conn.Subscribe(pattern, func(m *nats.Msg) {
		if msg, err := message.FromXML(m.Data); err == nil {
			handler(msg)
		}
	})
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	id := pattern + "#" + sub.Subject
	d.subs[id] = sub
	d.mu.Unlock()
	return id, nil
}

func (d *Driver) Unsubscribe(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sub, ok := d.subs[id]; ok {
		sub.Unsubscribe()
		delete(d.subs, id)
	}
	return nil
}

func (d *Driver) SetEventHandler(kind transport.EventKind, handler transport.EventHandler) {
	switch kind {
	case transport.EventConnectionBroken:
		if handler == nil {
			d.conn.SetDisconnectErrHandler(nil)
			return
		}
		d.conn.SetDisconnectErrHandler(func(_ *nats.Conn, err error) {
			handler(transport.EventConnectionBroken, err)
		})
	case transport.EventConnectionReconnect:
		if handler == nil {
			d.conn.SetReconnectHandler(nil)
			return
		}
		d.conn.SetReconnectHandler(func(_ *nats.Conn) {
			handler(transport.EventConnectionReconnect, nil)
		})
	}
}

func (d *Driver) MWInfo() string   { return "zeromq(nats)" }
func (d *Driver) Endpoint() string { return d.endpoint }
