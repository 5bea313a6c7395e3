// Package bolt implements the "bolt" transport driver: a minimal,
// length-prefixed framing protocol over a single plain TCP connection to a
// relay process. Unlike every other driver in this tree, Bolt has no
// standard client library to wrap — its defining trait in the original
// system is a bespoke point-to-point TCP frame, so this driver talks the
// wire protocol directly against net/bufio rather than reaching for a
// third-party client (see DESIGN.md).
package bolt

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
)

func init() {
	transport.Register("bolt", New)
}

const (
	frameSubscribe byte = 0x01
	framePublish   byte = 0x02
	frameDeliver   byte = 0x03
)

type localSub struct {
	pattern string
	handler transport.MessageHandler
}

// Driver is a single TCP connection to a Bolt relay, fanning delivered
// frames out to every locally registered pattern that matches.
type Driver struct {
	conn   net.Conn
	writeM sync.Mutex

	mu   sync.Mutex
	subs map[string]*localSub

	endpoint string
	cancel   context.CancelFunc
}

func New(cfg message.Config) (transport.Driver, error) {
	addr := cfg.GetWithDefault("mw-server", "localhost:9100")
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bolt: dial %s: %w", addr, err)
	}

	d := &Driver{conn: conn, subs: make(map[string]*localSub), endpoint: addr}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.readLoop(ctx)

	return d, nil
}

func (d *Driver) Connect(ctx context.Context) error    { return nil }
func (d *Driver) Disconnect(ctx context.Context) error {
	d.cancel()
	return d.conn.Close()
}

func (d *Driver) Publish(ctx context.Context, msg *message.Message, cfg message.Config) error {
	body, err := msg.ToXML()
	if err != nil {
		return err
	}
	return d.writeFrame(framePublish, encodeSubjectPayload(msg.Subject(), body))
}

func (d *Driver) Subscribe(ctx context.Context, pattern string, cfg message.Config, handler transport.MessageHandler) (string, error) {
	id := pattern + "#" + uuid.New().String()

	d.mu.Lock()
	d.subs[id] = &localSub{pattern: pattern, handler: handler}
	d.mu.Unlock()

	if err := d.writeFrame(frameSubscribe, []byte(pattern)); err != nil {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
		return "", err
	}
	return id, nil
}

func (d *Driver) Unsubscribe(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, id)
	return nil
}

func (d *Driver) SetEventHandler(kind transport.EventKind, handler transport.EventHandler) {}

func (d *Driver) MWInfo() string   { return "bolt" }
func (d *Driver) Endpoint() string { return d.endpoint }

// writeFrame sends one [type:1][length:4 BE][payload] frame.
func (d *Driver) writeFrame(frameType byte, payload []byte) error {
	d.writeM.Lock()
	defer d.writeM.Unlock()

	header := make([]byte, 5)
	header[0] = frameType
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if _, err := d.conn.Write(header); err != nil {
		return err
	}
	_, err := d.conn.Write(payload)
	return err
}

func (d *Driver) readLoop(ctx context.Context) {
	r := bufio.NewReader(d.conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		header := make([]byte, 5)
		if _, err := io.ReadFull(r, header); err != nil {
			return
		}
		frameType := header[0]
		length := binary.BigEndian.Uint32(header[1:])

		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return
		}

		if frameType != frameDeliver {
			continue
		}

		subject, body, err := decodeSubjectPayload(payload)
		if err != nil {
			continue
		}
		msg, err := message.FromXML(body)
		if err != nil {
			continue
		}
		d.dispatch(subject, msg)
	}
}

func (d *Driver) dispatch(subject string, msg *message.Message) {
	d.mu.Lock()
	var handlers []transport.MessageHandler
	for _, s := range d.subs {
		if message.MatchSubject(s.pattern, subject) {
			handlers = append(handlers, s.handler)
		}
	}
	d.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

// encodeSubjectPayload packs [subjectLen:2 BE][subject][body].
func encodeSubjectPayload(subject string, body []byte) []byte {
	out := make([]byte, 2+len(subject)+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(subject)))
	copy(out[2:], subject)
	copy(out[2+len(subject):], body)
	return out
}

func decodeSubjectPayload(payload []byte) (subject string, body []byte, err error) {
	if len(payload) < 2 {
		return "", nil, fmt.Errorf("bolt: frame too short")
	}
	subjLen := int(binary.BigEndian.Uint16(payload[0:2]))
	if len(payload) < 2+subjLen {
		return "", nil, fmt.Errorf("bolt: frame truncated")
	}
	subject = string(payload[2 : 2+subjLen])
	body = payload[2+subjLen:]
	return subject, body, nil
}
