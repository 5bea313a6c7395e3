// Package correlator implements the RequestCorrelator: tracking one
// PendingRequest per outstanding synchronous or callback-style Request
// call, matching replies back to their request by correlation id, and
// driving the republish timer documented in spec.md §4 ("if no reply
// arrives within the republish interval, resend the request").
package correlator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

// Field names used to correlate a Reply back to its Request. Current is
// written by this implementation; Legacy is also accepted on receipt for
// interoperability with senders using the older field name.
const (
	FieldCorrelationIDCurrent = "UNIQUE-ID"
	FieldCorrelationIDLegacy  = "UNIQ-ID"
)

// FieldReplySubject carries the concrete subject a Reply must be published
// to so it reaches back to the requesting Connection's own reply
// subscription, since a Request's subject is whatever the caller chose to
// publish on and replies can't simply reuse it as a return address.
const FieldReplySubject = "MW-REPLY-SUBJECT"

// ErrTimeout is returned when no reply arrives before the request's
// deadline elapses.
var ErrTimeout = errors.New("correlator: request timed out waiting for reply")

// ExtractCorrelationID reads the correlation id a Reply message carries,
// preferring the current field name and falling back to the legacy one.
func ExtractCorrelationID(msg *message.Message) (string, bool) {
	if f, ok := msg.GetField(FieldCorrelationIDCurrent); ok {
		return f.StringValue(), true
	}
	if f, ok := msg.GetField(FieldCorrelationIDLegacy); ok {
		return f.StringValue(), true
	}
	return "", false
}

type pendingRequest struct {
	replyCh  chan *message.Message
	callback func(*message.Message)
}

// Correlator tracks pending requests by correlation id.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

func New() *Correlator {
	return &Correlator{pending: make(map[string]*pendingRequest)}
}

// Deliver routes an incoming reply to its pending request, if any. It
// returns false if no request is outstanding for the reply's correlation
// id (e.g. the request already timed out), in which case the caller
// should treat the reply as an unsolicited message.
func (c *Correlator) Deliver(reply *message.Message) bool {
	id, ok := ExtractCorrelationID(reply)
	if !ok {
		return false
	}

	c.mu.Lock()
	pr, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return false
	}

	if pr.callback != nil {
		go pr.callback(reply)
		return true
	}

	select {
	case pr.replyCh <- reply:
	default:
	}
	return true
}

// Request registers id as pending, calls publish to send the request, then
// blocks until a reply is delivered, the deadline elapses, ctx is
// cancelled, or — if republishInterval is positive — republishes via
// publish each time the interval elapses without a reply.
func (c *Correlator) Request(ctx context.Context, id string, timeout, republishInterval time.Duration, publish func() error) (*message.Message, error) {
	pr := &pendingRequest{replyCh: make(chan *message.Message, 1)}
	c.register(id, pr)
	defer c.unregister(id)

	if err := publish(); err != nil {
		return nil, err
	}

	return c.wait(ctx, pr, timeout, republishInterval, publish)
}

// RequestAsync is the callback-style counterpart: it returns as soon as
// publish succeeds, and invokes onReply (from a new goroutine) whenever a
// matching reply is delivered, until Cancel is called.
func (c *Correlator) RequestAsync(id string, publish func() error, onReply func(*message.Message)) error {
	pr := &pendingRequest{callback: onReply}
	c.register(id, pr)
	return publish()
}

// Cancel stops tracking a request, used by Connection.RequestAsync once a
// single-response request has its reply and by Connection.CancelRequest.
func (c *Correlator) Cancel(id string) {
	c.unregister(id)
}

func (c *Correlator) register(id string, pr *pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = pr
}

func (c *Correlator) unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Correlator) wait(ctx context.Context, pr *pendingRequest, timeout, republishInterval time.Duration, publish func() error) (*message.Message, error) {
	var deadlineCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadlineCh = timer.C
	}

	var republishCh <-chan time.Time
	if republishInterval > 0 {
		ticker := time.NewTicker(republishInterval)
		defer ticker.Stop()
		republishCh = ticker.C
	}

	for {
		select {
		case reply := <-pr.replyCh:
			return reply, nil
		case <-deadlineCh:
			return nil, ErrTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-republishCh:
			_ = publish()
		}
	}
}

// Pending returns the number of outstanding requests, used for
// diagnostics.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
