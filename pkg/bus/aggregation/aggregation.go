// Package aggregation implements GMSEC "message binning": Publish calls
// whose subject matches a configured aggregation pattern are buffered
// instead of being sent individually, then flushed as a single composite
// message once a message-count or time threshold is reached.
package aggregation

import (
	"fmt"
	"sync"
	"time"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

// FlushFunc publishes a composite message once a bin is ready. Per the
// resolved aggregation/per-publish-config design question, the composite
// is always handed to FlushFunc with a default (empty) Config — never the
// mw-config of whichever individual Offer call happened to fill the bin.
type FlushFunc func(composite *message.Message)

type bin struct {
	pattern  string
	messages []*message.Message
	timer    *time.Timer
}

// Engine coordinates per-pattern bins.
type Engine struct {
	mu          sync.Mutex
	patterns    []string
	maxMessages int
	flushPeriod time.Duration
	bins        map[string]*bin
	flush       FlushFunc
}

// New builds an Engine. patterns lists the subject patterns (may include
// "*"/">" wildcards) eligible for binning; maxMessages and flushPeriod are
// the per-bin flush thresholds (mirroring the "gmsec-msg-bin-size" and
// "gmsec-msg-bin-timeout" configuration keys); flush is invoked on a new
// goroutine (whether the bin was flushed by this Engine's timer or by
// Offer when the bin filled) to publish the composite.
func New(patterns []string, maxMessages int, flushPeriod time.Duration, flush FlushFunc) *Engine {
	return &Engine{
		patterns:    patterns,
		maxMessages: maxMessages,
		flushPeriod: flushPeriod,
		bins:        make(map[string]*bin),
		flush:       flush,
	}
}

// Offer hands msg to the engine. It returns true if msg was binned (the
// caller must not publish it itself) or false if no configured pattern
// matches the message's subject (the caller should publish normally).
func (e *Engine) Offer(msg *message.Message) bool {
	pattern := e.matchingPattern(msg.Subject())
	if pattern == "" {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.bins[pattern]
	if !ok {
		b = &bin{pattern: pattern}
		e.bins[pattern] = b
		if e.flushPeriod > 0 {
			b.timer = time.AfterFunc(e.flushPeriod, func() { e.flushPattern(pattern) })
		}
	}

	b.messages = append(b.messages, msg.Clone())

	if e.maxMessages > 0 && len(b.messages) >= e.maxMessages {
		e.flushLocked(pattern)
	}

	return true
}

func (e *Engine) matchingPattern(subject string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.patterns {
		if message.MatchSubject(p, subject) {
			return p
		}
	}
	return ""
}

func (e *Engine) flushPattern(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushLocked(pattern)
}

// flushLocked must be called with e.mu held.
func (e *Engine) flushLocked(pattern string) {
	b, ok := e.bins[pattern]
	if !ok || len(b.messages) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	messages := b.messages
	delete(e.bins, pattern)

	composite := buildComposite(pattern, messages)
	flush := e.flush
	go flush(composite)
}

// FlushAll forces every pending bin to flush immediately, used on
// Disconnect so no binned message is silently dropped.
func (e *Engine) FlushAll() {
	e.mu.Lock()
	patterns := make([]string, 0, len(e.bins))
	for p := range e.bins {
		patterns = append(patterns, p)
	}
	e.mu.Unlock()

	for _, p := range patterns {
		e.flushPattern(p)
	}
}

func buildComposite(pattern string, messages []*message.Message) *message.Message {
	composite := message.New(pattern, message.Publish)
	composite.SetConfig(message.Config{})
	composite.AddField(message.NewU32Field("MSG-BIN-SIZE", uint32(len(messages))).WithHeader(true))
	for i, m := range messages {
		data, err := m.ToXML()
		if err != nil {
			data = []byte(fmt.Sprintf("<!-- failed to encode bin entry: %v -->", err))
		}
		composite.AddField(message.NewBinaryField(fmt.Sprintf("MSG-BIN-%03d", i+1), data))
	}
	return composite
}
