// Package callback implements CallbackLookup / SubscriptionRegistry: the
// mapping from subscribed subject patterns to the set of driver
// subscription ids and user callbacks layered on top of them, and the
// three-way duplicate-subscribe check (IS_NEW / NOT_NEW /
// ERR_IS_DUPLICATE[_USING_CALLBACK]) the original API performs.
package callback

import (
	"sync"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

// Callback receives a message delivered to a matching subscription.
type Callback func(msg *message.Message)

// CheckResult is the outcome of registering a (pattern, callback) pair.
type CheckResult int

const (
	// IsNew means no subscription exists yet for this pattern; the caller
	// must create one at the transport layer.
	IsNew CheckResult = iota
	// NotNew means a subscription for this pattern already exists and the
	// new callback was added to it without a new transport subscription.
	NotNew
	// ErrDuplicate means a subscription for this pattern already exists
	// with no callback (a plain receive-queue subscription) and a second
	// such subscription was attempted.
	ErrDuplicate
	// ErrDuplicateUsingCallback means the exact same callback is already
	// registered against this pattern.
	ErrDuplicateUsingCallback
)

type entry struct {
	driverSubID string
	callbacks   []Callback
	callbackIDs []uintptr
	plain       bool // true if this pattern was subscribed with no callback
}

// Registry tracks subscriptions by pattern.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register records a (pattern, callback) subscription attempt. cbID is an
// opaque identity for cb (typically derived via reflect.ValueOf(cb).Pointer()
// by the caller) used only to detect the exact-same-callback-twice case.
func (r *Registry) Register(pattern string, cb Callback, cbID uintptr) CheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[pattern]
	if !exists {
		e = &entry{plain: cb == nil}
		r.entries[pattern] = e
		if cb != nil {
			e.callbacks = append(e.callbacks, cb)
			e.callbackIDs = append(e.callbackIDs, cbID)
		}
		return IsNew
	}

	if cb == nil {
		if e.plain || len(e.callbacks) == 0 {
			return ErrDuplicate
		}
		// A plain subscribe on a pattern that already has callbacks is
		// still a duplicate of the pattern itself.
		return ErrDuplicate
	}

	for _, id := range e.callbackIDs {
		if id == cbID {
			return ErrDuplicateUsingCallback
		}
	}

	e.callbacks = append(e.callbacks, cb)
	e.callbackIDs = append(e.callbackIDs, cbID)
	return NotNew
}

// SetDriverSubID records the transport-level subscription id created for a
// newly-registered pattern.
func (r *Registry) SetDriverSubID(pattern, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[pattern]; ok {
		e.driverSubID = id
	}
}

// Dispatch invokes every callback registered for patterns matching subject.
func (r *Registry) Dispatch(subject string, msg *message.Message) {
	r.mu.Lock()
	var callbacks []Callback
	for pattern, e := range r.entries {
		if message.MatchSubject(pattern, subject) {
			callbacks = append(callbacks, e.callbacks...)
		}
	}
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb(msg)
	}
}

// Unregister removes the subscription for pattern entirely, together with
// every callback registered on it, and returns the transport subscription
// id to unsubscribe at the driver with shouldUnsubscribe true. It returns
// ("", false) when pattern is not subscribed.
func (r *Registry) Unregister(pattern string) (driverSubID string, shouldUnsubscribe bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[pattern]
	if !ok {
		return "", false
	}
	driverSubID = e.driverSubID
	delete(r.entries, pattern)
	return driverSubID, true
}

// Patterns returns every currently subscribed pattern, used to populate the
// SUBSCRIPTION.n.SUBJECT-PATTERN tracking fields.
func (r *Registry) Patterns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for p := range r.entries {
		out = append(out, p)
	}
	return out
}

// Count returns the number of distinct subscribed patterns.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
