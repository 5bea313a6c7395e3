// Package transport defines the narrow contract every concrete broker
// driver implements, and the registry that selects one by the "mw-id" /
// "connectionType" configuration key. It deliberately knows nothing about
// correlation, aggregation, tracking fields, or dedup — those live in
// pkg/bus and are layered on top of whatever driver is selected.
package transport

import (
	"context"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

// MessageHandler delivers one received message to a subscriber.
type MessageHandler func(msg *message.Message)

// EventKind identifies a connection lifecycle event a driver may raise.
type EventKind int

const (
	EventConnectionSuccessful EventKind = iota
	EventConnectionBroken
	EventConnectionReconnect
	EventConnectionException
	EventDispatcherError
)

// EventHandler receives asynchronous driver-level notifications.
type EventHandler func(kind EventKind, err error)

// Driver is the contract a concrete broker adapter must satisfy. Every
// method may be called concurrently by the Connection's read/write
// mutexes; drivers are not required to provide their own locking beyond
// what their own resource needs (a socket, a channel handle).
type Driver interface {
	// Connect establishes the underlying transport session.
	Connect(ctx context.Context) error

	// Disconnect tears the session down. It must be safe to call more than
	// once and safe to call without a prior successful Connect.
	Disconnect(ctx context.Context) error

	// Publish sends msg with driver-specific hints drawn from cfg (the
	// message's own Config as the Connection passes it; the
	// connection-level Config is not merged in).
	Publish(ctx context.Context, msg *message.Message, cfg message.Config) error

	// Subscribe registers interest in subjects matching pattern. Matching
	// messages are delivered to handler from a driver-owned goroutine.
	// Returns a subscription id the caller passes to Unsubscribe.
	Subscribe(ctx context.Context, pattern string, cfg message.Config, handler MessageHandler) (string, error)

	// Unsubscribe cancels a prior Subscribe by id.
	Unsubscribe(ctx context.Context, id string) error

	// SetEventHandler installs (or, with handler nil, clears) the sink for
	// asynchronous driver-level notifications (broken connection, etc).
	SetEventHandler(kind EventKind, handler EventHandler)

	// MWInfo returns a short, implementation-specific string describing the
	// connected middleware, used to populate the MW-INFO tracking field.
	MWInfo() string

	// Endpoint returns the address this driver is connected to, used to
	// populate the MW-CONNECTION-ENDPOINT tracking field.
	Endpoint() string
}

// Factory constructs a Driver from the merged connection Config.
type Factory func(cfg message.Config) (Driver, error)
