// Package dispatch implements the AutoDispatcher: a single background
// thread that repeatedly receives from the connection's inbound queue and
// hands each message to the callback registry, freeing the caller from
// polling Receive manually. Exactly one AutoDispatcher may run per
// Connection at a time, matching startAutoDispatch()'s exclusivity in the
// original API.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

// ErrAlreadyRunning is returned by Start when a dispatcher thread is
// already active.
var ErrAlreadyRunning = errors.New("dispatch: auto-dispatcher already running")

// ReceiveFunc blocks up to timeout waiting for the next inbound message,
// returning (nil, nil) on a plain timeout with nothing available.
type ReceiveFunc func(ctx context.Context, timeout time.Duration) (*message.Message, error)

// DispatchFunc hands a received message to registered callbacks.
type DispatchFunc func(msg *message.Message)

const pollInterval = 100 * time.Millisecond

// AutoDispatcher owns the single background receive loop.
type AutoDispatcher struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New() *AutoDispatcher {
	return &AutoDispatcher{}
}

// Start launches the dispatch loop. It fails with ErrAlreadyRunning if one
// is already active.
func (d *AutoDispatcher) Start(receive ReceiveFunc, dispatch DispatchFunc, onError func(error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.running = true

	d.wg.Add(1)
	go d.run(ctx, receive, dispatch, onError)
	return nil
}

func (d *AutoDispatcher) run(ctx context.Context, receive ReceiveFunc, dispatch DispatchFunc, onError func(error)) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := receive(ctx, pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if onError != nil {
				onError(err)
			}
			continue
		}
		if msg != nil {
			dispatch(msg)
		}
	}
}

// Stop cancels the dispatch loop and waits for it to exit. It is a no-op
// if no dispatcher is running.
func (d *AutoDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.running = false
	d.mu.Unlock()

	d.wg.Wait()
}

// Running reports whether a dispatch loop is currently active.
func (d *AutoDispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
