package concurrency

import (
	"context"
	"log/slog"
	"time"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/logger"
)

// TicketMutex is a mutual-exclusion lock that wakes waiters in strict
// first-come-first-served order. A plain sync.Mutex makes no fairness
// guarantee — under contention a goroutine can be starved indefinitely by
// newer arrivals that happen to win the runtime's wakeup race. TicketMutex
// closes that gap by acquiring through a one-slot Semaphore, whose FIFO
// waiter queue serves waiting callers in the order they arrived.
type TicketMutex struct {
	name          string
	slowThreshold time.Duration

	sem *Semaphore
}

// NewTicketMutex builds a TicketMutex. slowThreshold, if positive, causes a
// warning to be logged when a holder keeps the lock past that duration;
// pass 0 to disable the check.
func NewTicketMutex(name string, slowThreshold time.Duration) *TicketMutex {
	return &TicketMutex{
		name:          name,
		slowThreshold: slowThreshold,
		sem:           NewSemaphore(1),
	}
}

// Lock blocks until this caller's ticket is being served, returning a
// release function the caller must invoke exactly once (instead of an
// Unlock method, so the ticket cannot be released out of order by a
// different call site).
func (t *TicketMutex) Lock(ctx context.Context) (func(), error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	acquiredAt := time.Now()
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if t.slowThreshold > 0 {
			if held := time.Since(acquiredAt); held > t.slowThreshold {
				logger.L().Warn("ticket mutex held past threshold",
					slog.String("mutex", t.name),
					slog.Duration("held", held),
					slog.Duration("threshold", t.slowThreshold))
			}
		}
		t.sem.Release(1)
	}, nil
}

// TryLock attempts to acquire without blocking, returning (release, true)
// on success.
func (t *TicketMutex) TryLock() (func(), bool) {
	if !t.sem.TryAcquire(1) {
		return nil, false
	}
	acquiredAt := time.Now()
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if t.slowThreshold > 0 {
			if held := time.Since(acquiredAt); held > t.slowThreshold {
				logger.L().Warn("ticket mutex held past threshold",
					slog.String("mutex", t.name), slog.Duration("held", held))
			}
		}
		t.sem.Release(1)
	}, true
}
