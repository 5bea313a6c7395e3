package resilience

import (
	"context"
	"sync"
	"time"
)

// CircuitBreaker protects an Executor from cascading failures by tracking
// consecutive outcomes and tripping to a fast-fail state once a threshold
// is crossed.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int64
	successes   int64
	openedAt    time.Time
}

// NewCircuitBreaker builds a CircuitBreaker starting in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// State returns the breaker's current state, first allowing a timed-out
// open breaker to transition to half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	return cb.state
}

func (cb *CircuitBreaker) maybeHalfOpenLocked() {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.Timeout {
		cb.transitionLocked(StateHalfOpen)
		cb.successes = 0
	}
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// Allow reports whether a call should be let through right now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	return cb.state != StateOpen
}

// Execute runs fn if the breaker permits it, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn Executor) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.successes = 0
		cb.failures++
		switch cb.state {
		case StateHalfOpen:
			cb.transitionLocked(StateOpen)
			cb.openedAt = time.Now()
		case StateClosed:
			if cb.failures >= cb.cfg.FailureThreshold {
				cb.transitionLocked(StateOpen)
				cb.openedAt = time.Now()
			}
		}
		return
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.transitionLocked(StateClosed)
		}
	}
}

// ErrCircuitOpen is returned by Execute when the breaker is open.
var ErrCircuitOpen = &breakerOpenError{}

type breakerOpenError struct{}

func (*breakerOpenError) Error() string { return "circuit breaker open" }
