package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker is rejecting calls.
var ErrBreakerOpen = errors.New("redis breaker open")

// Breaker state values. Exported as plain ints so the metrics gauge can
// report them directly.
const (
	BreakerClosed   = 0 // normal operation
	BreakerOpen     = 1 // tripped, calls rejected until the cooldown elapses
	BreakerHalfOpen = 2 // cooldown elapsed, probing with a single call
)

// breaker trips after maxFailures consecutive errors and rejects calls for
// cooldown. The first call after the cooldown runs as a probe: success
// closes the breaker, failure reopens it.
type breaker struct {
	mu          sync.Mutex
	state       int
	failures    int
	maxFailures int
	cooldown    time.Duration
	trippedAt   time.Time

	onChange func(state int) // optional, called with the new state
}

func newBreaker(maxFailures int, cooldown time.Duration, onChange func(int)) *breaker {
	return &breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		onChange:    onChange,
	}
}

// do runs fn unless the breaker is open, and folds fn's outcome back into
// the breaker state.
func (b *breaker) do(fn func() error) error {
	b.mu.Lock()
	if b.state == BreakerOpen {
		if time.Since(b.trippedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.set(BreakerHalfOpen)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.trippedAt = time.Now()
		if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
			b.set(BreakerOpen)
		}
		return err
	}

	b.failures = 0
	if b.state != BreakerClosed {
		b.set(BreakerClosed)
	}
	return nil
}

// currentState returns the state for health reporting.
func (b *breaker) currentState() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// set transitions state; caller holds the lock.
func (b *breaker) set(state int) {
	if b.state == state {
		return
	}
	b.state = state
	if b.onChange != nil {
		b.onChange(state)
	}
}
