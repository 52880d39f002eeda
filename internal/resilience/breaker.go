// Package resilience provides reliability patterns for tool endpoint calls.
package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/Strob0t/tubedigest/internal/domain"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting
// calls. It classifies as an unavailable upstream.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", domain.ErrUpstreamUnavailable)

// State is the breaker's position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// Breaker opens after a run of consecutive failures and rejects calls until
// a timeout elapses, then lets a single probe through (half-open).
type Breaker struct {
	name        string
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	probing     bool
	now         func() time.Time // for testing

	// Trips decides which errors count as failures. Tool-level errors that
	// say nothing about endpoint health should return false. Defaults to
	// every non-nil error.
	Trips func(error) bool
	// OnStateChange, when set, is called outside the lock after each transition.
	OnStateChange func(name string, from, to State)
}

// NewBreaker creates a circuit breaker that opens after maxFailures consecutive
// failures and stays open for the given timeout before transitioning to half-open.
func NewBreaker(name string, maxFailures int, timeout time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		name:        name,
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// Name returns the breaker's name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn if the circuit is closed, or as the single probe when
// half-open. Returns ErrCircuitOpen otherwise.
func (b *Breaker) Execute(fn func() error) error {
	from, to, ok := b.allowRequest()
	b.notify(from, to)
	if !ok {
		return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
	}

	err := fn()

	b.mu.Lock()
	from = b.state
	b.probing = false
	if err != nil && b.trips(err) {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	to = b.state
	b.mu.Unlock()
	b.notify(from, to)

	return err
}

func (b *Breaker) trips(err error) bool {
	if b.Trips == nil {
		return true
	}
	return b.Trips(err)
}

func (b *Breaker) allowRequest() (from, to State, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	switch b.state {
	case StateClosed:
		ok = true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.state = StateHalfOpen
			b.probing = true
			ok = true
		}
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			ok = true
		}
	}
	return from, b.state, ok
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.OnStateChange != nil {
		b.OnStateChange(b.name, from, to)
	}
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.state = StateClosed
}
