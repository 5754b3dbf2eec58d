package filters

import (
	"errors"
	"sync"
	"time"

	"github.com/kbukum/httpkit"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows attempts to pass through.
	StateClosed State = iota
	// StateOpen blocks all attempts.
	StateOpen
	// StateHalfOpen allows limited attempts to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen aborts an exchange whose attempt the breaker refused.
var ErrCircuitOpen = errors.New("httpkit: circuit breaker is open")

// BreakerConfig configures a circuit breaker filter.
type BreakerConfig struct {
	// Name identifies this breaker in state change notifications.
	Name string
	// MaxFailures is the number of failures before opening the circuit.
	MaxFailures int
	// Timeout is how long to wait before transitioning from open to half-open.
	Timeout time.Duration
	// HalfOpenMaxCalls is the number of attempts allowed in half-open state.
	HalfOpenMaxCalls int
	// FailureIf decides whether a response counts as a failure. Defaults to
	// treating 5xx statuses as failures.
	FailureIf func(ex *httpkit.Exchange) bool
	// OnStateChange is called when the state changes.
	OnStateChange func(name string, from, to State)
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// DefaultFailureIf counts 5xx responses as failures.
func DefaultFailureIf(ex *httpkit.Exchange) bool {
	return ex.Response == nil || ex.Response.StatusCode >= 500
}

// Breaker is a circuit breaker filter. It gates every attempt before the
// transport runs and records every response, failing attempts fast with
// ErrCircuitOpen while the circuit is open.
//
// States:
//   - Closed: normal operation, attempts pass through
//   - Open: the upstream is unhealthy, attempts fail immediately
//   - Half-Open: testing recovery, a limited number of attempts allowed
//
// Unlike the other filters in this package a breaker is stateful across
// exchanges; register one instance per upstream and share it between
// clients that talk to the same host.
type Breaker struct {
	config BreakerConfig

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	halfOpenCalls   int
}

// NewBreaker creates a circuit breaker filter.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}
	if config.FailureIf == nil {
		config.FailureIf = DefaultFailureIf
	}
	return &Breaker{config: config, state: StateClosed}
}

// FilterRequest gates the attempt.
func (b *Breaker) FilterRequest(ex *httpkit.Exchange) error {
	if !b.allowRequest() {
		return ErrCircuitOpen
	}
	return nil
}

// OnResponse records the attempt outcome.
func (b *Breaker) OnResponse(ex *httpkit.Exchange) {
	b.recordResult(b.config.FailureIf(ex))
}

// State returns the current circuit breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Failures returns the current failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset resets the circuit breaker to closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toState(StateClosed)
	b.failures = 0
	b.successes = 0
	b.halfOpenCalls = 0
}

func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.halfOpenCalls < b.config.HalfOpenMaxCalls {
			b.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

func (b *Breaker) recordResult(failure bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if failure {
		b.onFailure()
	} else {
		b.onSuccess()
	}
}

func (b *Breaker) onSuccess() {
	switch b.currentState() {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.HalfOpenMaxCalls {
			b.toState(StateClosed)
		}
	}
}

func (b *Breaker) onFailure() {
	b.failures++
	b.lastFailureTime = time.Now()

	switch b.currentState() {
	case StateClosed:
		if b.failures >= b.config.MaxFailures {
			b.toState(StateOpen)
		}
	case StateHalfOpen:
		b.toState(StateOpen)
	}
}

// currentState returns the current state, handling timeout transitions.
// Callers must hold mu.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && time.Since(b.lastFailureTime) >= b.config.Timeout {
		b.toState(StateHalfOpen)
	}
	return b.state
}

// toState transitions to a new state. Callers must hold mu.
func (b *Breaker) toState(to State) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to

	switch to {
	case StateClosed:
		b.failures = 0
		b.successes = 0
		b.halfOpenCalls = 0
	case StateHalfOpen, StateOpen:
		b.halfOpenCalls = 0
		b.successes = 0
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}
