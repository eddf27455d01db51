package agenterrors

import (
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker trips after a run of consecutive Transport failures
// against the same collaborator (a provider extension or an MCP server),
// so retries stop being spent against a known-down endpoint before
// max_retries is exhausted.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	resetTimeout     time.Duration
	consecutiveFails int
	state            CircuitState
	openedAt         time.Time
}

// NewCircuitBreaker trips to CircuitOpen after failureThreshold consecutive
// failures. Once resetTimeout has elapsed it moves to CircuitHalfOpen, where
// Allow reports true for every call until the next RecordSuccess closes it
// or RecordFailure re-opens it.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            CircuitClosed,
	}
}

// Allow reports whether a call should proceed, transitioning Open→HalfOpen
// once resetTimeout has elapsed.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitOpen:
		if time.Since(c.openedAt) >= c.resetTimeout {
			c.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (c *CircuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFails = 0
	c.state = CircuitClosed
}

// RecordFailure counts a failure, tripping the breaker open once the
// threshold is reached. A failure observed while half-open re-opens it
// immediately.
func (c *CircuitBreaker) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == CircuitHalfOpen {
		c.state = CircuitOpen
		c.openedAt = time.Now()
		return
	}

	c.consecutiveFails++
	if c.consecutiveFails >= c.failureThreshold {
		c.state = CircuitOpen
		c.openedAt = time.Now()
	}
}

// State reports the current CircuitState.
func (c *CircuitBreaker) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
