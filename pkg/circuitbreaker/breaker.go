package circuitbreaker

import (
	"sync"
	"time"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
)

// CircuitBreaker guards a gateway against repeated failures. After the
// failure threshold is reached within the window it trips open and rejects
// calls until the reset timeout elapses.
type CircuitBreaker struct {
	name          string
	enabled       bool
	failureCount  int
	failureWindow time.Duration
	failThreshold int
	resetTimeout  time.Duration
	lastFailure   time.Time
	tripped       bool
	tripTime      time.Time
	logger        logger.Logger
	mu            sync.Mutex
}

// New creates a circuit breaker for the named gateway
func New(name string, enabled bool, threshold int, window, resetTimeout time.Duration, log logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:          name,
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
		logger:        log,
	}
}

// Allow reports whether a call may proceed. A tripped breaker re-closes once
// the reset timeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	if !cb.enabled {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.tripped && time.Since(cb.tripTime) > cb.resetTimeout {
		cb.logger.Notice("Circuit breaker %s: re-closing after reset timeout", cb.name)
		cb.tripped = false
		cb.failureCount = 0
	}

	return !cb.tripped
}

// RecordFailure records a failure and trips the circuit if the threshold is
// exceeded. Returns true when the circuit is open after the call.
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	if cb.tripped {
		if time.Since(cb.tripTime) > cb.resetTimeout {
			cb.tripped = false
			cb.failureCount = 0
		} else {
			return true
		}
	}

	// Failures outside the window no longer count
	if time.Since(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount >= cb.failThreshold {
		cb.tripped = true
		cb.tripTime = now
		cb.logger.Error("Circuit breaker %s tripped: %d failures in %v window", cb.name, cb.failureCount, cb.failureWindow)
		return true
	}

	return false
}

// RecordSuccess clears the failure streak
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
}

// Reset manually resets the circuit breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.tripped = false
	cb.failureCount = 0
}

// State returns the breaker name, whether it is open, and the current failure count
func (cb *CircuitBreaker) State() (name string, open bool, failureCount int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	open = cb.tripped && time.Since(cb.tripTime) <= cb.resetTimeout
	return cb.name, open, cb.failureCount
}

// IsEnabled returns true if the circuit breaker is enabled
func (cb *CircuitBreaker) IsEnabled() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.enabled
}
