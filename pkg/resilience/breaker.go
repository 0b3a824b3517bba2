package resilience

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState string

// Circuit breaker states.
const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// CircuitOpenError is returned when a call is rejected because the breaker
// for a service is OPEN. RetryAfter is the remaining cool-down.
type CircuitOpenError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %q, retry after %.1fs", e.Service, e.RetryAfter.Seconds())
}

// CircuitBreaker tracks consecutive failures for one service and rejects
// calls when too many occur.
//
// States:
//
//	CLOSED:    normal operation, consecutive failures are counted.
//	OPEN:      calls are rejected immediately after FailureThreshold
//	           consecutive failures. Moves to HALF_OPEN after
//	           RecoveryTimeout has elapsed since the last failure.
//	HALF_OPEN: one trial call is allowed through. Success closes the
//	           circuit, failure reopens it and restarts the timer.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time

	now func() time.Time // overridable in tests
}

// NewCircuitBreaker creates a breaker in the CLOSED state.
func NewCircuitBreaker(name string, failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// State returns the current state. Reading the state of an OPEN breaker whose
// cool-down has elapsed transitions it to HALF_OPEN.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		elapsed := b.now().Sub(b.lastFailure)
		if elapsed >= b.recoveryTimeout {
			b.state = StateHalfOpen
			slog.Info("Circuit breaker moved to HALF_OPEN",
				"service", b.name,
				"elapsed", elapsed)
		}
	}
	return b.state
}

// Check returns a *CircuitOpenError if the breaker is OPEN, nil otherwise.
// The state read may itself trigger the OPEN → HALF_OPEN transition.
func (b *CircuitBreaker) Check() error {
	if b.State() != StateOpen {
		return nil
	}
	b.mu.Lock()
	remaining := b.recoveryTimeout - b.now().Sub(b.lastFailure)
	b.mu.Unlock()
	if remaining < 0 {
		remaining = 0
	}
	return &CircuitOpenError{Service: b.name, RetryAfter: remaining}
}

// RecordSuccess resets the failure counter and closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state != StateClosed {
		slog.Info("Circuit breaker is now CLOSED", "service", b.name)
	}
	b.state = StateClosed
}

// RecordFailure increments the failure counter, opening the breaker once the
// threshold is reached. A failure in HALF_OPEN reopens immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		b.state = StateOpen
		slog.Warn("Circuit breaker is now OPEN",
			"service", b.name,
			"consecutive_failures", b.failures)
	}
}

// Observe records err as a success or failure. Only transient errors count
// against the breaker; permanent failures (bad input, parse errors) do not
// indicate service unhealthiness.
func (b *CircuitBreaker) Observe(err error) {
	if err == nil {
		b.RecordSuccess()
		return
	}
	if IsTransient(err) {
		b.RecordFailure()
	}
}

// ────────────────────────────────────────────────────────────
// Process-wide registry
// ────────────────────────────────────────────────────────────

var (
	registryMu sync.Mutex
	registry   = make(map[string]*CircuitBreaker)
)

// Breaker defaults applied by the registry.
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
)

// GetBreaker returns the process-wide breaker for serviceName, creating it
// with default thresholds on first use. Instances are stable: repeated calls
// with the same name return the same breaker.
func GetBreaker(serviceName string) *CircuitBreaker {
	registryMu.Lock()
	defer registryMu.Unlock()
	if b, ok := registry[serviceName]; ok {
		return b
	}
	b := NewCircuitBreaker(serviceName, DefaultFailureThreshold, DefaultRecoveryTimeout)
	registry[serviceName] = b
	return b
}

// resetRegistry clears all breakers. Test helper.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*CircuitBreaker)
}
