package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock provides a controllable time source for breaker tests.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, recovery time.Duration) (*CircuitBreaker, *testClock) {
	clock := &testClock{t: time.Unix(1000, 0)}
	b := NewCircuitBreaker("test-service", threshold, recovery)
	b.now = clock.now
	return b, clock
}

func TestBreakerStartsClosed(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute)
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Check())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	err := b.Check()
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "test-service", openErr.Service)
	assert.Greater(t, openErr.RetryAfter, time.Duration(0))
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Counter is reset: two more failures do not open.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenAfterRecoveryTimeout(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	clock.advance(59 * time.Second)
	assert.Equal(t, StateOpen, b.State())

	clock.advance(2 * time.Second)
	// Reading the state performs the OPEN → HALF_OPEN transition.
	assert.Equal(t, StateHalfOpen, b.State())
	assert.NoError(t, b.Check())
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	clock.advance(2 * time.Minute)
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(5, time.Minute)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.advance(2 * time.Minute)
	require.Equal(t, StateHalfOpen, b.State())

	// A single failure in HALF_OPEN reopens regardless of the threshold.
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	// The recovery timer restarted.
	clock.advance(59 * time.Second)
	assert.Equal(t, StateOpen, b.State())
	clock.advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestObserveClassifiesErrors(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	// Permanent errors do not trip the breaker.
	b.Observe(errors.New("malformed response"))
	assert.Equal(t, StateClosed, b.State())

	b.Observe(Transient(errors.New("timeout")))
	assert.Equal(t, StateOpen, b.State())

	// nil records a success and closes it again.
	b.Observe(nil)
	assert.Equal(t, StateClosed, b.State())
}

func TestRegistryReturnsStableInstances(t *testing.T) {
	resetRegistry()
	t.Cleanup(resetRegistry)

	a := GetBreaker("docling")
	b := GetBreaker("docling")
	c := GetBreaker("embedding")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
