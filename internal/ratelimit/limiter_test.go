package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock steps time manually so window boundaries are deterministic
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// TestLimiterQuota verifies that exactly max actions fit in one window
// and the next attempt is rejected
func TestLimiterQuota(t *testing.T) {
	l := New(3, time.Minute)
	clock := newFakeClock()
	l.SetClock(clock.Now)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Attempt("alice"), "attempt %d should be admitted", i+1)
	}
	err := l.Attempt("alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLimitExceeded))

	// Rejection must not mutate state: still rejected, not double-counted
	assert.True(t, errors.Is(l.Attempt("alice"), ErrLimitExceeded))
}

// TestLimiterWindowReset verifies that an elapsed window admits again
// with a fresh count of one
func TestLimiterWindowReset(t *testing.T) {
	l := New(2, time.Minute)
	clock := newFakeClock()
	l.SetClock(clock.Now)

	require.NoError(t, l.Attempt("alice"))
	require.NoError(t, l.Attempt("alice"))
	require.Error(t, l.Attempt("alice"))

	clock.Advance(time.Minute + time.Second)

	// The attempt that finds the expired window is admitted and opens a
	// fresh window with count 1, even though the old count was exhausted.
	// This is the eager reset: a long-idle identity is never locked out.
	require.NoError(t, l.Attempt("alice"))
	require.NoError(t, l.Attempt("alice"))
	require.Error(t, l.Attempt("alice"), "fresh window must carry a fresh count, not the stale one")
}

// TestLimiterBoundary pins the window edge: an attempt at exactly the
// window length is still inside the window; one instant later is outside
func TestLimiterBoundary(t *testing.T) {
	l := New(1, time.Minute)
	clock := newFakeClock()
	l.SetClock(clock.Now)

	require.NoError(t, l.Attempt("alice"))

	clock.Advance(time.Minute)
	assert.True(t, errors.Is(l.Attempt("alice"), ErrLimitExceeded), "elapsed == window is still inside")

	clock.Advance(time.Nanosecond)
	require.NoError(t, l.Attempt("alice"), "elapsed > window opens a new window")
}

// TestLimiterIsolation verifies one identity's throughput never affects
// another's quota
func TestLimiterIsolation(t *testing.T) {
	l := New(1, time.Minute)

	require.NoError(t, l.Attempt("alice"))
	require.Error(t, l.Attempt("alice"))

	require.NoError(t, l.Attempt("bob"), "bob's quota must be untouched by alice")
	assert.Equal(t, 2, l.Len())
}

// TestLimiterConcurrent fires many racing attempts and checks that the
// check-and-increment is atomic: exactly max are admitted
func TestLimiterConcurrent(t *testing.T) {
	const max = 50
	l := New(max, time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < max*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Attempt("alice") == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(max), admitted.Load(), "exactly max attempts may pass the boundary")
}

// TestLimiterManyIdentities sanity-checks lazy state creation
func TestLimiterManyIdentities(t *testing.T) {
	l := New(5, time.Minute)
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Attempt(fmt.Sprintf("user-%d", i)))
	}
	assert.Equal(t, 20, l.Len())
}
