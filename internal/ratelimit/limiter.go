// Package ratelimit implements per-identity fixed-window admission
// control for mutation traffic.
//
// The policy is a fixed (not sliding) window anchored at the identity's
// first action: the first attempt opens a window with count 1; attempts
// inside a live window are admitted until the configured maximum, then
// rejected; an attempt after the window has elapsed opens a fresh window.
// Window state is reset eagerly when the window has expired, even on an
// attempt that would otherwise be rejected, so an identity can never be
// locked out by stale state after an idle period.
//
// Identities are fully isolated: one identity's throughput never affects
// another's quota. State is in-memory only and lost on restart.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrLimitExceeded is returned when an identity has used its full quota
// for the current window
var ErrLimitExceeded = errors.New("rate limit exceeded")

// window tracks one identity's usage of the current fixed window
type window struct {
	start time.Time // When the current window opened
	count int       // Actions admitted in this window
}

// Limiter admits or rejects actions per identity under a fixed-window
// quota. Safe for concurrent use; the check-and-increment for a given
// attempt is a single atomic unit, so two racing attempts at the quota
// boundary can never both be admitted.
type Limiter struct {
	max     int                // Max actions per window
	span    time.Duration      // Window length
	mu      sync.Mutex         // Protects windows
	windows map[string]*window // Per-identity state, created lazily
	now     func() time.Time   // Clock, injectable for tests
}

// New creates a limiter allowing max actions per identity within each
// window of the given length
func New(max int, span time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		span:    span,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// SetClock replaces the limiter's clock. Intended for tests that need to
// step time across window boundaries deterministically.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Attempt records an action attempt by the identity. Returns nil when
// admitted and ErrLimitExceeded when the identity's quota for the
// current window is exhausted. Admission mutates the window state;
// rejection leaves it unchanged except that an expired window is reset
// first (so the attempt that finds an expired window is always admitted,
// regardless of the old count).
func (l *Limiter) Attempt(identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[identity]
	if !ok || now.Sub(w.start) > l.span {
		l.windows[identity] = &window{start: now, count: 1}
		return nil
	}
	if w.count >= l.max {
		return ErrLimitExceeded
	}
	w.count++
	return nil
}

// Len returns the number of identities with tracked window state
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
