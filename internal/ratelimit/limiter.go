// Package ratelimit tracks consecutive failed login attempts per client key
// and enforces a lockout window once the limit is reached.
package ratelimit

import (
	"sync"
	"time"
)

// Default policy values.
const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

// Result reports the outcome of a rate-limit check.
type Result struct {
	Allowed           bool
	RemainingAttempts int
	// LockoutUntil is set when Allowed is false.
	LockoutUntil time.Time
}

type attempts struct {
	count       int
	lastAttempt time.Time
	lockedUntil time.Time
}

// Limiter is an in-memory failed-attempt counter store. It is safe for
// concurrent use within a single process; counters do not synchronize across
// instances.
type Limiter struct {
	mu          sync.Mutex
	entries     map[string]*attempts
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

// NewLimiter creates a Limiter with the given policy. Zero values fall back
// to the defaults.
func NewLimiter(maxAttempts int, lockout time.Duration) *Limiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockoutDuration
	}
	return &Limiter{
		entries:     make(map[string]*attempts),
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Check reports whether the key may attempt a login. An active lockout
// rejects the attempt with its expiry; an expired lockout clears the counter
// and restores full allowance. Reaching the attempt limit starts the lockout
// window from this moment, not from the first failure.
func (l *Limiter) Check(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		return Result{Allowed: true, RemainingAttempts: l.maxAttempts}
	}

	if !entry.lockedUntil.IsZero() {
		if now.Before(entry.lockedUntil) {
			return Result{Allowed: false, LockoutUntil: entry.lockedUntil}
		}
		// Lockout has passed: the counter resets entirely.
		delete(l.entries, key)
		return Result{Allowed: true, RemainingAttempts: l.maxAttempts}
	}

	if entry.count >= l.maxAttempts {
		entry.lockedUntil = now.Add(l.lockout)
		return Result{Allowed: false, LockoutUntil: entry.lockedUntil}
	}

	return Result{Allowed: true, RemainingAttempts: l.maxAttempts - entry.count}
}

// RecordFailure increments the counter for the key, creating it on first
// failure. Enforcement happens on the next Check.
func (l *Limiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		entry = &attempts{}
		l.entries[key] = entry
	}
	entry.count++
	entry.lastAttempt = now
}

// Clear deletes the counter for the key. Called on successful login.
func (l *Limiter) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}
