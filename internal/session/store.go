// Package session implements an in-memory store of opaque admin session
// tokens with sliding expiration. Tokens are 256-bit random values; expiry is
// checked lazily at validation time and destroyed tokens never validate again.
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"github.com/argestone/marble-site/backend/internal/metrics"
)

// Default session policy values.
const (
	DefaultDuration         = 2 * time.Hour
	DefaultRefreshThreshold = 30 * time.Minute
	tokenBytes              = 32
	csrfTokenBytes          = 32
)

// Session holds the server-side state for one authenticated admin session.
type Session struct {
	Token        string
	Subject      string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
	csrfToken    string
}

// Store maps session tokens to sessions. It is safe for concurrent use
// within a single process; sessions are lost on restart and do not
// synchronize across instances.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	duration time.Duration
	refresh  time.Duration
	now      func() time.Time
}

// NewStore creates a session store. Zero durations fall back to the defaults.
func NewStore(duration, refreshThreshold time.Duration) *Store {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if refreshThreshold <= 0 {
		refreshThreshold = DefaultRefreshThreshold
	}
	return &Store{
		sessions: make(map[string]*Session),
		duration: duration,
		refresh:  refreshThreshold,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Duration returns the configured session duration.
func (s *Store) Duration() time.Duration {
	return s.duration
}

// Create generates a new session for the subject and returns its token.
func (s *Store) Create(subject string) (string, error) {
	token, err := randomToken(tokenBytes)
	if err != nil {
		return "", err
	}
	csrf, err := randomToken(csrfTokenBytes)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sessions[token] = &Session{
		Token:        token,
		Subject:      subject,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.duration),
		LastActivity: now,
		csrfToken:    csrf,
	}
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return token, nil
}

// Validate looks up the token, expiring it lazily if past its deadline.
// A valid session has its LastActivity refreshed and, when validation falls
// within the refresh threshold of expiry, its expiry pushed out by a full
// session duration.
func (s *Store) Validate(token string) (subject string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[token]
	if !exists {
		return "", false
	}

	now := s.now()
	if now.After(sess.ExpiresAt) {
		delete(s.sessions, token)
		metrics.SessionsActive.Set(float64(len(s.sessions)))
		return "", false
	}

	sess.LastActivity = now
	if now.After(sess.ExpiresAt.Add(-s.refresh)) {
		sess.ExpiresAt = now.Add(s.duration)
	}

	return sess.Subject, true
}

// Destroy removes the session. Destroying an absent token is not an error.
func (s *Store) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	metrics.SessionsActive.Set(float64(len(s.sessions)))
}

// CSRFToken returns the CSRF token bound to a session, if the session is
// still live.
func (s *Store) CSRFToken(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[token]
	if !exists {
		return "", false
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return "", false
	}
	return sess.csrfToken, true
}

// ValidateCSRF reports whether the presented CSRF token matches the one
// bound to the session. Comparison is constant-time.
func (s *Store) ValidateCSRF(sessionToken, csrfToken string) bool {
	stored, ok := s.CSRFToken(sessionToken)
	if !ok || csrfToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(csrfToken)) == 1
}

// ExpiresAt exposes a session's current expiry for tests and diagnostics.
func (s *Store) ExpiresAt(token string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, exists := s.sessions[token]
	if !exists {
		return time.Time{}, false
	}
	return sess.ExpiresAt, true
}

// randomToken returns n cryptographically random bytes hex-encoded.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
