package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/argestone/marble-site/backend/internal/audit"
	"github.com/argestone/marble-site/backend/internal/config"
	"github.com/argestone/marble-site/backend/internal/metrics"
	"github.com/argestone/marble-site/backend/internal/ratelimit"
	"github.com/argestone/marble-site/backend/internal/sanitizer"
	"github.com/argestone/marble-site/backend/internal/session"
)

// AdminSubject is the single fixed principal this system authenticates.
const AdminSubject = "admin"

// RateLimitedError rejects a login while a lockout is active.
type RateLimitedError struct {
	LockoutUntil time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.LockoutUntil.Format(time.RFC3339))
}

// FormatError rejects a password that fails the format policy.
type FormatError struct {
	Details []string
}

func (e *FormatError) Error() string {
	return "invalid password format"
}

// CredentialsError rejects a well-formed but wrong password.
type CredentialsError struct {
	RemainingAttempts int
}

func (e *CredentialsError) Error() string {
	return "invalid password"
}

// LoginResult carries the tokens for a freshly created session.
type LoginResult struct {
	Token     string
	CSRFToken string
}

// Service orchestrates admin login, logout and session validation. It
// composes the rate limiter, the input sanitizer, the password format policy
// and the session store; all dependencies are injected so tests can use
// isolated instances.
type Service struct {
	limiter   *ratelimit.Limiter
	sessions  *session.Store
	validator *PasswordValidator
	cfg       config.AuthConfig
	audit     *audit.Recorder
	logger    *slog.Logger
}

// NewService creates an auth Service.
func NewService(
	cfg config.AuthConfig,
	limiter *ratelimit.Limiter,
	sessions *session.Store,
	validator *PasswordValidator,
	recorder *audit.Recorder,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if recorder == nil {
		recorder = audit.NewRecorder(log)
	}
	return &Service{
		limiter:   limiter,
		sessions:  sessions,
		validator: validator,
		cfg:       cfg,
		audit:     recorder,
		logger:    log,
	}
}

// Login authenticates the admin password from the given client key (IP).
// Failure paths: RateLimitedError while locked out, FormatError on a
// malformed password, CredentialsError on a mismatch. Both format and
// credential failures increment the same per-key counter.
func (s *Service) Login(ctx context.Context, password, clientKey string) (*LoginResult, error) {
	limit := s.limiter.Check(clientKey)
	if !limit.Allowed {
		s.audit.Event(ctx, "login", clientKey, audit.OutcomeDenied,
			slog.String("reason", "rate_limited"))
		metrics.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
		return nil, &RateLimitedError{LockoutUntil: limit.LockoutUntil}
	}

	sanitized := sanitizer.Sanitize(password)

	if details := s.validator.Validate(sanitized); len(details) > 0 {
		s.limiter.RecordFailure(clientKey)
		s.audit.Event(ctx, "login", clientKey, audit.OutcomeRejected,
			slog.String("reason", "invalid_format"))
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_format").Inc()
		return nil, &FormatError{Details: details}
	}

	if !s.matchesAdminSecret(sanitized) {
		s.limiter.RecordFailure(clientKey)
		s.audit.Event(ctx, "login", clientKey, audit.OutcomeRejected,
			slog.String("reason", "invalid_password"))
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_password").Inc()
		return nil, &CredentialsError{RemainingAttempts: limit.RemainingAttempts - 1}
	}

	s.limiter.Clear(clientKey)

	token, err := s.sessions.Create(AdminSubject)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	csrf, _ := s.sessions.CSRFToken(token)

	s.audit.Event(ctx, "login", clientKey, audit.OutcomeSuccess)
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return &LoginResult{Token: token, CSRFToken: csrf}, nil
}

// Logout destroys the session. Unknown tokens succeed silently.
func (s *Service) Logout(ctx context.Context, token, clientKey string) {
	s.sessions.Destroy(token)
	s.audit.Event(ctx, "logout", clientKey, audit.OutcomeSuccess)
}

// ValidateSession reports whether the token names a live session and, if so,
// its subject. Validation slides the session expiry per the store's policy.
func (s *Service) ValidateSession(token string) (string, bool) {
	return s.sessions.Validate(token)
}

// CSRFToken returns the CSRF token bound to a live session, so a client that
// restored its session from the cookie can resume making mutations.
func (s *Service) CSRFToken(sessionToken string) (string, bool) {
	return s.sessions.CSRFToken(sessionToken)
}

// ValidateCSRF reports whether csrfToken belongs to the session named by
// sessionToken.
func (s *Service) ValidateCSRF(sessionToken, csrfToken string) bool {
	return s.sessions.ValidateCSRF(sessionToken, csrfToken)
}

// SessionDuration exposes the configured session lifetime for cookie maxAge.
func (s *Service) SessionDuration() time.Duration {
	return s.sessions.Duration()
}

// matchesAdminSecret compares the sanitized password against the configured
// admin secret. The bcrypt form wins when both are configured; the plaintext
// comparison is constant-time.
func (s *Service) matchesAdminSecret(password string) bool {
	if s.cfg.AdminPasswordBcrypt != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordBcrypt), []byte(password)) == nil
	}
	if s.cfg.AdminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.cfg.AdminPassword), []byte(password)) == 1
}
