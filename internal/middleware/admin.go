// Package middleware provides HTTP middleware for the backend API.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/argestone/marble-site/backend/internal/audit"
	"github.com/argestone/marble-site/backend/internal/auth"
	appctx "github.com/argestone/marble-site/backend/internal/context"
)

// SessionValidator checks a session token and returns the authenticated
// subject. Satisfied by auth.Service.
type SessionValidator interface {
	ValidateSession(token string) (string, bool)
	ValidateCSRF(sessionToken, csrfToken string) bool
}

// AdminMiddleware gates routes behind a live admin session. The token comes
// from the session cookie or an Authorization: Bearer header.
type AdminMiddleware struct {
	sessions SessionValidator
	audit    *audit.Recorder
}

// NewAdminMiddleware creates an AdminMiddleware instance.
func NewAdminMiddleware(sessions SessionValidator, recorder *audit.Recorder) *AdminMiddleware {
	return &AdminMiddleware{sessions: sessions, audit: recorder}
}

// RequireSession rejects requests without a valid session and injects the
// authenticated subject into the request context for downstream handlers.
func (m *AdminMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			m.deny(w, r, http.StatusUnauthorized, "No session token provided")
			return
		}

		subject, ok := m.sessions.ValidateSession(token)
		if !ok {
			m.deny(w, r, http.StatusUnauthorized, "Invalid or expired session")
			return
		}

		// Cookie-authenticated mutations must carry the session's CSRF
		// token. Bearer requests are exempt: an attacker's page cannot
		// attach an Authorization header cross-site.
		if mutatesState(r.Method) && tokenFromCookie(r) == token {
			if !m.sessions.ValidateCSRF(token, r.Header.Get(auth.CSRFHeader)) {
				m.deny(w, r, http.StatusForbidden, "Invalid or missing CSRF token")
				return
			}
		}

		ctx := appctx.WithSubject(r.Context(), subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AdminMiddleware) deny(w http.ResponseWriter, r *http.Request, status int, message string) {
	if m.audit != nil {
		m.audit.Event(r.Context(), "admin_access", auth.ClientIP(r), audit.OutcomeDenied)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": message})
}

// mutatesState reports whether the method can change server state.
func mutatesState(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// tokenFromCookie returns the session cookie's value, or empty when absent.
func tokenFromCookie(r *http.Request) string {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
