package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
)

// SessionCookieName is the cookie carrying the admin session token.
const SessionCookieName = "admin-session"

// CSRFHeader carries the per-session CSRF token on cookie-authenticated
// mutations.
const CSRFHeader = "X-CSRF-Token"

// Handler exposes the auth service over HTTP.
type Handler struct {
	service *Service
	// secureCookies toggles the Secure attribute (production deployments).
	secureCookies bool
}

// NewHandler creates an auth Handler.
func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{service: service, secureCookies: secureCookies}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Invalid request body",
			"details": []string{"body must be JSON with a password field"},
		})
		return
	}

	result, err := h.service.Login(r.Context(), req.Password, ClientIP(r))
	if err != nil {
		var rateLimited *RateLimitedError
		var badFormat *FormatError
		var badCreds *CredentialsError
		switch {
		case errors.As(err, &rateLimited):
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "Too many login attempts. Please try again later.",
				"lockoutTime": rateLimited.LockoutUntil,
			})
		case errors.As(err, &badFormat):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "Invalid password format",
				"details": badFormat.Details,
			})
		case errors.As(err, &badCreds):
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":             "Invalid password",
				"remainingAttempts": badCreds.RemainingAttempts,
			})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error": "Internal server error",
			})
		}
		return
	}

	h.setSessionCookie(w, result.Token, int(h.service.SessionDuration().Seconds()))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Login successful",
		"sessionToken": result.Token,
		"csrfToken":    result.CSRFToken,
	})
}

// Logout handles POST /api/auth/logout. Always succeeds, even for unknown
// or absent tokens.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := TokenFromRequest(r); token != "" {
		h.service.Logout(r.Context(), token, ClientIP(r))
	}

	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Validate handles POST /api/auth/validate.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	token := TokenFromRequest(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": "No session token provided",
		})
		return
	}

	subject, ok := h.service.ValidateSession(token)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": "Invalid or expired session",
		})
		return
	}

	csrf, _ := h.service.CSRFToken(token)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"subject":   subject,
		"csrfToken": csrf,
	})
}

// setSessionCookie writes the session cookie. A negative maxAge clears it;
// net/http renders that as Max-Age=0, which browsers honor as a delete.
func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromRequest extracts the session token from the admin-session cookie
// or an Authorization: Bearer header, in that order.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ClientIP returns the request's client IP without the port. The server
// mounts chi's RealIP middleware ahead of every route, so RemoteAddr already
// reflects proxy headers by the time a handler sees it.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
