package auth

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the authentication routes with the Chi router.
// All three endpoints are public: validate reports session state, and logout
// is deliberately tolerant of unknown tokens.
func RegisterRoutes(r chi.Router, handler *Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", handler.Login)
		r.Post("/logout", handler.Logout)
		r.Post("/validate", handler.Validate)
	})
}
