package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is an interface for HTTP middleware
type Middleware func(http.Handler) http.Handler

// RegisterRoutes registers catalog routes with the Chi router. Listing is
// public; mutations require an authenticated admin session. subRoutes lets
// the caller mount companion endpoints (backup) under the same /marbles
// prefix.
func RegisterRoutes(r chi.Router, handler *Handler, adminOnly Middleware, subRoutes ...func(chi.Router)) {
	r.Route("/marbles", func(r chi.Router) {
		r.Get("/", handler.List)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/", handler.Create)
			r.Put("/", handler.Update)
			r.Delete("/", handler.Delete)
		})

		for _, mount := range subRoutes {
			mount(r)
		}
	})
}
