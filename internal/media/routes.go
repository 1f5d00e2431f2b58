package media

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// Middleware is an interface for HTTP middleware
type Middleware func(http.Handler) http.Handler

// uploadRateLimit throttles outbound-forwarding endpoints per client IP so a
// single admin session cannot saturate the media host.
const (
	uploadRateLimit  = 30
	uploadRateWindow = time.Minute
)

// RegisterRoutes registers media routes with the Chi router. All endpoints
// require an authenticated admin session.
func RegisterRoutes(r chi.Router, handler *Handler, adminOnly Middleware) {
	r.Route("/media", func(r chi.Router) {
		r.Use(adminOnly)
		r.Use(httprate.LimitByIP(uploadRateLimit, uploadRateWindow))

		r.Post("/upload", handler.Upload)
		r.Post("/upload-multiple", handler.UploadMultiple)
		r.Post("/delete", handler.Delete)
	})
}
