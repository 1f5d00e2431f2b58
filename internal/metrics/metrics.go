// Package metrics provides Prometheus metrics for the backend API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marble",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marble",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks current in-flight requests
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marble",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

var (
	// LoginAttemptsTotal counts login attempts by outcome
	// (success, invalid_password, invalid_format, rate_limited)
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marble",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of admin login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SessionsActive tracks sessions currently held in the store
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marble",
			Subsystem: "auth",
			Name:      "sessions_active",
			Help:      "Number of admin sessions currently in the store",
		},
	)
)

var (
	// CatalogMutationsTotal counts catalog writes by operation
	CatalogMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marble",
			Subsystem: "catalog",
			Name:      "mutations_total",
			Help:      "Total number of catalog mutations by operation (create, update, delete)",
		},
		[]string{"operation"},
	)

	// CatalogWriteDuration measures full-document persist duration
	CatalogWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marble",
			Subsystem: "catalog",
			Name:      "write_duration_seconds",
			Help:      "Catalog document persist duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// BackupSnapshotsTotal counts backup snapshots taken
	BackupSnapshotsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marble",
			Subsystem: "backup",
			Name:      "snapshots_total",
			Help:      "Total number of catalog snapshots taken",
		},
	)

	// BackupRestoresTotal counts restores performed
	BackupRestoresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marble",
			Subsystem: "backup",
			Name:      "restores_total",
			Help:      "Total number of catalog restores performed",
		},
	)
)

var (
	// MediaUploadsTotal counts media uploads by outcome
	MediaUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marble",
			Subsystem: "media",
			Name:      "uploads_total",
			Help:      "Total number of media uploads by outcome (success, rejected, error)",
		},
		[]string{"outcome"},
	)

	// MediaDeletesTotal counts media deletions, including no-ops
	MediaDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marble",
			Subsystem: "media",
			Name:      "deletes_total",
			Help:      "Total number of media deletions by outcome (success, skipped, error)",
		},
		[]string{"outcome"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Middleware returns a chi middleware that records HTTP metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		path := getRoutePattern(r)

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// getRoutePattern returns the route pattern from chi context
// Falls back to URL path if pattern not available
func getRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
