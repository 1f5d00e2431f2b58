// Package health provides health check endpoints for the backend service.
package health

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"
)

// ServiceStatus represents the status of a single dependency
type ServiceStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the structured health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceStatus `json:"services"`
	Version   string                   `json:"version,omitempty"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Ready     bool   `json:"ready"`
	Timestamp string `json:"timestamp"`
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Alive     bool   `json:"alive"`
	Timestamp string `json:"timestamp"`
}

// MediaStatus reports whether the media host can be used for uploads.
type MediaStatus interface {
	UploadConfigured() bool
}

// Handler handles health check requests
type Handler struct {
	catalogPath string
	media       MediaStatus
	version     string
	ready       bool
	mu          sync.RWMutex
}

// Config holds health handler configuration
type Config struct {
	// CatalogPath is the live catalog document path.
	CatalogPath string
	// Media reports media-host configuration; may be nil.
	Media   MediaStatus
	Version string
}

// NewHandler creates a new health check handler
func NewHandler(cfg Config) *Handler {
	return &Handler{
		catalogPath: cfg.CatalogPath,
		media:       cfg.Media,
		version:     cfg.Version,
		ready:       true,
	}
}

// SetReady sets the readiness state, flipped off during graceful shutdown.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the current readiness state
func (h *Handler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Health handles the main health check endpoint. The catalog file is the
// only hard dependency; the media host is reported but never degrades the
// overall status since the service runs without it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]ServiceStatus)
	overallStatus := "healthy"

	catalogStatus := h.checkCatalog()
	services["catalog"] = catalogStatus
	if catalogStatus.Status != "up" {
		overallStatus = "degraded"
	}

	services["media_host"] = h.checkMedia()

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
		Version:   h.version,
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

// Readiness handles the readiness probe endpoint
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ready := h.IsReady()

	response := ReadinessResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

// Liveness handles the liveness probe endpoint
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	response := LivenessResponse{
		Alive:     true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkCatalog verifies the catalog document is present and readable. A
// missing file is "up": the store serves an empty catalog until the first
// write creates it.
func (h *Handler) checkCatalog() ServiceStatus {
	start := time.Now()
	_, err := os.Stat(h.catalogPath)
	latency := time.Since(start)

	if err != nil && !os.IsNotExist(err) {
		return ServiceStatus{
			Status:  "down",
			Latency: latency.String(),
			Error:   err.Error(),
		}
	}

	return ServiceStatus{
		Status:  "up",
		Latency: latency.String(),
	}
}

// checkMedia reports media-host configuration. Configuration is static, so
// this never makes a network call.
func (h *Handler) checkMedia() ServiceStatus {
	if h.media == nil || !h.media.UploadConfigured() {
		return ServiceStatus{
			Status: "not_configured",
		}
	}
	return ServiceStatus{Status: "up"}
}
