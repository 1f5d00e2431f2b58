package backup

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes snapshot and restore over HTTP. Both operations require
// an authenticated admin session (enforced by the route group).
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates a backup Handler.
func NewHandler(manager *Manager, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{manager: manager, logger: log}
}

type restoreRequest struct {
	BackupFile string `json:"backupFile"`
}

// Snapshot handles GET /api/marbles/backup.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	name, total, err := h.manager.Snapshot()
	if err != nil {
		if errors.Is(err, ErrCatalogMissing) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": "Marbles file not found",
			})
			return
		}
		h.logger.Error("snapshot failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Failed to create backup",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Backup created successfully",
		"backupFile":   name,
		"totalBackups": total,
	})
}

// Restore handles POST /api/marbles/backup.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BackupFile == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Backup file name is required",
		})
		return
	}

	preRestore, err := h.manager.Restore(req.BackupFile)
	if err != nil {
		switch {
		case errors.Is(err, ErrSnapshotNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": "Backup file not found",
			})
		case errors.Is(err, ErrBadSnapshotName):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "Invalid backup file name",
			})
		default:
			h.logger.Error("restore failed", "backup_file", req.BackupFile, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error": "Failed to restore backup",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Data restored successfully",
		"restoredFrom":  req.BackupFile,
		"currentBackup": preRestore,
	})
}

// Routes returns a mount function registering the backup endpoints under the
// caller's router, gated by the given middleware.
func Routes(handler *Handler, adminOnly func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/backup", handler.Snapshot)
			r.Post("/backup", handler.Restore)
		})
	}
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
