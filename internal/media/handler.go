package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/argestone/marble-site/backend/internal/logger"
	"github.com/argestone/marble-site/backend/internal/metrics"
	"github.com/argestone/marble-site/backend/internal/sanitizer"
)

const (
	// MaxFileBytes caps a single uploaded image.
	MaxFileBytes = 10 << 20
	// maxBatchFiles caps a multi-file upload request.
	maxBatchFiles = 10
	// maxFormMemory bounds multipart parsing before spill-to-disk.
	maxFormMemory = 32 << 20

	// Request body caps, the file payload plus form encoding overhead. The
	// body is bounded before parsing so an oversized request is cut off at
	// the wire instead of being spilled to disk first.
	maxUploadBody = MaxFileBytes + 1<<20
	maxBatchBody  = maxBatchFiles*MaxFileBytes + 1<<20
)

// Handler exposes the media gateway over HTTP.
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler creates a media Handler. A nil logger falls back to slog.Default.
func NewHandler(client *Client, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{client: client, logger: log}
}

// Upload handles POST /api/media/upload: a single multipart "file" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r, maxUploadBody) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "No file provided",
		})
		return
	}
	defer file.Close()

	if msg := validateImage(file, header); msg != "" {
		metrics.MediaUploadsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
		return
	}

	asset, err := h.client.Upload(r.Context(), header.Filename, file)
	if err != nil {
		metrics.MediaUploadsTotal.WithLabelValues("error").Inc()
		h.writeUploadError(r, w, err)
		return
	}

	metrics.MediaUploadsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"secure_url": asset.SecureURL,
		"public_id":  asset.PublicID,
	})
}

// UploadMultiple handles POST /api/media/upload-multiple: a multipart
// "files" field repeated per image. All files must validate before any is
// forwarded, and any single upload failure fails the batch.
func (h *Handler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r, maxBatchBody) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "No files provided",
		})
		return
	}
	if len(headers) > maxBatchFiles {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": fmt.Sprintf("Too many files. Upload at most %d images per request.", maxBatchFiles),
		})
		return
	}

	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": fmt.Sprintf("Unreadable file %q", header.Filename),
			})
			return
		}
		msg := validateImage(file, header)
		file.Close()
		if msg != "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": fmt.Sprintf("%s (%s)", msg, header.Filename),
			})
			return
		}
	}

	assets := make([]map[string]any, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": fmt.Sprintf("Unreadable file %q", header.Filename),
			})
			return
		}
		asset, err := h.client.Upload(r.Context(), header.Filename, file)
		file.Close()
		if err != nil {
			metrics.MediaUploadsTotal.WithLabelValues("error").Inc()
			h.writeUploadError(r, w, err)
			return
		}
		metrics.MediaUploadsTotal.WithLabelValues("success").Inc()
		assets = append(assets, map[string]any{
			"secure_url": asset.SecureURL,
			"public_id":  asset.PublicID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"images": assets})
}

type deleteRequest struct {
	PublicID string `json:"publicId"`
}

// Delete handles POST /api/media/delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Invalid request body",
		})
		return
	}

	publicID := sanitizer.Sanitize(req.PublicID)
	if publicID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Public ID is required",
		})
		return
	}

	if err := h.client.Delete(r.Context(), publicID); err != nil {
		metrics.MediaDeletesTotal.WithLabelValues("error").Inc()
		var hostErr *HostError
		if errors.As(err, &hostErr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": hostErr.Message,
			})
			return
		}
		log := logger.WithCorrelationID(r.Context(), h.logger)
		log.Error("media deletion failed", "public_id", publicID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Internal server error during deletion",
		})
		return
	}

	if h.client.deleteConfigured() {
		metrics.MediaDeletesTotal.WithLabelValues("success").Inc()
	} else {
		metrics.MediaDeletesTotal.WithLabelValues("skipped").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Image deleted successfully",
	})
}

// parseForm bounds the request body, then parses the multipart form. It
// writes the error response itself and reports whether parsing succeeded.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request, limit int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.MediaUploadsTotal.WithLabelValues("rejected").Inc()
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
				"error": "File size too large. Please upload a smaller image.",
			})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Invalid multipart form",
		})
		return false
	}
	return true
}

func (h *Handler) writeUploadError(r *http.Request, w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotConfigured) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Media host not configured. Please set up environment variables.",
		})
		return
	}
	var hostErr *HostError
	if errors.As(err, &hostErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   hostErr.Message,
			"details": hostErr.Detail,
		})
		return
	}
	log := logger.WithCorrelationID(r.Context(), h.logger)
	log.Error("media upload failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error": "Internal server error during upload",
	})
}

// validateImage enforces the local pre-upload policy: bounded size and an
// image content type detected from the file's leading bytes, not its name.
// Returns an empty string when the file is acceptable.
func validateImage(file multipart.File, header *multipart.FileHeader) string {
	if header.Size > MaxFileBytes {
		return "File size too large. Please upload a smaller image."
	}

	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && n == 0 {
		return "Unreadable image file"
	}
	if _, err := file.Seek(0, 0); err != nil {
		return "Unreadable image file"
	}

	switch http.DetectContentType(head[:n]) {
	case "image/jpeg", "image/png", "image/webp":
		return ""
	default:
		return "Invalid file type. Please upload a JPG, PNG or WebP image."
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
