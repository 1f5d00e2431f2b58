package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// mediaCleanupTimeout bounds the best-effort media deletion that follows a
// catalog delete.
const mediaCleanupTimeout = 30 * time.Second

// MediaCleaner deletes an image at the media host by its public ID.
type MediaCleaner interface {
	Delete(ctx context.Context, publicID string) error
}

// Handler exposes catalog CRUD over HTTP. Mutations are gated by the admin
// middleware before they reach these methods.
type Handler struct {
	store  *Store
	media  MediaCleaner
	logger *slog.Logger
}

// NewHandler creates a catalog Handler. media may be nil, in which case
// delete skips the cleanup step.
func NewHandler(store *Store, media MediaCleaner, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, media: media, logger: log}
}

// validate rejects malformed bodies at the boundary, before business logic.
var validate = validator.New()

// marbleRequest is the inbound shape for create and update. Field presence
// is checked here; emptiness-after-sanitization is re-checked by the store.
type marbleRequest struct {
	ID           string   `json:"id" validate:"omitempty,max=100"`
	Name         string   `json:"name" validate:"max=1000"`
	Color        string   `json:"color" validate:"max=1000"`
	PriceContact string   `json:"priceContact" validate:"max=1000"`
	Origin       string   `json:"origin" validate:"max=1000"`
	Description  string   `json:"description" validate:"max=5000"`
	Image        string   `json:"image" validate:"omitempty,max=2000"`
	Images       []string `json:"images" validate:"omitempty,dive,max=2000"`
	Size         string   `json:"size" validate:"max=1000"`
	Rarity       string   `json:"rarity" validate:"omitempty,oneof=common uncommon rare epic legendary"`
	Category     string   `json:"category" validate:"max=1000"`
	Patterns     []string `json:"patterns" validate:"omitempty,dive,max=1000"`
	Material     string   `json:"material" validate:"max=1000"`
	Finish       string   `json:"finish" validate:"max=1000"`
	Status       string   `json:"sellingStatus" validate:"omitempty,oneof='Selling Fast' 'Best Seller' 'Out of Stock' 'New Arrival'"`
	IsFeatured   bool     `json:"isFeatured"`
	PublicID     string   `json:"publicId" validate:"omitempty,max=500"`
	PublicIDs    []string `json:"publicIds" validate:"omitempty,dive,max=500"`
}

func (r *marbleRequest) toMarble() Marble {
	return Marble{
		ID:           r.ID,
		Name:         r.Name,
		Color:        r.Color,
		PriceContact: r.PriceContact,
		Origin:       r.Origin,
		Description:  r.Description,
		Image:        r.Image,
		Images:       r.Images,
		Size:         r.Size,
		Rarity:       Rarity(r.Rarity),
		Category:     r.Category,
		Patterns:     r.Patterns,
		Material:     r.Material,
		Finish:       r.Finish,
		Status:       SellingStatus(r.Status),
		IsFeatured:   r.IsFeatured,
		PublicID:     r.PublicID,
		PublicIDs:    r.PublicIDs,
	}
}

type deleteRequest struct {
	ID string `json:"id" validate:"required,max=100"`
}

// List handles GET /api/marbles. Open to any caller: the public storefront
// needs it.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"marbles": h.store.List(),
	})
}

// Create handles POST /api/marbles.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMarble(w, r)
	if !ok {
		return
	}

	marble, err := h.store.Create(req.toMarble())
	if err != nil {
		if errors.Is(err, ErrValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "Missing required fields: name, color, origin",
			})
			return
		}
		if errors.Is(err, ErrDuplicateID) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": "A marble with this ID already exists",
			})
			return
		}
		h.logger.Error("marble create failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Failed to create marble",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"marble":  marble,
		"message": "Marble created successfully",
	})
}

// Update handles PUT /api/marbles.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMarble(w, r)
	if !ok {
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Marble ID is required",
		})
		return
	}

	marble, err := h.store.Update(req.toMarble())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": "Marble not found",
			})
			return
		}
		h.logger.Error("marble update failed", "marble_id", req.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Failed to update marble",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"marble":  marble,
		"message": "Marble updated successfully",
	})
}

// Delete handles DELETE /api/marbles. On success the removed entry's media
// objects are deleted at the host out of band: the catalog mutation has
// already committed and a cleanup failure never surfaces to the caller.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Invalid request body",
		})
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Marble ID is required",
		})
		return
	}

	removed, err := h.store.Delete(req.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": "Marble not found",
			})
			return
		}
		h.logger.Error("marble delete failed", "marble_id", req.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Failed to delete marble",
		})
		return
	}

	h.cleanupMedia(removed)

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Marble deleted successfully",
		"deletedMarble": removed,
	})
}

// cleanupMedia deletes the entry's media objects in the background.
func (h *Handler) cleanupMedia(removed Marble) {
	ids := removed.MediaPublicIDs()
	if h.media == nil || len(ids) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mediaCleanupTimeout)
		defer cancel()
		for _, id := range ids {
			if err := h.media.Delete(ctx, id); err != nil {
				h.logger.Warn("media cleanup failed after marble delete",
					"marble_id", removed.ID, "public_id", id, "error", err)
			}
		}
	}()
}

// decodeMarble parses and validates a marble body, writing the error
// response itself on failure.
func (h *Handler) decodeMarble(w http.ResponseWriter, r *http.Request) (*marbleRequest, bool) {
	var req marbleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Invalid request body",
		})
		return nil, false
	}
	if err := validate.Struct(&req); err != nil {
		var details []string
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				details = append(details, fe.Field()+" failed "+fe.Tag()+" validation")
			}
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Request validation failed",
			"details": details,
		})
		return nil, false
	}
	return &req, true
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
