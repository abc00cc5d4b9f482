package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/common/repository"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/digest"
)

// DigestHandler handles digest acknowledgement endpoints
type DigestHandler struct {
	digests digest.Repository
}

// NewDigestHandler creates a digest handler
func NewDigestHandler(digests digest.Repository) *DigestHandler {
	return &DigestHandler{digests: digests}
}

// Routes returns the router for digest endpoints
func (h *DigestHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// GET is what the link in the digest email produces
	r.Get("/{id}/ack", h.Acknowledge)
	r.Post("/{id}/ack", h.Acknowledge)

	return r
}

// Acknowledge handles /digests/{id}/ack?token=...
func (h *DigestHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteBadRequest(w, "Missing acknowledgement token")
		return
	}

	d, err := h.digests.Acknowledge(r.Context(), id, token)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			WriteNotFound(w, "Digest not found")
		case errors.Is(err, digest.ErrTokenMismatch):
			WriteForbidden(w, "Invalid acknowledgement token")
		default:
			slog.Error("Failed to acknowledge digest", "digestId", id, "error", err)
			WriteInternalError(w, "Failed to acknowledge digest")
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":             d.ID,
		"acknowledged":   true,
		"acknowledgedAt": d.AcknowledgedAt,
	})
}
