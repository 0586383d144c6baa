package privacy

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sahayata/saathi/backend/internal/middleware"
	privacymodel "github.com/sahayata/saathi/backend/internal/model/privacy"
	privacyservice "github.com/sahayata/saathi/backend/internal/service/privacy"
	"github.com/sahayata/saathi/backend/pkg/utils"
)

// Handler serves the caller's own sharing flags.
type Handler struct {
	privacy *privacyservice.Service
}

// New creates the privacy handler.
func New(privacy *privacyservice.Service) *Handler {
	return &Handler{privacy: privacy}
}

// RegisterRoutes registers privacy routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/privacy/settings", h.handleGet)
	r.Put("/privacy/settings", h.handlePut)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())
	if id.Anonymous() {
		utils.RespondError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	flags, err := h.privacy.Flags(r.Context(), id.UserID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load privacy settings")
		return
	}

	utils.RespondJSON(w, http.StatusOK, flags)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())
	if id.Anonymous() {
		utils.RespondError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	var payload struct {
		ShareMood         bool `json:"shareMood"`
		ShareConversation bool `json:"shareConversation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flags := privacymodel.Flags{
		UserID:            id.UserID,
		ShareMood:         payload.ShareMood,
		ShareConversation: payload.ShareConversation,
	}
	if err := h.privacy.SetFlags(r.Context(), flags); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to save privacy settings")
		return
	}

	utils.RespondJSON(w, http.StatusOK, flags)
}
