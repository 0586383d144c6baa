package mood

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sahayata/saathi/backend/internal/middleware"
	"github.com/sahayata/saathi/backend/internal/service/pipeline"
	privacyservice "github.com/sahayata/saathi/backend/internal/service/privacy"
	"github.com/sahayata/saathi/backend/internal/store"
	"github.com/sahayata/saathi/backend/pkg/utils"
)

// Handler serves mood inference and history routes.
type Handler struct {
	controller *pipeline.Controller
	privacy    *privacyservice.Service
	data       store.DataStore
}

// New creates the mood handler.
func New(controller *pipeline.Controller, privacy *privacyservice.Service, data store.DataStore) *Handler {
	return &Handler{controller: controller, privacy: privacy, data: data}
}

// RegisterRoutes registers mood routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/mood/infer", h.handleInfer)
	r.Get("/mood/history", h.handleHistory)
}

func (h *Handler) handleInfer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text       string `json:"text"`
		Language   string `json:"language"`
		AutoUpdate bool   `json:"autoUpdate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := middleware.IdentityFrom(r.Context())
	inference, err := h.controller.InferMood(r.Context(), id.UserID, payload.Text, payload.Language, payload.AutoUpdate)
	if err != nil {
		if errors.Is(err, pipeline.ErrTextRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "mood inference failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, inference)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())

	subjectID := r.URL.Query().Get("user_id")
	if subjectID == "" {
		subjectID = id.UserID
	}
	if subjectID == "" {
		utils.RespondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.privacy.Authorize(r.Context(), id.UserID, subjectID, privacyservice.ResourceMood, "read_history"); err != nil {
		if errors.Is(err, privacyservice.ErrAccessDenied) {
			utils.RespondError(w, http.StatusForbidden, "access denied")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "authorization failed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := h.data.ListMoodEntries(r.Context(), subjectID, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load mood history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
