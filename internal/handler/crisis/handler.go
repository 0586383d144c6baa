package crisis

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sahayata/saathi/backend/internal/middleware"
	"github.com/sahayata/saathi/backend/internal/service/pipeline"
	"github.com/sahayata/saathi/backend/pkg/utils"
)

// Handler serves the standalone risk assessment route.
type Handler struct {
	controller *pipeline.Controller
}

// New creates the crisis handler.
func New(controller *pipeline.Controller) *Handler {
	return &Handler{controller: controller}
}

// RegisterRoutes registers crisis routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/crisis/detect", h.handleDetect)
}

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := middleware.IdentityFrom(r.Context())
	assessment, err := h.controller.DetectCrisis(r.Context(), id.UserID, payload.Text, payload.Language)
	if err != nil {
		if errors.Is(err, pipeline.ErrTextRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "risk assessment failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, assessment)
}
