package notifications

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sahayata/saathi/backend/internal/middleware"
	escalationservice "github.com/sahayata/saathi/backend/internal/service/escalation"
	"github.com/sahayata/saathi/backend/internal/store"
	"github.com/sahayata/saathi/backend/pkg/utils"
)

// Handler serves escalation notifications to institution staff. Access
// requires the staff role and an institution assertion matching the records
// being read.
type Handler struct {
	data      store.DataStore
	directory escalationservice.Directory
}

// New creates the notifications handler.
func New(data store.DataStore, directory escalationservice.Directory) *Handler {
	return &Handler{data: data, directory: directory}
}

// RegisterRoutes registers notification routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications/institution", h.handleListByInstitution)
	r.Post("/notifications/{notificationID}/read", h.handleMarkRead)
}

func (h *Handler) handleListByInstitution(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())
	if id.Role != middleware.RoleStaff || id.InstitutionID == "" {
		utils.RespondError(w, http.StatusForbidden, "institution staff role required")
		return
	}

	institutionID := r.URL.Query().Get("institution_id")
	if institutionID == "" {
		institutionID = id.InstitutionID
	}
	if institutionID != id.InstitutionID {
		utils.RespondError(w, http.StatusForbidden, "cannot read another institution's notifications")
		return
	}
	if !h.directory.Exists(institutionID) {
		utils.RespondError(w, http.StatusNotFound, "institution not found")
		return
	}

	records, err := h.data.ListEscalationsByInstitution(r.Context(), institutionID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"notifications": records})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())
	if id.Role != middleware.RoleStaff || id.InstitutionID == "" {
		utils.RespondError(w, http.StatusForbidden, "institution staff role required")
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	record, err := h.data.GetEscalation(r.Context(), notificationID)
	if err != nil {
		if errors.Is(err, store.ErrEscalationNotFound) {
			utils.RespondError(w, http.StatusNotFound, "notification not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load notification")
		return
	}
	if record.InstitutionID != id.InstitutionID {
		utils.RespondError(w, http.StatusForbidden, "cannot acknowledge another institution's notification")
		return
	}

	updated, err := h.data.AcknowledgeEscalation(r.Context(), notificationID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to acknowledge notification")
		return
	}

	utils.RespondJSON(w, http.StatusOK, updated)
}
