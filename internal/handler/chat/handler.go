package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sahayata/saathi/backend/internal/middleware"
	chatservice "github.com/sahayata/saathi/backend/internal/service/chat"
	"github.com/sahayata/saathi/backend/internal/service/pipeline"
	privacyservice "github.com/sahayata/saathi/backend/internal/service/privacy"
	"github.com/sahayata/saathi/backend/internal/store"
	"github.com/sahayata/saathi/backend/pkg/utils"
)

// Handler serves chat and conversation routes.
type Handler struct {
	controller    *pipeline.Controller
	conversations *chatservice.Service
	privacy       *privacyservice.Service
}

// New creates the chat handler.
func New(controller *pipeline.Controller, conversations *chatservice.Service, privacy *privacyservice.Service) *Handler {
	return &Handler{
		controller:    controller,
		conversations: conversations,
		privacy:       privacy,
	}
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/conversations", h.handleListConversations)
	r.Get("/conversations/{conversationID}/messages", h.handleGetMessages)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text       string `json:"text"`
		Language   string `json:"language"`
		Region     string `json:"region"`
		MaxResults int    `json:"maxResults"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := middleware.IdentityFrom(r.Context())
	resp, err := h.controller.HandleMessage(r.Context(), pipeline.ChatRequest{
		UserID:     id.UserID,
		Text:       payload.Text,
		Language:   payload.Language,
		Region:     payload.Region,
		MaxResults: payload.MaxResults,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrTextRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "chat request failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFrom(r.Context())
	if id.Anonymous() {
		utils.RespondError(w, http.StatusUnauthorized, "user identity required")
		return
	}

	conversations, err := h.conversations.ListConversations(r.Context(), id.UserID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	id := middleware.IdentityFrom(r.Context())

	conv, err := h.conversations.GetConversation(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			utils.RespondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	if err := h.privacy.Authorize(r.Context(), id.UserID, conv.Owner(), privacyservice.ResourceConversation, "read_messages"); err != nil {
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

	messages, err := h.conversations.Transcript(r.Context(), conversationID, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}
