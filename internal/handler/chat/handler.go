package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cipherchat/backend/internal/middleware"
	chatmodel "github.com/zhouzirui/cipherchat/backend/internal/model/chat"
	"github.com/zhouzirui/cipherchat/backend/internal/store"
	"github.com/zhouzirui/cipherchat/backend/pkg/utils"
)

// Handler serves the message history endpoints.
type Handler struct {
	store store.Store
}

// New creates the chat handler.
func New(st store.Store) *Handler {
	return &Handler{store: st}
}

// RegisterRoutes registers the history routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messages", h.handleListMessages)
	r.Post("/saveMessage", h.handleSaveMessage)
}

// handleListMessages returns the caller's decrypted conversation log in
// ascending creation order.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	messages, err := h.store.List(r.Context(), identity.UserID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"count":    len(messages),
	})
}

// handleSaveMessage is the direct append path outside the streaming
// flow. The owner always comes from the session; a body userId is only
// accepted when it agrees with it.
func (h *Handler) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload struct {
		UserID  string `json:"userId"`
		Content string `json:"content"`
		Role    string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.UserID != "" && payload.UserID != identity.UserID {
		utils.RespondError(w, http.StatusForbidden, "cannot write messages for another user")
		return
	}

	if strings.TrimSpace(payload.Content) == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	role := chatmodel.Role(payload.Role)
	id, err := h.store.Append(r.Context(), identity.UserID, payload.Content, role)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRole) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "Failed to save message")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"id": id})
}
