package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cipherchat/backend/internal/middleware"
	"github.com/zhouzirui/cipherchat/backend/internal/model/chat"
	"github.com/zhouzirui/cipherchat/backend/internal/service/relay"
	"github.com/zhouzirui/cipherchat/backend/internal/store"
	"github.com/zhouzirui/cipherchat/backend/pkg/utils"
)

// Generator is the completion gateway seen by this handler.
type Generator interface {
	Stream(ctx context.Context, history []chat.Turn) (<-chan []byte, error)
}

// Handler serves the streaming chat endpoint.
type Handler struct {
	gateway Generator
	store   store.Store
}

// New creates the stream handler.
func New(gateway Generator, st store.Store) *Handler {
	return &Handler{gateway: gateway, store: st}
}

// RegisterRoutes registers the chat streaming route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

// handleChat accepts the conversation so far, durably appends the
// caller's newest turn, then relays the completion stream back as
// server-sent events while accumulating it for persistence.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload struct {
		Messages []chat.Turn `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid messages format")
		return
	}
	if len(payload.Messages) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "Invalid messages format")
		return
	}

	last := payload.Messages[len(payload.Messages)-1]
	if strings.TrimSpace(last.Content) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Invalid messages format")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// The user's turn goes in before any token is requested, so it is
	// never lost even if generation fails right after.
	if _, err := h.store.Append(r.Context(), identity.UserID, last.Content, chat.RoleUser); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Failed to process chat request")
		return
	}

	// Generation is detached from the request context: if the caller
	// disconnects mid-stream we still finish accumulating and persist
	// what was produced.
	frames, err := h.gateway.Stream(context.WithoutCancel(r.Context()), payload.Messages)
	if err != nil {
		// Provider detail stays in the logs, not in the response.
		log.Printf("[stream] completion initiation failed for user=%s: %v", identity.UserID, err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to generate response")
		return
	}

	utils.SetupSSEHeaders(w)

	sink := &sseSink{ctx: r.Context(), w: w, flusher: flusher}
	rly := relay.New(h.store)
	rly.Run(r.Context(), identity.UserID, frames, sink)
}

// sseSink forwards frames to the HTTP response. Send fails once the
// caller has gone away, which tells the relay to stop forwarding.
type sseSink struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(frame []byte) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return utils.SendSSERaw(s.w, s.flusher, frame)
}
