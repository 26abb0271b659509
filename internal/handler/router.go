package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/zhouzirui/cipherchat/backend/internal/handler/chat"
	streamHandler "github.com/zhouzirui/cipherchat/backend/internal/handler/stream"
	"github.com/zhouzirui/cipherchat/backend/internal/middleware"
	authService "github.com/zhouzirui/cipherchat/backend/internal/service/auth"
	"github.com/zhouzirui/cipherchat/backend/internal/store"
	"github.com/zhouzirui/cipherchat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(gate *authService.Service, st store.Store, gateway streamHandler.Generator) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequireSession(gate))

		chatHandler.New(st).RegisterRoutes(api)

		if gateway != nil {
			streamHandler.New(gateway, st).RegisterRoutes(api)
		} else {
			api.Post("/chat", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "completion provider unavailable")
			})
		}
	})

	return r
}
