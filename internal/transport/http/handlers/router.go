package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vedran77/dmchat/internal/transport/http/middleware"
)

type RouterDeps struct {
	Logger     *slog.Logger
	CORSOrigin string

	Resolver middleware.IdentityResolver
	Auth     AuthService
	Users    UserService
	Presence Presence
	Messages MessageService

	// WebSocket upgrade handler mounted at /ws.
	WS http.Handler
}

// NewRouter wires every endpoint behind recovery, logging and CORS.
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.CORS(deps.CORSOrigin))

	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	userHandler := NewUserHandler(deps.Users, deps.Presence, deps.Logger)
	messageHandler := NewMessageHandler(deps.Messages, deps.Logger)

	// Public
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.WS != nil {
		r.Handle("/ws", deps.WS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/sign-up", authHandler.SignUp)
		r.Post("/auth/sign-in", authHandler.SignIn)

		// Protected
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Resolver))

			r.Get("/users", userHandler.List)
			r.Get("/users/active", userHandler.Active)

			r.Route("/messages", func(r chi.Router) {
				r.Get("/chats/{receiver_id}", messageHandler.History)
				r.Patch("/{id}", messageHandler.Edit)
				r.Delete("/{id}", messageHandler.Delete)
			})
		})
	})

	return r
}
