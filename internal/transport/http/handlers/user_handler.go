package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/dmchat/internal/domain"
)

type UserService interface {
	List(ctx context.Context) ([]domain.User, error)
}

// Presence reports who is connected right now.
type Presence interface {
	ListOnline(ctx context.Context) []uuid.UUID
}

type UserHandler struct {
	userService UserService
	presence    Presence
	logger      *slog.Logger
}

func NewUserHandler(userService UserService, presence Presence, logger *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, presence: presence, logger: logger}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		h.logger.Error("listing users failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// Active returns the connected users. Every live client is also sent the
// list as an active_users frame.
func (h *UserHandler) Active(w http.ResponseWriter, r *http.Request) {
	ids := h.presence.ListOnline(r.Context())
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": ids})
}
