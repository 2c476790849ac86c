package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/dmchat/internal/domain"
)

// ErrDuplicateEmail is returned by UserRepository.Create when the email is
// already registered.
var ErrDuplicateEmail = errors.New("duplicate email")

// Lookups return (nil, nil) when the row does not exist.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListConversation(ctx context.Context, userID, peerID uuid.UUID) ([]domain.Message, error)
	Update(ctx context.Context, msg *domain.Message) error
	// MarkSeen sets seen_at only if it is still unset and reports whether
	// this call performed the transition.
	MarkSeen(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// OfflineKind names the per-user list an undeliverable payload is pushed to.
type OfflineKind string

const (
	OfflineMessages     OfflineKind = "messages"
	OfflineTypingStatus OfflineKind = "typing_status"
)

// OfflineQueue is a per-user FIFO for payloads that could not be delivered live.
type OfflineQueue interface {
	Push(ctx context.Context, userID uuid.UUID, kind OfflineKind, payload string) error
	Pending(ctx context.Context, userID uuid.UUID, kind OfflineKind) ([]string, error)
}
