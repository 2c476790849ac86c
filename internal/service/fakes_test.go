package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/dmchat/internal/domain"
	"github.com/vedran77/dmchat/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]*domain.User)}
}

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) List(context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memUsers) SetOnline(_ context.Context, id uuid.UUID, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsOnline = online
	}
	return nil
}

func (m *memUsers) add(name string) *domain.User {
	u := &domain.User{ID: uuid.New(), Name: name, Email: name + "@example.com"}
	_ = m.Create(context.Background(), u)
	return u
}

type memMessages struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*domain.Message
}

func newMemMessages() *memMessages {
	return &memMessages{messages: make(map[uuid.UUID]*domain.Message)}
}

func (m *memMessages) Create(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memMessages) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		cp := *msg
		return &cp, nil
	}
	return nil, nil
}

func (m *memMessages) ListConversation(_ context.Context, userID, peerID uuid.UUID) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.IsDeleted {
			continue
		}
		if (msg.SenderID == userID && msg.ReceiverID == peerID) || (msg.SenderID == peerID && msg.ReceiverID == userID) {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memMessages) Update(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memMessages) MarkSeen(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.SeenAt != nil {
		return false, nil
	}
	msg.SeenAt = &at
	return true, nil
}

func (m *memMessages) SoftDelete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		msg.IsDeleted = true
	}
	return nil
}

type recordingNotifier struct {
	edited  []*domain.Message
	deleted []*domain.Message
}

func (n *recordingNotifier) NotifyEditedMessage(_ context.Context, msg *domain.Message) {
	n.edited = append(n.edited, msg)
}

func (n *recordingNotifier) NotifyDeletedMessage(_ context.Context, msg *domain.Message) {
	n.deleted = append(n.deleted, msg)
}
