package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/dmchat/internal/domain"
	"github.com/vedran77/dmchat/internal/repository"
)

var errStoreDown = errors.New("store down")

type fakeChannel struct {
	mu      sync.Mutex
	frames  []OutboundFrame
	closed  bool
	reason  string
	sendErr error
}

func (c *fakeChannel) Send(_ context.Context, frame OutboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeChannel) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) ofType(frameType string) []OutboundFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []OutboundFrame
	for _, f := range c.frames {
		if f.FrameType() == frameType {
			out = append(out, f)
		}
	}
	return out
}

type fakeUsers struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	err    error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{online: make(map[uuid.UUID]bool)}
}

func (f *fakeUsers) Create(context.Context, *domain.User) error { return nil }

func (f *fakeUsers) GetByID(context.Context, uuid.UUID) (*domain.User, error) { return nil, nil }

func (f *fakeUsers) GetByEmail(context.Context, string) (*domain.User, error) { return nil, nil }

func (f *fakeUsers) List(context.Context) ([]domain.User, error) { return nil, nil }

func (f *fakeUsers) SetOnline(_ context.Context, id uuid.UUID, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.online[id] = online
	return nil
}

func (f *fakeUsers) isOnline(id uuid.UUID) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.online[id]
	return v, ok
}

type fakeMessages struct {
	mu        sync.Mutex
	messages  map[uuid.UUID]*domain.Message
	createErr error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{messages: make(map[uuid.UUID]*domain.Message)}
}

func (f *fakeMessages) Create(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *msg
	f.messages[msg.ID] = &cp
	return nil
}

func (f *fakeMessages) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeMessages) ListConversation(context.Context, uuid.UUID, uuid.UUID) ([]domain.Message, error) {
	return nil, nil
}

func (f *fakeMessages) Update(context.Context, *domain.Message) error { return nil }

func (f *fakeMessages) MarkSeen(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok || msg.SeenAt != nil {
		return false, nil
	}
	msg.SeenAt = &at
	return true, nil
}

func (f *fakeMessages) SoftDelete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.messages[id]; ok {
		msg.IsDeleted = true
	}
	return nil
}

func (f *fakeMessages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeQueue struct {
	mu    sync.Mutex
	items map[string][]string
	err   error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{items: make(map[string][]string)}
}

func (q *fakeQueue) Push(_ context.Context, userID uuid.UUID, kind repository.OfflineKind, payload string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	key := userID.String() + ":" + string(kind)
	q.items[key] = append(q.items[key], payload)
	return nil
}

func (q *fakeQueue) Pending(_ context.Context, userID uuid.UUID, kind repository.OfflineKind) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.items[userID.String()+":"+string(kind)]...), nil
}

type hubFixture struct {
	hub      *Hub
	users    *fakeUsers
	messages *fakeMessages
	queue    *fakeQueue
}

func newHubFixture() *hubFixture {
	f := &hubFixture{
		users:    newFakeUsers(),
		messages: newFakeMessages(),
		queue:    newFakeQueue(),
	}
	f.hub = NewHub(f.users, f.messages, f.queue, nil, discardLogger())
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
