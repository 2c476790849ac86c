package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Channel is the live, writable end of one client connection.
type Channel interface {
	Send(ctx context.Context, frame OutboundFrame) error
	Close(reason string) error
}

// Registry maps each online user to its single live channel. Every method is
// one critical section, and the online set changes together with the map.
type Registry struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]Channel
	online   map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[uuid.UUID]Channel),
		online:   make(map[uuid.UUID]struct{}),
	}
}

// Register binds ch to userID and returns the channel it replaced, if any.
// The caller owns closing the returned channel.
func (r *Registry) Register(userID uuid.UUID, ch Channel) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.channels[userID]
	r.channels[userID] = ch
	r.online[userID] = struct{}{}
	return prev
}

// Unregister removes the entry for userID and returns the removed channel.
// With a non-nil ch the entry is only removed while it is still bound to ch,
// so a superseded session cannot drop its replacement.
func (r *Registry) Unregister(userID uuid.UUID, ch Channel) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.channels[userID]
	if !ok {
		return nil
	}
	if ch != nil && cur != ch {
		return nil
	}
	delete(r.channels, userID)
	delete(r.online, userID)
	return cur
}

func (r *Registry) Lookup(userID uuid.UUID) Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channels[userID]
}

// OnlineIdentities returns a snapshot of the online set.
func (r *Registry) OnlineIdentities() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.online))
	for id := range r.online {
		ids = append(ids, id)
	}
	return ids
}

// Channels returns a snapshot of every registered channel.
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
