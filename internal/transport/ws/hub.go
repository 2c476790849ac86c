package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/dmchat/internal/domain"
	"github.com/vedran77/dmchat/internal/metrics"
	"github.com/vedran77/dmchat/internal/repository"
)

var (
	ErrSelfMessage     = errors.New("cannot send a message to yourself")
	ErrMessageNotFound = errors.New("message not found")
	ErrPersistence     = errors.New("persistence failed")
	ErrClientClosed    = errors.New("channel is closed")
	ErrSendBufferFull  = errors.New("channel send buffer is full")
)

const (
	pathLive    = "live"
	pathOffline = "offline"
)

// Hub is the delivery manager: it owns the connection registry and routes
// messages, seen receipts, typing and presence between live channels, falling
// back to the offline queue. Store and channel calls never run under the
// registry lock.
type Hub struct {
	registry *Registry
	users    repository.UserRepository
	messages repository.MessageRepository
	queue    repository.OfflineQueue
	metrics  metrics.Recorder
	logger   *slog.Logger

	now          func() time.Time
	writeTimeout time.Duration

	// detached presence broadcasts
	background sync.WaitGroup

	// live Client sessions; draining refuses new ones
	sessionMu sync.Mutex
	draining  bool
	sessions  sync.WaitGroup
}

func NewHub(
	users repository.UserRepository,
	messages repository.MessageRepository,
	queue repository.OfflineQueue,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Hub {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry:     NewRegistry(),
		users:        users,
		messages:     messages,
		queue:        queue,
		metrics:      recorder,
		logger:       logger,
		now:          time.Now,
		writeTimeout: writeWait,
	}
}

// Connect registers ch as the live channel for userID, closing any channel it
// replaces, marks the user online and tells every connected client.
func (h *Hub) Connect(ctx context.Context, userID uuid.UUID, ch Channel) {
	prev := h.registry.Register(userID, ch)
	switch {
	case prev == nil:
		h.metrics.ConnectionOpened()
	case prev != ch:
		h.metrics.Evicted()
		h.logger.Info("replacing existing channel", slog.String("user_id", userID.String()))
		if err := prev.Close("replaced by a newer connection"); err != nil {
			h.logger.Warn("closing replaced channel", slog.String("user_id", userID.String()), slog.Any("error", err))
		}
	}

	h.setOnline(ctx, userID, true)

	h.logger.Info("user connected",
		slog.String("user_id", userID.String()),
		slog.Int("connections", h.registry.Len()),
	)

	h.BroadcastPresence(ctx, userID, true)
}

// Disconnect releases userID's registry entry if it is still bound to ch
// (nil matches any channel). When an entry was removed the user is marked
// offline and the offline presence is broadcast in the background.
func (h *Hub) Disconnect(ctx context.Context, userID uuid.UUID, ch Channel) bool {
	if h.registry.Unregister(userID, ch) == nil {
		return false
	}
	h.metrics.ConnectionClosed()

	h.setOnline(ctx, userID, false)

	h.logger.Info("user disconnected",
		slog.String("user_id", userID.String()),
		slog.Int("connections", h.registry.Len()),
	)

	bctx := context.WithoutCancel(ctx)
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		h.BroadcastPresence(bctx, userID, false)
	}()
	return true
}

// Route persists a message and delivers it live, or queues it when the
// receiver has no channel. Only live delivery acknowledges the sender.
func (h *Hub) Route(ctx context.Context, content string, senderID, receiverID uuid.UUID) (uuid.UUID, error) {
	if senderID == receiverID {
		return uuid.Nil, ErrSelfMessage
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  h.now(),
	}

	start := time.Now()
	err := h.messages.Create(ctx, msg)
	h.metrics.ObserveStore("create_message", time.Since(start))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: creating message: %w", ErrPersistence, err)
	}

	if receiver := h.registry.Lookup(receiverID); receiver != nil {
		if err := h.send(ctx, receiver, NewPersonalMessage(content, senderID, msg.ID)); err == nil {
			if sender := h.registry.Lookup(senderID); sender != nil {
				_ = h.send(ctx, sender, NewMessageAck(msg.ID))
			}
			h.metrics.MessageRouted(pathLive)
			return msg.ID, nil
		}
		// The receiver went away (or stalled) between lookup and write.
	}

	h.enqueue(ctx, receiverID, repository.OfflineMessages, content)
	h.metrics.MessageRouted(pathOffline)
	return msg.ID, nil
}

// MarkSeen stamps the message as seen the first time it is called and tells
// the sender. Later calls are no-ops.
func (h *Hub) MarkSeen(ctx context.Context, messageID uuid.UUID) error {
	start := time.Now()
	msg, err := h.messages.GetByID(ctx, messageID)
	h.metrics.ObserveStore("get_message", time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: loading message: %w", ErrPersistence, err)
	}
	if msg == nil || msg.IsDeleted {
		return ErrMessageNotFound
	}
	if msg.Seen() {
		return nil
	}

	seenAt := h.now().UTC()
	start = time.Now()
	updated, err := h.messages.MarkSeen(ctx, messageID, seenAt)
	h.metrics.ObserveStore("mark_seen", time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: marking message seen: %w", ErrPersistence, err)
	}
	if !updated {
		return nil
	}

	if sender := h.registry.Lookup(msg.SenderID); sender != nil {
		_ = h.send(ctx, sender, NewMessageSeen(messageID, seenAt))
	}
	return nil
}

// RelayTyping forwards a typing indicator, or queues it for an offline receiver.
func (h *Hub) RelayTyping(ctx context.Context, senderID, receiverID uuid.UUID, typing bool) error {
	if receiver := h.registry.Lookup(receiverID); receiver != nil {
		return h.send(ctx, receiver, NewTypingStatus(senderID, typing))
	}
	if err := h.queue.Push(ctx, receiverID, repository.OfflineTypingStatus, strconv.FormatBool(typing)); err != nil {
		return fmt.Errorf("queueing typing status: %w", err)
	}
	h.metrics.OfflineEnqueued(string(repository.OfflineTypingStatus))
	return nil
}

// BroadcastPresence sends a status_update to every registered channel. A
// failing channel does not stop delivery to the rest.
func (h *Hub) BroadcastPresence(ctx context.Context, userID uuid.UUID, online bool) {
	h.broadcast(ctx, NewStatusUpdate(userID, online))
}

// ListOnline returns the online users and rebroadcasts the list to everyone.
func (h *Hub) ListOnline(ctx context.Context) []uuid.UUID {
	ids := h.registry.OnlineIdentities()
	h.broadcast(ctx, NewActiveUsers(ids))
	return ids
}

// SendToUser writes frame to userID's channel if the user is online.
func (h *Hub) SendToUser(ctx context.Context, userID uuid.UUID, frame OutboundFrame) bool {
	ch := h.registry.Lookup(userID)
	if ch == nil {
		return false
	}
	return h.send(ctx, ch, frame) == nil
}

// IsOnline reports whether userID currently has a live channel.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	return h.registry.Lookup(userID) != nil
}

// CloseAll closes every registered channel. Their sessions unregister
// themselves as they wind down.
func (h *Hub) CloseAll(reason string) {
	for _, ch := range h.registry.Channels() {
		_ = ch.Close(reason)
	}
}

// Wait blocks until background presence broadcasts have finished.
func (h *Hub) Wait() {
	h.background.Wait()
}

// Drain stops accepting sessions, closes every channel with reason and waits
// until all sessions have run their disconnect finalizer and the resulting
// presence broadcasts are done. Stores must stay open until it returns.
func (h *Hub) Drain(ctx context.Context, reason string) error {
	h.sessionMu.Lock()
	h.draining = true
	h.sessionMu.Unlock()

	h.CloseAll(reason)

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		h.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining sessions: %w", ctx.Err())
	}
}

// beginSession reserves a slot for a new session. It reports false once the
// hub is draining.
func (h *Hub) beginSession() bool {
	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()
	if h.draining {
		return false
	}
	h.sessions.Add(1)
	return true
}

func (h *Hub) endSession() {
	h.sessions.Done()
}

func (h *Hub) broadcast(ctx context.Context, frame OutboundFrame) {
	for _, ch := range h.registry.Channels() {
		_ = h.send(ctx, ch, frame)
	}
}

func (h *Hub) send(ctx context.Context, ch Channel, frame OutboundFrame) error {
	wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()

	err := ch.Send(wctx, frame)
	if err != nil {
		h.metrics.SendFailed(frame.FrameType())
		h.logger.Warn("frame delivery failed",
			slog.String("frame", frame.FrameType()),
			slog.Any("error", err),
		)
	}
	return err
}

func (h *Hub) enqueue(ctx context.Context, userID uuid.UUID, kind repository.OfflineKind, payload string) {
	if err := h.queue.Push(ctx, userID, kind, payload); err != nil {
		h.logger.Error("offline queue push failed",
			slog.String("user_id", userID.String()),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
		return
	}
	h.metrics.OfflineEnqueued(string(kind))
}

func (h *Hub) setOnline(ctx context.Context, userID uuid.UUID, online bool) {
	start := time.Now()
	err := h.users.SetOnline(ctx, userID, online)
	h.metrics.ObserveStore("set_online", time.Since(start))
	if err != nil {
		h.logger.Error("persisting online status failed",
			slog.String("user_id", userID.String()),
			slog.Bool("is_online", online),
			slog.Any("error", err),
		)
	}
}
