package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const (
	writeWait         = 10 * time.Second
	pingInterval      = 30 * time.Second
	disconnectTimeout = 5 * time.Second
	maxMessageSize    = 16 * 1024
	sendBufSize       = 256
)

// SessionState tracks where a connection is in its lifecycle.
type SessionState int32

const (
	StateAuthenticating SessionState = iota
	StateRegistered
	StateReading
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateRegistered:
		return "registered"
	case StateReading:
		return "reading"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one WebSocket connection. It implements Channel for the Hub and
// runs the read loop that feeds client frames into it.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  uuid.UUID
	limiter *rate.Limiter
	logger  *slog.Logger

	state atomic.Int32

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		limiter: limiter,
		logger:  hub.logger,
		send:    make(chan []byte, sendBufSize),
		done:    make(chan struct{}),
	}
}

func (c *Client) UserID() uuid.UUID { return c.userID }

func (c *Client) State() SessionState { return SessionState(c.state.Load()) }

func (c *Client) setState(s SessionState) { c.state.Store(int32(s)) }

// Send queues frame for the write pump without blocking. A closed client or a
// full buffer is reported to the caller and affects nobody else.
func (c *Client) Send(ctx context.Context, frame OutboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump and closes the connection with reason.
func (c *Client) Close(reason string) error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			// Close waits for the peer's close frame; don't hold the caller.
			go c.conn.Close(websocket.StatusNormalClosure, reason)
		}
	})
	return nil
}

// Serve registers the client with the hub and reads frames until the
// connection ends. Disconnect runs exactly once on every exit path, before
// the session is released from Hub.Drain.
func (c *Client) Serve(ctx context.Context, userID uuid.UUID) {
	if !c.hub.beginSession() {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer c.hub.endSession()

	c.userID = userID
	c.logger = c.hub.logger.With(slog.String("user_id", userID.String()))
	c.conn.SetReadLimit(maxMessageSize)

	defer c.finish(ctx)

	go c.writePump(ctx)

	c.setState(StateRegistered)
	c.hub.Connect(ctx, userID, c)

	c.setState(StateReading)
	c.readLoop(ctx)
}

func (c *Client) finish(ctx context.Context) {
	if rec := recover(); rec != nil {
		c.logger.Error("panic in session loop",
			slog.Any("panic", rec),
			slog.String("stack", string(debug.Stack())),
		)
	}

	c.setState(StateClosing)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()
	c.hub.Disconnect(dctx, c.userID, c)

	_ = c.Close("")
	c.setState(StateClosed)
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if c.isClosed() || websocket.CloseStatus(err) != -1 ||
				errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				c.logger.Debug("ws: client disconnected")
			} else {
				c.logger.Warn("ws: read error", slog.Any("error", err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.sendError("Rate limit exceeded, frame dropped")
			continue
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			c.hub.metrics.FrameReceived("invalid")
			c.sendError(err.Error())
			continue
		}

		c.handleFrame(ctx, frame)
	}
}

// handleFrame dispatches one decoded client frame to the hub.
func (c *Client) handleFrame(ctx context.Context, frame InboundFrame) {
	switch f := frame.(type) {
	case MessageFrame:
		c.hub.metrics.FrameReceived(FrameMessage)
		_, err := c.hub.Route(ctx, f.Content, c.userID, f.ReceiverID)
		switch {
		case err == nil:
		case errors.Is(err, ErrSelfMessage):
			c.sendError("You cannot send a message to yourself")
		default:
			c.logger.Error("routing message failed", slog.String("receiver_id", f.ReceiverID.String()), slog.Any("error", err))
			c.sendError("Failed to send message")
		}

	case SeenFrame:
		c.hub.metrics.FrameReceived(FrameMessageSeen)
		err := c.hub.MarkSeen(ctx, f.MessageID)
		switch {
		case err == nil:
		case errors.Is(err, ErrMessageNotFound):
			c.sendError("Message not found")
		default:
			c.logger.Error("marking message seen failed", slog.String("message_id", f.MessageID.String()), slog.Any("error", err))
			c.sendError("Failed to mark message as seen")
		}

	case TypingFrame:
		c.hub.metrics.FrameReceived(FrameActiveTyping)
		if err := c.hub.RelayTyping(ctx, c.userID, f.ReceiverID, f.TypingStatus); err != nil {
			c.logger.Warn("relaying typing status failed", slog.String("receiver_id", f.ReceiverID.String()), slog.Any("error", err))
		}

	case ImageFrame:
		c.hub.metrics.FrameReceived(FrameImage)
		c.sendNotice(NewAck("image received"))

	case VideoFrame:
		c.hub.metrics.FrameReceived(FrameVideo)
		c.sendNotice(NewAck("video received"))

	case UnknownFrame:
		c.hub.metrics.FrameReceived("unknown")
		c.sendError("Unknown message type: " + f.Type)
	}
}

// writePump drains the send buffer onto the connection and keeps it alive
// with pings.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Warn("ws: write error", slog.Any("error", err))
				_ = c.Close("write failed")
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.logger.Warn("ws: ping error", slog.Any("error", err))
				_ = c.Close("ping failed")
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) sendError(message string) {
	c.sendNotice(NewError(message))
}

func (c *Client) sendNotice(frame NoticePayload) {
	if err := c.Send(context.Background(), frame); err != nil {
		c.hub.metrics.SendFailed(frame.Type)
	}
}
