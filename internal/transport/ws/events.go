package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Frame types - Client → Server
const (
	FrameMessage      = "message"
	FrameMessageSeen  = "message_seen"
	FrameActiveTyping = "active_typing"
	FrameImage        = "image"
	FrameVideo        = "video"
)

// Frame types - Server → Client
const (
	FramePersonalMessage = "personal_message"
	FrameMessageAck      = "message_ack"
	FrameStatusUpdate    = "status_update"
	FrameTypingStatus    = "typing_status"
	FrameActiveUsers     = "active_users"
	FrameMessageEdited   = "message_edited"
	FrameMessageDeleted  = "message_deleted"
	FrameAck             = "ack"
	FrameError           = "error"
)

// ProtocolError describes a frame that could not be accepted. The message is
// sent back to the client verbatim.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return e.Message }

func protocolError(msg string) *ProtocolError {
	return &ProtocolError{Message: msg}
}

// --- Client → Server ---

// InboundFrame is one decoded client frame. The concrete type is one of
// MessageFrame, SeenFrame, TypingFrame, ImageFrame, VideoFrame or UnknownFrame.
type InboundFrame interface {
	FrameType() string
}

type MessageFrame struct {
	Content    string
	ReceiverID uuid.UUID
}

type SeenFrame struct {
	MessageID uuid.UUID
}

type TypingFrame struct {
	ReceiverID   uuid.UUID
	TypingStatus bool
}

type ImageFrame struct{}

type VideoFrame struct{}

// UnknownFrame carries a type the server does not handle.
type UnknownFrame struct {
	Type string
}

func (MessageFrame) FrameType() string   { return FrameMessage }
func (SeenFrame) FrameType() string      { return FrameMessageSeen }
func (TypingFrame) FrameType() string    { return FrameActiveTyping }
func (ImageFrame) FrameType() string     { return FrameImage }
func (VideoFrame) FrameType() string     { return FrameVideo }
func (f UnknownFrame) FrameType() string { return f.Type }

type rawFrame struct {
	Type         *string `json:"type"`
	Content      *string `json:"content"`
	ReceiverID   *string `json:"receiver_id"`
	MessageID    *string `json:"message_id"`
	TypingStatus *bool   `json:"typing_status"`
}

// DecodeFrame parses and validates a client frame. Validation failures are
// returned as *ProtocolError.
func DecodeFrame(data []byte) (InboundFrame, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, protocolError("Invalid payload: " + typeErr.Field + " has the wrong type")
		}
		return nil, protocolError("Invalid payload: frame must be a JSON object")
	}
	if raw.Type == nil || *raw.Type == "" {
		return nil, protocolError("Invalid payload: missing required field type")
	}

	switch *raw.Type {
	case FrameMessage:
		if raw.Content == nil || *raw.Content == "" {
			return nil, protocolError("Invalid payload: message requires content")
		}
		receiverID, err := requireUUID(raw.ReceiverID, "receiver_id")
		if err != nil {
			return nil, err
		}
		return MessageFrame{Content: *raw.Content, ReceiverID: receiverID}, nil

	case FrameMessageSeen:
		messageID, err := requireUUID(raw.MessageID, "message_id")
		if err != nil {
			return nil, err
		}
		return SeenFrame{MessageID: messageID}, nil

	case FrameActiveTyping:
		receiverID, err := requireUUID(raw.ReceiverID, "receiver_id")
		if err != nil {
			return nil, err
		}
		if raw.TypingStatus == nil {
			return nil, protocolError("Invalid payload: active_typing requires typing_status")
		}
		return TypingFrame{ReceiverID: receiverID, TypingStatus: *raw.TypingStatus}, nil

	case FrameImage:
		return ImageFrame{}, nil

	case FrameVideo:
		return VideoFrame{}, nil

	default:
		return UnknownFrame{Type: *raw.Type}, nil
	}
}

func requireUUID(value *string, field string) (uuid.UUID, error) {
	if value == nil || *value == "" {
		return uuid.Nil, protocolError("Invalid payload: missing required field " + field)
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return uuid.Nil, protocolError("Invalid payload: " + field + " must be a UUID")
	}
	return id, nil
}

// --- Server → Client ---

// OutboundFrame is anything the server writes to a channel.
type OutboundFrame interface {
	FrameType() string
}

type PersonalMessagePayload struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	UserID    uuid.UUID `json:"user_id"` // sender
	MessageID uuid.UUID `json:"message_id"`
}

type MessageAckPayload struct {
	Type      string    `json:"type"`
	MessageID uuid.UUID `json:"message_id"`
}

type MessageSeenPayload struct {
	Type          string    `json:"type"`
	MessageID     uuid.UUID `json:"message_id"`
	SeenTimestamp string    `json:"seen_timestamp"`
}

type StatusUpdatePayload struct {
	Type     string    `json:"type"`
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

type TypingStatusPayload struct {
	Type         string    `json:"type"`
	SenderID     uuid.UUID `json:"sender_id"`
	TypingStatus bool      `json:"typing_status"`
}

type ActiveUsersPayload struct {
	Type        string      `json:"type"`
	ActiveUsers []uuid.UUID `json:"active_users"`
}

type MessageEditedPayload struct {
	Type      string    `json:"type"`
	MessageID uuid.UUID `json:"message_id"`
	Message   string    `json:"message"`
}

type MessageDeletedPayload struct {
	Type      string    `json:"type"`
	MessageID uuid.UUID `json:"message_id"`
}

// NoticePayload backs both "ack" and "error" frames.
type NoticePayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (p PersonalMessagePayload) FrameType() string { return p.Type }
func (p MessageAckPayload) FrameType() string      { return p.Type }
func (p MessageSeenPayload) FrameType() string     { return p.Type }
func (p StatusUpdatePayload) FrameType() string    { return p.Type }
func (p TypingStatusPayload) FrameType() string    { return p.Type }
func (p ActiveUsersPayload) FrameType() string     { return p.Type }
func (p MessageEditedPayload) FrameType() string   { return p.Type }
func (p MessageDeletedPayload) FrameType() string  { return p.Type }
func (p NoticePayload) FrameType() string          { return p.Type }

func NewPersonalMessage(content string, senderID, messageID uuid.UUID) PersonalMessagePayload {
	return PersonalMessagePayload{Type: FramePersonalMessage, Message: content, UserID: senderID, MessageID: messageID}
}

func NewMessageAck(messageID uuid.UUID) MessageAckPayload {
	return MessageAckPayload{Type: FrameMessageAck, MessageID: messageID}
}

func NewMessageSeen(messageID uuid.UUID, seenAt time.Time) MessageSeenPayload {
	return MessageSeenPayload{
		Type:          FrameMessageSeen,
		MessageID:     messageID,
		SeenTimestamp: seenAt.UTC().Format(time.RFC3339Nano),
	}
}

func NewStatusUpdate(userID uuid.UUID, online bool) StatusUpdatePayload {
	return StatusUpdatePayload{Type: FrameStatusUpdate, UserID: userID, IsOnline: online}
}

func NewTypingStatus(senderID uuid.UUID, typing bool) TypingStatusPayload {
	return TypingStatusPayload{Type: FrameTypingStatus, SenderID: senderID, TypingStatus: typing}
}

func NewActiveUsers(ids []uuid.UUID) ActiveUsersPayload {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ActiveUsersPayload{Type: FrameActiveUsers, ActiveUsers: ids}
}

func NewMessageEdited(messageID uuid.UUID, content string) MessageEditedPayload {
	return MessageEditedPayload{Type: FrameMessageEdited, MessageID: messageID, Message: content}
}

func NewMessageDeleted(messageID uuid.UUID) MessageDeletedPayload {
	return MessageDeletedPayload{Type: FrameMessageDeleted, MessageID: messageID}
}

func NewAck(message string) NoticePayload {
	return NoticePayload{Type: FrameAck, Message: message}
}

func NewError(message string) NoticePayload {
	return NoticePayload{Type: FrameError, Message: message}
}
