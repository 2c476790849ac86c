package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct message between two users. SeenAt is set once and
// never moves backward.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	SenderID   uuid.UUID  `json:"sender_id"`
	ReceiverID uuid.UUID  `json:"receiver_id"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"timestamp"`
	SeenAt     *time.Time `json:"seen_timestamp"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`
	IsDeleted  bool       `json:"-"`
}

// Seen reports whether the receiver has already seen the message.
func (m *Message) Seen() bool {
	return m.SeenAt != nil
}

// Peer returns the other participant of the message relative to userID.
func (m *Message) Peer(userID uuid.UUID) uuid.UUID {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
