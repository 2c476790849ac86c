package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/dmchat/internal/domain"
)

const messageColumns = "id, sender_id, receiver_id, content, created_at, seen_at, edited_at, is_deleted"

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var msg domain.Message
	err := r.pool.QueryRow(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = $1", id).Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content,
		&msg.CreatedAt, &msg.SeenAt, &msg.EditedAt, &msg.IsDeleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListConversation returns the messages exchanged between two users in
// both directions, oldest first.
func (r *MessageRepo) ListConversation(ctx context.Context, userID, peerID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE is_deleted = FALSE
			AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID, peerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content,
			&msg.CreatedAt, &msg.SeenAt, &msg.EditedAt, &msg.IsDeleted,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Update persists content and edited_at. A nil EditedAt is stamped with the
// current time.
func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	if msg.EditedAt == nil {
		now := time.Now()
		msg.EditedAt = &now
	}
	_, err := r.pool.Exec(ctx, `UPDATE messages SET content = $1, edited_at = $2 WHERE id = $3`, msg.Content, *msg.EditedAt, msg.ID)
	return err
}

func (r *MessageRepo) MarkSeen(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET seen_at = $1 WHERE id = $2 AND seen_at IS NULL`, at, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET is_deleted = TRUE WHERE id = $1`, id)
	return err
}
