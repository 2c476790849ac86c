package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/dmchat/internal/domain"
	"github.com/vedran77/dmchat/internal/repository"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMessageOwner = errors.New("only the message sender can perform this action")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmptyContent    = errors.New("message content is required")
)

// Notifier pushes REST-side changes to connected clients.
type Notifier interface {
	NotifyEditedMessage(ctx context.Context, msg *domain.Message)
	NotifyDeletedMessage(ctx context.Context, msg *domain.Message)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	notifier    Notifier
	now         func() time.Time
}

func NewMessageService(messageRepo repository.MessageRepository, userRepo repository.UserRepository) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		now:         time.Now,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type EditMessageInput struct {
	Content string `json:"content"`
}

type ChatHistoryResponse struct {
	Messages []domain.Message `json:"messages"`
}

// History returns the conversation between userID and peerID, oldest first.
func (s *MessageService) History(ctx context.Context, userID, peerID uuid.UUID) (*ChatHistoryResponse, error) {
	peer, err := s.userRepo.GetByID(ctx, peerID)
	if err != nil {
		return nil, err
	}
	if peer == nil {
		return nil, ErrUserNotFound
	}

	messages, err := s.messageRepo.ListConversation(ctx, userID, peerID)
	if err != nil {
		return nil, fmt.Errorf("listing conversation: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &ChatHistoryResponse{Messages: messages}, nil
}

func (s *MessageService) Edit(ctx context.Context, userID, messageID uuid.UUID, input EditMessageInput) (*domain.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	msg, err := s.ownedMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	editedAt := s.now()
	msg.Content = content
	msg.EditedAt = &editedAt
	if err := s.messageRepo.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyEditedMessage(ctx, msg)
	}

	return msg, nil
}

func (s *MessageService) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.ownedMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyDeletedMessage(ctx, msg)
	}

	return nil
}

func (s *MessageService) ownedMessage(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.IsDeleted {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageOwner
	}
	return msg, nil
}
