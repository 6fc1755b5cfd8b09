// Package messagelog is the append-only history of every chat.
package messagelog

import (
	"context"
	"fmt"
	"time"

	"mychat/backend/internal/directory"
	"mychat/backend/internal/errs"
	"mychat/backend/internal/models"
	"mychat/backend/internal/storage"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

type Service struct {
	store storage.Storage
	users *directory.Service
	log   *zap.Logger
}

func NewService(store storage.Storage, users *directory.Service, log *zap.Logger) *Service {
	return &Service{store: store, users: users, log: log}
}

// Append stores a message from senderUsername in chatID. Membership is checked inside the
// storage transaction that assigns the message's position, so a stored message always
// comes from a member. A zero timestamp is replaced by the server clock.
func (s *Service) Append(ctx context.Context, chatID uint, senderUsername, body string, timestamp time.Time) (*models.Envelope, error) {
	sender, err := s.users.FindByUsername(ctx, senderUsername)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, fmt.Errorf("append to chat %d: %s: %w", chatID, senderUsername, errs.ErrUserNotFound)
	}
	msg := &models.Message{
		ChatID:   chatID,
		UserID:   sender.ID,
		Body:     body,
		Datetime: timestamp,
	}
	chat, err := s.store.SaveMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("append to chat %d: %w", chatID, err)
	}
	s.log.Debug("Message appended",
		zap.Uint("chat_id", chatID),
		zap.Uint("sender_id", sender.ID),
		zap.Uint64("seq", msg.Seq))
	return &models.Envelope{Message: *msg, Chat: *chat, Sender: *sender}, nil
}

// ListByChat returns the chat's history oldest first, each message with its sender.
// An unknown chat has an empty history.
func (s *Service) ListByChat(ctx context.Context, chatID uint) ([]models.MessageView, error) {
	messages, err := s.store.GetChatMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	senderIDs := lo.Uniq(lo.Map(messages, func(m models.Message, _ int) uint { return m.UserID }))
	senders, err := s.users.FindByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m models.Message, _ int) models.MessageView {
		return models.MessageView{
			Body:      m.Body,
			Timestamp: m.Datetime,
			Sender:    senders[m.UserID].View(),
		}
	}), nil
}
