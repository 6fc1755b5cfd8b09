// Package registry owns chats: unordered pairs of distinct users, at most one per pair.
package registry

import (
	"context"
	"fmt"

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

// ListChatsFor returns the user's chats, each with the other member resolved.
func (s *Service) ListChatsFor(ctx context.Context, userID uint) ([]models.ChatView, error) {
	chats, err := s.store.GetChatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	others := lo.FilterMap(chats, func(c models.Chat, _ int) (uint, bool) {
		return c.Other(userID)
	})
	users, err := s.users.FindByIDs(ctx, others)
	if err != nil {
		return nil, err
	}
	views := make([]models.ChatView, 0, len(chats))
	for _, chat := range chats {
		otherID, _ := chat.Other(userID)
		other, ok := users[otherID]
		if !ok {
			s.log.Warn("Chat member missing", zap.Uint("chat_id", chat.ID), zap.Uint("user_id", otherID))
			continue
		}
		views = append(views, models.ChatView{ChatID: chat.ID, OtherMember: other.View()})
	}
	return views, nil
}

// ListChatsForUsername resolves the username and lists its chats.
func (s *Service) ListChatsForUsername(ctx context.Context, username string) ([]models.ChatView, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("list chats for %s: %w", username, errs.ErrUserNotFound)
	}
	return s.ListChatsFor(ctx, user.ID)
}

// CreateChat opens a chat between two users. The pair is unordered: (a, b) and (b, a) are
// the same chat, and the storage's unique index on the sorted pair rejects the second one.
func (s *Service) CreateChat(ctx context.Context, usernameA, usernameB string) (uint, error) {
	a, err := s.resolve(ctx, usernameA)
	if err != nil {
		return 0, err
	}
	b, err := s.resolve(ctx, usernameB)
	if err != nil {
		return 0, err
	}
	if a.ID == b.ID {
		return 0, errs.ErrSelfChat
	}
	chat := models.NewChat(a.ID, b.ID)
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return 0, fmt.Errorf("create chat %s/%s: %w", usernameA, usernameB, err)
	}
	s.log.Info("Chat created",
		zap.Uint("chat_id", chat.ID),
		zap.String("user_a", usernameA),
		zap.String("user_b", usernameB))
	return chat.ID, nil
}

// GetByID returns nil when the chat does not exist.
func (s *Service) GetByID(ctx context.Context, chatID uint) (*models.Chat, error) {
	return s.store.GetChatByID(ctx, chatID)
}

func (s *Service) resolve(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%s: %w", username, errs.ErrUserNotFound)
	}
	return user, nil
}
