package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mychat/backend/internal/errs"
	"mychat/backend/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the persistence contract shared by the directory, registry and message log.
// Lookups return (nil, nil) when the record does not exist.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserNotice(ctx context.Context, username string, telegram *string, notice bool) (uint, error)
	UpdateTelegramChatID(ctx context.Context, telegram string, chatID int64) ([]uint, error)

	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChatByID(ctx context.Context, id uint) (*models.Chat, error)
	GetChatsForUser(ctx context.Context, userID uint) ([]models.Chat, error)

	SaveMessage(ctx context.Context, msg *models.Message) (*models.Chat, error)
	GetChatMessages(ctx context.Context, chatID uint) ([]models.Message, error)
}

// Service implements Storage on PostgreSQL through gorm.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Migrate creates or updates the tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.Message{},
	)
}

// CreateUser inserts the user. The unique index on username decides collisions.
func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrAlreadyExists
		}
		return fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return nil
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return &user, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

// GetUsersByIDs loads several users in one query. Missing ids are skipped.
func (s *Service) GetUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.DB.WithContext(ctx).Where("id IN ?", lo.Uniq(ids)).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return users, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("id asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUserNotice stores the Telegram handle and the notification flag and returns the
// user's id.
func (s *Service) UpdateUserNotice(ctx context.Context, username string, telegram *string, notice bool) (uint, error) {
	var users []models.User
	result := s.DB.WithContext(ctx).Model(&users).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"telegram": models.NormalizeHandle(telegram),
			"notice":   notice,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("update notice for %s: %w", username, result.Error)
	}
	if result.RowsAffected == 0 || len(users) == 0 {
		return 0, errs.ErrUserNotFound
	}
	return users[0].ID, nil
}

// UpdateTelegramChatID links every user registered with the handle to the Telegram chat and
// returns their ids. No match is not an error.
func (s *Service) UpdateTelegramChatID(ctx context.Context, telegram string, chatID int64) ([]uint, error) {
	handle := models.NormalizeHandle(&telegram)
	if handle == nil {
		return nil, nil
	}

	var users []models.User
	result := s.DB.WithContext(ctx).Model(&users).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("telegram = ?", *handle).
		Update("telegram_chat_id", chatID)
	if result.Error != nil {
		return nil, fmt.Errorf("link telegram %s: %w", *handle, result.Error)
	}
	return lo.Map(users, func(u models.User, _ int) uint { return u.ID }), nil
}

// CreateChat inserts the chat. The unique index on the sorted member array is the only
// arbiter of duplicates, so concurrent inserts of the same pair cannot both succeed.
func (s *Service) CreateChat(ctx context.Context, chat *models.Chat) error {
	if err := s.DB.WithContext(ctx).Create(chat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrDuplicateChat
		}
		return fmt.Errorf("create chat %v: %w", chat.Members, err)
	}
	return nil
}

func (s *Service) GetChatByID(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	err := s.DB.WithContext(ctx).First(&chat, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", id, err)
	}
	return &chat, nil
}

func (s *Service) GetChatsForUser(ctx context.Context, userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	if err := s.DB.WithContext(ctx).
		Where("? = ANY(members)", int64(userID)).
		Order("id asc").
		Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("get chats for user %d: %w", userID, err)
	}
	return chats, nil
}

// SaveMessage appends msg to its chat and returns the chat row it locked. The lock is held
// for the duration of the transaction so seq assignment is serialized per chat while other
// chats proceed.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) (*models.Chat, error) {
	var chat models.Chat
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&chat, msg.ChatID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrChatNotFound
		}
		if err != nil {
			return fmt.Errorf("lock chat %d: %w", msg.ChatID, err)
		}
		if !chat.HasMember(msg.UserID) {
			return errs.ErrNotAMember
		}

		var last uint64
		if err := tx.Model(&models.Message{}).
			Where("chat_id = ?", msg.ChatID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&last).Error; err != nil {
			return fmt.Errorf("next seq for chat %d: %w", msg.ChatID, err)
		}

		msg.Seq = last + 1
		msg.Datetime = storedTime(msg.Datetime)
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("save message for chat %d: %w", msg.ChatID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChatMessages returns the chat's messages by timestamp, ties broken by seq.
func (s *Service) GetChatMessages(ctx context.Context, chatID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := s.DB.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("datetime asc, seq asc").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("get messages for chat %d: %w", chatID, err)
	}
	return messages, nil
}

// storedTime is the timestamp as postgres keeps it: UTC with microsecond precision.
// A zero time means "now".
func storedTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}

var (
	_ Storage = (*Service)(nil)
	_ Storage = (*MemoryStore)(nil)
)
