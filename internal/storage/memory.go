package storage

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mychat/backend/internal/errs"
	"mychat/backend/internal/models"

	"github.com/samber/lo"
)

// MemoryStore is an in-process Storage used by tests and STORAGE_DRIVER=memory. It
// enforces the same constraints as the postgres schema: unique usernames, one chat per
// sorted pair, and per-chat sequence numbers.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[uint]models.User
	byUsername  map[string]uint
	chats       map[uint]*chatLog
	byPair      map[[2]int64]uint
	nextUserID  uint
	nextChatID  uint
	nextMessage atomic.Uint64
}

type chatLog struct {
	chat     models.Chat
	mu       sync.Mutex
	messages []models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[uint]models.User),
		byUsername: make(map[string]uint),
		chats:      make(map[uint]*chatLog),
		byPair:     make(map[[2]int64]uint),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	if err := user.BeforeCreate(nil); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[user.Username]; ok {
		return errs.ErrAlreadyExists
	}
	m.nextUserID++
	user.ID = m.nextUserID
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = *user
	m.byUsername[user.Username] = user.ID
	return nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return nil, nil
	}
	user := m.users[id]
	return &user, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (m *MemoryStore) GetUsersByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if user, ok := m.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (m *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := lo.Values(m.users)
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *MemoryStore) UpdateUserNotice(_ context.Context, username string, telegram *string, notice bool) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byUsername[username]
	if !ok {
		return 0, errs.ErrUserNotFound
	}
	user := m.users[id]
	user.Telegram = models.NormalizeHandle(telegram)
	user.Notice = notice
	m.users[id] = user
	return id, nil
}

func (m *MemoryStore) UpdateTelegramChatID(_ context.Context, telegram string, chatID int64) ([]uint, error) {
	handle := models.NormalizeHandle(&telegram)
	if handle == nil {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var linked []uint
	for id, user := range m.users {
		if user.Telegram != nil && *user.Telegram == *handle {
			address := chatID
			user.TelegramChatID = &address
			m.users[id] = user
			linked = append(linked, id)
		}
	}
	return linked, nil
}

func (m *MemoryStore) CreateChat(_ context.Context, chat *models.Chat) error {
	if len(chat.Members) != 2 || chat.Members[0] >= chat.Members[1] {
		return errs.ErrSelfChat
	}
	pair := [2]int64{chat.Members[0], chat.Members[1]}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byPair[pair]; ok {
		return errs.ErrDuplicateChat
	}
	m.nextChatID++
	chat.ID = m.nextChatID
	chat.CreatedAt = time.Now().UTC()
	m.chats[chat.ID] = &chatLog{chat: *chat}
	m.byPair[pair] = chat.ID
	return nil
}

func (m *MemoryStore) GetChatByID(_ context.Context, id uint) (*models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.chats[id]
	if !ok {
		return nil, nil
	}
	chat := log.chat
	return &chat, nil
}

func (m *MemoryStore) GetChatsForUser(_ context.Context, userID uint) ([]models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chats []models.Chat
	for _, log := range m.chats {
		if log.chat.HasMember(userID) {
			chats = append(chats, log.chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
	return chats, nil
}

// SaveMessage serializes appends per chat only; the table lock is held just long enough to
// find the chat.
func (m *MemoryStore) SaveMessage(_ context.Context, msg *models.Message) (*models.Chat, error) {
	m.mu.RLock()
	log, ok := m.chats[msg.ChatID]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.ErrChatNotFound
	}
	if !log.chat.HasMember(msg.UserID) {
		return nil, errs.ErrNotAMember
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	msg.ID = uint(m.nextMessage.Add(1))
	msg.Seq = uint64(len(log.messages)) + 1
	msg.Datetime = storedTime(msg.Datetime)
	msg.CreatedAt = time.Now().UTC()
	log.messages = append(log.messages, *msg)
	chat := log.chat
	return &chat, nil
}

func (m *MemoryStore) GetChatMessages(_ context.Context, chatID uint) ([]models.Message, error) {
	m.mu.RLock()
	log, ok := m.chats[chatID]
	m.mu.RUnlock()
	if !ok {
		return []models.Message{}, nil
	}

	log.mu.Lock()
	messages := make([]models.Message, len(log.messages))
	copy(messages, log.messages)
	log.mu.Unlock()

	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].Datetime.Equal(messages[j].Datetime) {
			return messages[i].Datetime.Before(messages[j].Datetime)
		}
		return messages[i].Seq < messages[j].Seq
	})
	return messages, nil
}
