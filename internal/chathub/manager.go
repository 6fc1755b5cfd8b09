package chathub

import (
	"context"
	"errors"
	"sync"
	"time"

	"mychat/backend/internal/errs"
	"mychat/backend/internal/models"
	"mychat/backend/internal/storage"

	"go.uber.org/zap"
)

// Appender persists a message. messagelog.Service satisfies it.
type Appender interface {
	Append(ctx context.Context, chatID uint, senderUsername, body string, timestamp time.Time) (*models.Envelope, error)
}

// Notifier is told about messages for recipients who are not connected anywhere.
type Notifier interface {
	Notify(recipientID uint, from models.User)
}

// Presence shares connection state between instances. storage.Presence satisfies it.
type Presence interface {
	MarkOnline(ctx context.Context, userID uint, connID string) error
	MarkOffline(ctx context.Context, userID uint, connID string) error
	IsOnline(ctx context.Context, userID uint) (bool, error)
	Publish(ctx context.Context, recipientID uint, frame []byte) error
	Listen(ctx context.Context, log *zap.Logger, handle func(storage.Delivery)) error
}

type Options struct {
	// StrictSender rejects frames whose senderUsername is not the connection's user.
	StrictSender bool
	// HandleTimeout bounds the processing of one inbound frame.
	HandleTimeout time.Duration
}

// userLockStripes is the number of locks that serialize session changes per user.
const userLockStripes = 64

// ManagerService is the session table: at most one live connection per user.
type ManagerService struct {
	mu       sync.RWMutex
	sessions map[uint]Client
	// userLocks order connect, disconnect and presence writes of one user, so the shared
	// presence marker always ends up owned by the registered session.
	userLocks [userLockStripes]sync.Mutex

	messages Appender
	notifier Notifier
	presence Presence
	opts     Options
	log      *zap.Logger
}

// NewManagerService creates the hub. presence may be nil for a single instance.
func NewManagerService(messages Appender, notifier Notifier, presence Presence, opts Options, log *zap.Logger) *ManagerService {
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = 10 * time.Second
	}
	return &ManagerService{
		sessions: make(map[uint]Client),
		messages: messages,
		notifier: notifier,
		presence: presence,
		opts:     opts,
		log:      log,
	}
}

// OnConnect registers client as the user's session, closing any session it replaces.
func (m *ManagerService) OnConnect(client Client) {
	userID := client.GetUserID()
	unlock := m.lockUser(userID)
	defer unlock()

	m.mu.Lock()
	previous, had := m.sessions[userID]
	m.sessions[userID] = client
	m.mu.Unlock()

	if had && previous != client {
		m.log.Info("Session superseded",
			zap.Uint("user_id", userID),
			zap.String("old_conn", previous.GetConnID()),
			zap.String("new_conn", client.GetConnID()))
		previous.Close()
	}
	m.markOnline(client)
	m.log.Info("Client connected", zap.Uint("user_id", userID), zap.String("conn_id", client.GetConnID()))
}

// OnDisconnect removes client only if it is still the user's registered session. A late
// disconnect of a superseded connection changes nothing.
func (m *ManagerService) OnDisconnect(client Client) {
	userID := client.GetUserID()
	unlock := m.lockUser(userID)
	defer unlock()

	m.mu.Lock()
	current, ok := m.sessions[userID]
	removed := ok && current == client
	if removed {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if !removed {
		return
	}
	if m.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := m.presence.MarkOffline(ctx, userID, client.GetConnID()); err != nil {
			m.log.Warn("Error clearing presence", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	m.log.Info("Client disconnected", zap.Uint("user_id", userID), zap.String("conn_id", client.GetConnID()))
}

// Refresh extends the presence marker of client while it is still the live session.
func (m *ManagerService) Refresh(client Client) {
	unlock := m.lockUser(client.GetUserID())
	defer unlock()

	m.mu.RLock()
	current := m.sessions[client.GetUserID()]
	m.mu.RUnlock()
	if current == client {
		m.markOnline(client)
	}
}

// IsConnected reports whether the user has a session on this instance.
func (m *ManagerService) IsConnected(userID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[userID]
	return ok
}

// SessionCount returns the number of live sessions on this instance.
func (m *ManagerService) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// HandleInbound processes one raw frame from client: parse, persist, echo, route.
// Every failure is reported to the sender as an error frame and the connection stays open.
func (m *ManagerService) HandleInbound(ctx context.Context, client Client, raw []byte) {
	frame, err := ParseFrame(raw)
	if err != nil {
		m.reject(client, err, 0)
		return
	}
	if m.opts.StrictSender && frame.SenderUsername != client.GetUsername() {
		m.reject(client, errs.ErrSenderMismatch, frame.ChatID)
		return
	}

	env, err := m.messages.Append(ctx, frame.ChatID, frame.SenderUsername, frame.Body, frame.Timestamp)
	if err != nil {
		m.reject(client, err, frame.ChatID)
		return
	}

	client.Send(raw)

	recipientID, ok := env.Chat.Other(env.Sender.ID)
	if !ok {
		return
	}
	m.route(ctx, recipientID, raw, env.Sender)
}

// route hands the frame to the recipient's live session, wherever it is. Only a recipient
// with no session on any instance is notified.
func (m *ManagerService) route(ctx context.Context, recipientID uint, raw []byte, from models.User) {
	if m.deliverLocal(recipientID, raw) {
		return
	}
	if m.presence != nil {
		online, err := m.presence.IsOnline(ctx, recipientID)
		if err != nil {
			m.log.Warn("Error checking presence", zap.Uint("user_id", recipientID), zap.Error(err))
		}
		if online {
			if err := m.presence.Publish(ctx, recipientID, raw); err != nil {
				m.log.Warn("Error relaying frame", zap.Uint("user_id", recipientID), zap.Error(err))
			}
			return
		}
	}
	if m.notifier != nil {
		m.notifier.Notify(recipientID, from)
	}
}

// deliverLocal reports whether the user has a session here. A session that cannot take the
// frame closes itself; the user still counted as connected.
func (m *ManagerService) deliverLocal(userID uint, raw []byte) bool {
	m.mu.RLock()
	client, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if !client.Send(raw) {
		m.log.Warn("Frame dropped for slow client", zap.Uint("user_id", userID), zap.String("conn_id", client.GetConnID()))
	}
	return true
}

func (m *ManagerService) reject(client Client, err error, chatID uint) {
	level := zap.DebugLevel
	if errs.Code(err) == "internal" {
		level = zap.ErrorLevel
	}
	m.log.Log(level, "Frame rejected",
		zap.Uint("user_id", client.GetUserID()),
		zap.Uint("chat_id", chatID),
		zap.Error(err))
	client.Send(errorFrame(err, chatID))
}

func (m *ManagerService) lockUser(userID uint) func() {
	mu := &m.userLocks[userID%userLockStripes]
	mu.Lock()
	return mu.Unlock
}

func (m *ManagerService) markOnline(client Client) {
	if m.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.presence.MarkOnline(ctx, client.GetUserID(), client.GetConnID()); err != nil && !errors.Is(err, context.Canceled) {
		m.log.Warn("Error marking presence", zap.Uint("user_id", client.GetUserID()), zap.Error(err))
	}
}
