package chathub_test

import (
	"context"
	"sync"

	"mychat/backend/internal/models"
	"mychat/backend/internal/storage"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(recipientID uint, from models.User) {
	m.Called(recipientID, from)
}

// MockPresence is a testify mock of the hub's Presence dependency.
type MockPresence struct {
	mock.Mock
}

func (m *MockPresence) MarkOnline(ctx context.Context, userID uint, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

func (m *MockPresence) MarkOffline(ctx context.Context, userID uint, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

func (m *MockPresence) IsOnline(ctx context.Context, userID uint) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPresence) Publish(ctx context.Context, recipientID uint, frame []byte) error {
	args := m.Called(ctx, recipientID, frame)
	return args.Error(0)
}

func (m *MockPresence) Listen(ctx context.Context, log *zap.Logger, handle func(storage.Delivery)) error {
	args := m.Called(ctx, log, handle)
	return args.Error(0)
}

// memoryPresence keeps one owner per user and releases it only for the owning connection.
type memoryPresence struct {
	mu     sync.Mutex
	owners map[uint]string
}

func newMemoryPresence() *memoryPresence {
	return &memoryPresence{owners: make(map[uint]string)}
}

func (p *memoryPresence) MarkOnline(_ context.Context, userID uint, connID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owners[userID] = connID
	return nil
}

func (p *memoryPresence) MarkOffline(_ context.Context, userID uint, connID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.owners[userID] == connID {
		delete(p.owners, userID)
	}
	return nil
}

func (p *memoryPresence) IsOnline(_ context.Context, userID uint) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.owners[userID]
	return ok, nil
}

func (p *memoryPresence) Publish(context.Context, uint, []byte) error { return nil }

func (p *memoryPresence) Listen(ctx context.Context, _ *zap.Logger, _ func(storage.Delivery)) error {
	<-ctx.Done()
	return nil
}

func (p *memoryPresence) Owner(userID uint) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owners[userID]
}
