package chathub_test

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// MockClient records every frame the hub sends to it.
type MockClient struct {
	userID   uint
	username string
	connID   string

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newMockClient(userID uint, username string) *MockClient {
	return &MockClient{userID: userID, username: username, connID: uuid.NewString()}
}

func (c *MockClient) GetUserID() uint     { return c.userID }
func (c *MockClient) GetUsername() string { return c.username }
func (c *MockClient) GetConnID() string   { return c.connID }

func (c *MockClient) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LastError decodes the most recent frame as an error frame.
func (c *MockClient) LastError() map[string]interface{} {
	frames := c.Frames()
	if len(frames) == 0 {
		return nil
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(frames[len(frames)-1], &decoded); err != nil {
		return nil
	}
	return decoded
}
