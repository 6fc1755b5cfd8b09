package storage_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"mychat/backend/internal/errs"
	"mychat/backend/internal/models"
	"mychat/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestPostgresService runs against a real database when DATABASE_DSN is set.
func TestPostgresService(t *testing.T) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: DATABASE_DSN not set")
	}

	db, err := storage.NewGormDB(dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	s := storage.NewStorageService(db)
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	alice := &models.User{Username: "alice_" + suffix, Password: "hash"}
	bob := &models.User{Username: "bob_" + suffix, Password: "hash"}
	require.NoError(t, s.CreateUser(ctx, alice))
	require.NoError(t, s.CreateUser(ctx, bob))

	t.Run("duplicate username", func(t *testing.T) {
		err := s.CreateUser(ctx, &models.User{Username: alice.Username, Password: "x"})
		assert.ErrorIs(t, err, errs.ErrAlreadyExists)
	})

	var chatID uint
	t.Run("concurrent chat creation", func(t *testing.T) {
		var wg sync.WaitGroup
		errsCh := make(chan error, 2)
		ids := make(chan uint, 2)
		for _, pair := range [][2]uint{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
			wg.Add(1)
			go func(a, b uint) {
				defer wg.Done()
				chat := models.NewChat(a, b)
				err := s.CreateChat(ctx, chat)
				errsCh <- err
				if err == nil {
					ids <- chat.ID
				}
			}(pair[0], pair[1])
		}
		wg.Wait()
		close(errsCh)
		close(ids)

		var failures []error
		for err := range errsCh {
			if err != nil {
				failures = append(failures, err)
			}
		}
		require.Len(t, failures, 1)
		assert.ErrorIs(t, failures[0], errs.ErrDuplicateChat)
		chatID = <-ids
	})

	t.Run("concurrent appends keep order", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sender := alice.ID
				if i%2 == 0 {
					sender = bob.ID
				}
				msg := &models.Message{ChatID: chatID, UserID: sender, Body: fmt.Sprintf("m%d", i), Datetime: time.Now()}
				_, err := s.SaveMessage(ctx, msg)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		messages, err := s.GetChatMessages(ctx, chatID)
		require.NoError(t, err)
		require.Len(t, messages, 10)
		for i := 1; i < len(messages); i++ {
			assert.False(t, messages[i].Datetime.Before(messages[i-1].Datetime))
		}
	})

	t.Run("chats for user", func(t *testing.T) {
		chats, err := s.GetChatsForUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, chats, 1)
		assert.Equal(t, chatID, chats[0].ID)
	})
}
