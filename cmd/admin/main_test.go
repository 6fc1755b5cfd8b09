package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"mychat/backend/internal/directory"
	"mychat/backend/internal/messagelog"
	"mychat/backend/internal/registry"
	"mychat/backend/internal/storage"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCLI(t *testing.T) (*adminCLI, *bytes.Buffer) {
	t.Helper()
	store := storage.NewMemoryStore()
	log := zap.NewNop()
	users := directory.NewService(store, 0, log)
	ctx := context.Background()
	_, err := users.Register(ctx, "alice", "hash", directory.Profile{FirstName: lo.ToPtr("Alice"), LastName: lo.ToPtr("Smith")})
	require.NoError(t, err)
	_, err = users.Register(ctx, "bob", "hash", directory.Profile{})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &adminCLI{
		users:    users,
		chats:    registry.NewService(store, users, log),
		messages: messagelog.NewService(store, users, log),
		out:      out,
	}, out
}

func TestAdmin_UsersAndChats(t *testing.T) {
	cli, out := newTestCLI(t)
	ctx := context.Background()

	require.NoError(t, cli.dispatch(ctx, "users", nil))
	assert.Contains(t, out.String(), "Alice Smith")
	assert.Contains(t, out.String(), "bob")

	out.Reset()
	require.NoError(t, cli.dispatch(ctx, "create-chat", []string{"alice", "bob"}))
	assert.Contains(t, out.String(), "Chat 1 created.")

	assert.Error(t, cli.dispatch(ctx, "create-chat", []string{"bob", "alice"}), "duplicate chat")

	out.Reset()
	require.NoError(t, cli.dispatch(ctx, "chats", []string{"bob"}))
	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "Alice Smith")
}

func TestAdmin_History(t *testing.T) {
	cli, out := newTestCLI(t)
	ctx := context.Background()
	require.NoError(t, cli.dispatch(ctx, "create-chat", []string{"alice", "bob"}))
	_, err := cli.messages.Append(ctx, 1, "bob", "hello there", time.Now())
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, cli.dispatch(ctx, "history", []string{"1"}))
	assert.Contains(t, out.String(), "hello there")

	assert.Error(t, cli.dispatch(ctx, "history", []string{"x"}))
}

func TestAdmin_Notice(t *testing.T) {
	cli, out := newTestCLI(t)
	ctx := context.Background()

	require.NoError(t, cli.dispatch(ctx, "notice", []string{"alice", "@alice_tg", "on"}))
	assert.Contains(t, out.String(), "Notifications for alice are on.")

	user, err := cli.users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, user.Notice)
	assert.Equal(t, "alice_tg", *user.Telegram)

	assert.Error(t, cli.dispatch(ctx, "notice", []string{"alice", "x", "maybe"}))
	assert.Error(t, cli.dispatch(ctx, "unknown", nil))
}
