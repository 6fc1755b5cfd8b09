package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mychat/backend/internal/localization"
	"mychat/backend/internal/models"
	"mychat/backend/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

type stubUsers map[uint]models.User

func (s stubUsers) LoadByID(_ context.Context, id uint) (*models.User, error) {
	user, ok := s[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func strPtr(s string) *string { return &s }
func int64Ptr(i int64) *int64 { return &i }

var users = stubUsers{
	1: {ID: 1, Username: "alice", FirstName: strPtr("Alice"), LastName: strPtr("Smith")},
	2: {ID: 2, Username: "bob", Notice: true, TelegramChatID: int64Ptr(2002)},
	3: {ID: 3, Username: "carol", Notice: false, TelegramChatID: int64Ptr(3003)},
	4: {ID: 4, Username: "dave", Notice: true},
}

func newDispatcher(t *testing.T, sender notify.Sender, timeout time.Duration) *notify.Dispatcher {
	t.Helper()
	loc, err := localization.NewLocalizer()
	require.NoError(t, err)
	return notify.NewDispatcher(users, sender, loc, notify.Options{Timeout: timeout, Workers: 2, Language: "ru"}, zap.NewNop())
}

func TestDeliver_SendsLocalizedText(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, int64(2002), "У вас новое сообщение от пользователя Alice Smith").Return(nil).Once()
	d := newDispatcher(t, sender, time.Second)

	err := d.Deliver(context.Background(), 2, users[1])

	assert.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestDeliver_UsesUsernameWithoutFullName(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, int64(2002), "У вас новое сообщение от пользователя carol").Return(nil).Once()
	d := newDispatcher(t, sender, time.Second)

	assert.NoError(t, d.Deliver(context.Background(), 2, users[3]))
	sender.AssertExpectations(t)
}

func TestDeliver_SkipsUnreachableRecipients(t *testing.T) {
	sender := new(MockSender)
	d := newDispatcher(t, sender, time.Second)

	assert.NoError(t, d.Deliver(context.Background(), 3, users[1]), "notifications off")
	assert.NoError(t, d.Deliver(context.Background(), 4, users[1]), "no linked chat")
	assert.NoError(t, d.Deliver(context.Background(), 99, users[1]), "unknown user")
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliver_ReportsTransportError(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, int64(2002), mock.Anything).Return(errors.New("bot blocked")).Once()
	d := newDispatcher(t, sender, time.Second)

	err := d.Deliver(context.Background(), 2, users[1])
	assert.ErrorContains(t, err, "bot blocked")
}

func TestDeliver_BoundedByTimeout(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, int64(2002), mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded).Once()
	d := newDispatcher(t, sender, 50*time.Millisecond)

	start := time.Now()
	err := d.Deliver(context.Background(), 2, users[1])

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNotify_OneAttemptPerCall(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, int64(2002), mock.Anything).Return(nil)
	d := newDispatcher(t, sender, time.Second)

	d.Notify(2, users[1])
	d.Notify(2, users[3])
	d.Wait()

	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestNotify_NilSender(t *testing.T) {
	d := newDispatcher(t, nil, time.Second)

	d.Notify(2, users[1])
	d.Wait()
	assert.NoError(t, d.Deliver(context.Background(), 2, users[1]))
}

// TestNotify_OverflowIsDropped holds the only worker in a slow send: one more notification
// may wait in the queue and the rest are dropped instead of piling up.
func TestNotify_OverflowIsDropped(t *testing.T) {
	loc, err := localization.NewLocalizer()
	require.NoError(t, err)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	sender := new(MockSender)
	sender.On("Send", mock.Anything, int64(2002), mock.Anything).
		Run(func(mock.Arguments) {
			once.Do(func() { close(entered) })
			<-release
		}).
		Return(nil)
	d := notify.NewDispatcher(users, sender, loc,
		notify.Options{Timeout: 5 * time.Second, Workers: 1, QueueSize: 1, Language: "ru"}, zap.NewNop())

	d.Notify(2, users[1])
	<-entered
	for i := 0; i < 9; i++ {
		d.Notify(2, users[1])
	}
	close(release)
	d.Wait()

	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestNotify_AfterWaitIsIgnored(t *testing.T) {
	sender := new(MockSender)
	d := newDispatcher(t, sender, time.Second)
	d.Wait()

	assert.NotPanics(t, func() { d.Notify(2, users[1]) })
	d.Wait()
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}
