// Package notify sends best-effort push notifications to users who are not connected.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mychat/backend/internal/localization"
	"mychat/backend/internal/models"

	"go.uber.org/zap"
)

// Sender delivers a text to an external chat address.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// UserLookup resolves recipients without caching. directory.Service satisfies it.
type UserLookup interface {
	LoadByID(ctx context.Context, id uint) (*models.User, error)
}

type Options struct {
	Timeout time.Duration
	Workers int
	// QueueSize is how many notifications may wait for a worker. Overflow is dropped.
	QueueSize int
	Language  string
}

type job struct {
	recipientID uint
	from        models.User
}

// Dispatcher makes at most one delivery attempt per Notify call on a fixed pool of
// workers. Failures are logged and never reach chat participants.
type Dispatcher struct {
	users     UserLookup
	sender    Sender
	localizer *localization.Localizer
	opts      Options
	log       *zap.Logger

	queue  chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil sender turns every delivery into a no-op.
func NewDispatcher(users UserLookup, sender Sender, localizer *localization.Localizer, opts Options, log *zap.Logger) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 32
	}
	if opts.Language == "" {
		opts.Language = localization.DefaultLanguage
	}
	d := &Dispatcher{
		users:     users,
		sender:    sender,
		localizer: localizer,
		opts:      opts,
		log:       log,
		queue:     make(chan job, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Notify queues a delivery and returns immediately. When the queue is full, or the
// dispatcher is shutting down, the notification is dropped.
func (d *Dispatcher) Notify(recipientID uint, from models.User) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- job{recipientID: recipientID, from: from}:
	default:
		d.log.Warn("Notification queue full, dropping",
			zap.Uint("recipient_id", recipientID),
			zap.String("from", from.Username))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		if err := d.Deliver(ctx, j.recipientID, j.from); err != nil {
			d.log.Warn("Notification failed",
				zap.Uint("recipient_id", j.recipientID),
				zap.String("from", j.from.Username),
				zap.Error(err))
		}
		cancel()
	}
}

// Deliver performs one delivery attempt synchronously. A recipient without notifications
// enabled or without a linked chat is skipped without error.
func (d *Dispatcher) Deliver(ctx context.Context, recipientID uint, from models.User) error {
	if d.sender == nil {
		d.log.Debug("No notification sender configured", zap.Uint("recipient_id", recipientID))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	recipient, err := d.users.LoadByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("lookup recipient %d: %w", recipientID, err)
	}
	if recipient == nil || !recipient.CanBeNotified() {
		return nil
	}

	text := d.localizer.Format(d.opts.Language, "new_message_notice", from.DisplayName())
	if err := d.sender.Send(ctx, *recipient.TelegramChatID, text); err != nil {
		return fmt.Errorf("send to %d: %w", recipientID, err)
	}
	d.log.Debug("Notification sent", zap.Uint("recipient_id", recipientID))
	return nil
}

// Wait stops accepting notifications and blocks until the queued ones are delivered.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
