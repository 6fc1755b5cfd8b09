// Package telegram handles the integration with the Telegram Bot API: the long-polling bot
// that links Telegram chats to accounts, and the sender used for notifications.
package telegram

import (
	"context"
	"time"

	"mychat/backend/internal/localization"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// pollTimeout is the long-polling timeout in seconds.
const pollTimeout = 30

// BotService receives Telegram updates and dispatches bot commands.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Start     *StartHandler
	Localizer *localization.Localizer
	Language  string
	// ReplyTimeout bounds the handling of one update.
	ReplyTimeout time.Duration
	log          *zap.Logger
}

// NewBotService creates a new BotService instance.
func NewBotService(bot *tgbotapi.BotAPI, linker Linker, localizer *localization.Localizer, lang string, log *zap.Logger) *BotService {
	sender := NewSender(bot, log)
	return &BotService{
		BotAPI:       bot,
		Start:        NewStartHandler(linker, sender, localizer, lang, log),
		Localizer:    localizer,
		Language:     lang,
		ReplyTimeout: 15 * time.Second,
		log:          log,
	}
}

// Run long-polls for updates until ctx is done.
func (s *BotService) Run(ctx context.Context) error {
	s.log.Info("Telegram bot started", zap.String("account", s.BotAPI.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			s.log.Info("Telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			s.handleUpdate(ctx, update)
		}
	}
}

func (s *BotService) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.ReplyTimeout)
	defer cancel()

	switch msg.Command() {
	case "start":
		s.Start.Handle(ctx, msg)
	default:
		s.Start.reply(ctx, msg.Chat.ID, s.Localizer.GetString(s.Language, "bot_unknown_command"))
	}
}
