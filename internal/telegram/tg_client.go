package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// NewBotAPI connects to the Bot API at endpoint (tgbotapi.APIEndpoint in production).
// httpTimeout must exceed the long-polling timeout used by BotService.
func NewBotAPI(token, endpoint string, httpTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: httpTimeout})
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	bot.Debug = false
	return bot, nil
}

// Sender delivers plain text messages through the bot. It implements notify.Sender.
type Sender struct {
	BotAPI *tgbotapi.BotAPI
	log    *zap.Logger
}

func NewSender(bot *tgbotapi.BotAPI, log *zap.Logger) *Sender {
	return &Sender{BotAPI: bot, log: log}
}

// Send posts text to chatID. The Bot API client has no context support, so ctx only
// bounds how long the caller waits; a request already on the wire finishes in the background.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	done := make(chan error, 1)
	go func() {
		_, err := s.BotAPI.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram sendMessage: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.log.Warn("Telegram send abandoned", zap.Int64("chat_id", chatID), zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
