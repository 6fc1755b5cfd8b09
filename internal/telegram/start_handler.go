package telegram

import (
	"context"

	"mychat/backend/internal/localization"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Linker binds a Telegram chat to the accounts that named the Telegram username.
// directory.Service satisfies it.
type Linker interface {
	LinkExternalAddress(ctx context.Context, handle string, address int64) (bool, error)
}

// Replier sends a text back to a Telegram chat. *Sender satisfies it.
type Replier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// StartHandler answers /start: it greets the user and links their chat so notifications
// can reach them.
type StartHandler struct {
	Linker    Linker
	Replier   Replier
	Localizer *localization.Localizer
	Language  string
	log       *zap.Logger
}

func NewStartHandler(linker Linker, replier Replier, localizer *localization.Localizer, lang string, log *zap.Logger) *StartHandler {
	return &StartHandler{Linker: linker, Replier: replier, Localizer: localizer, Language: lang, log: log}
}

// Handle processes one /start message.
func (h *StartHandler) Handle(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	name := msg.From.FirstName
	if name == "" {
		name = msg.From.UserName
	}
	h.reply(ctx, chatID, h.Localizer.Format(h.Language, "bot_welcome", name))

	if msg.From.UserName == "" {
		h.reply(ctx, chatID, h.Localizer.GetString(h.Language, "bot_no_username"))
		return
	}

	linked, err := h.Linker.LinkExternalAddress(ctx, msg.From.UserName, chatID)
	switch {
	case err != nil:
		h.log.Error("Error linking telegram chat",
			zap.String("handle", msg.From.UserName),
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		h.reply(ctx, chatID, h.Localizer.GetString(h.Language, "bot_link_failed"))
	case linked:
		h.reply(ctx, chatID, h.Localizer.GetString(h.Language, "bot_linked"))
	default:
		h.reply(ctx, chatID, h.Localizer.GetString(h.Language, "bot_not_registered"))
	}
}

func (h *StartHandler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.Replier.Send(ctx, chatID, text); err != nil {
		h.log.Warn("Error sending bot reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
