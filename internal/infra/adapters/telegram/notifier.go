package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"a2z-marketplace/internal/config"
	"a2z-marketplace/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*AdminNotifier)(nil)

// sender is the part of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AdminNotifier posts operational messages (payments, reset runs) to one
// admin chat.
type AdminNotifier struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

func NewAdminNotifier(cfg config.TelegramConfig, log *zerolog.Logger) (*AdminNotifier, error) {
	if cfg.Token == "" || cfg.AdminChatID == 0 {
		return nil, errors.New("telegram token and admin_chat_id are required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdminNotifier(bot, cfg.AdminChatID, log), nil
}

func newAdminNotifier(bot sender, chatID int64, log *zerolog.Logger) *AdminNotifier {
	return &AdminNotifier{bot: bot, chatID: chatID, log: log}
}

func (n *AdminNotifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Int64("chat_id", n.chatID).Msg("admin notification failed")
		return err
	}
	return nil
}
