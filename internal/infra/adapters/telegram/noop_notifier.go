package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs instead of sending, for local runs without a bot token.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(log *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: log}
}

func (n *NoopNotifier) Notify(ctx context.Context, text string) error {
	n.log.Debug().Str("text", text).Msg("[noop-telegram] admin notification")
	return nil
}
