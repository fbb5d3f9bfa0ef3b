package adapter

import "context"

// Notifier delivers operational messages to the admin channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
