package adapter

import (
	"context"

	"a2z-marketplace/internal/domain/model"
)

// CheckoutRequest is what a provider needs to build its redirect payload.
type CheckoutRequest struct {
	Payment  *model.Payment
	Profile  *model.Profile
	ItemName string
}

// WebhookRequest is a raw provider callback as received over HTTP.
type WebhookRequest struct {
	Body      []byte
	Signature string // header-borne signature, when the provider uses one
	RemoteIP  string
}

// PaymentProvider is the hex port for payment gateways.
type PaymentProvider interface {
	Name() model.Provider
	// Checkout builds signed form fields or a redirect path for the payment.
	Checkout(ctx context.Context, req CheckoutRequest) (*model.Checkout, error)
	// ParseNotification authenticates the callback and translates it.
	// Any failed check returns an error wrapping domain.ErrUnauthenticated.
	ParseNotification(ctx context.Context, req WebhookRequest) (*model.Notification, error)
}

// ProviderRegistry resolves the adapter of a configured provider.
type ProviderRegistry interface {
	Get(name model.Provider) (PaymentProvider, error)
}
