package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // intent created; awaiting provider callback
	PaymentStatusCompleted PaymentStatus = "completed" // provider confirmed the money
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled" // user cancelled at provider or intent went stale
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

type Provider string

const (
	ProviderPayFast Provider = "payfast"
	ProviderOzow    Provider = "ozow"
	ProviderEFT     Provider = "eft"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderPayFast, ProviderOzow, ProviderEFT:
		return true
	}
	return false
}

// Payment is one subscription purchase attempt.
type Payment struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	// ISO 4217, always ZAR today
	Currency         string   `json:"currency"`
	SubscriptionTier Tier     `json:"subscription_tier"`
	Provider         Provider `json:"provider"`
	// unique; correlates provider callbacks
	TransactionReference  string        `json:"transaction_reference"`
	Status                PaymentStatus `json:"status"`
	ProviderTransactionID *string       `json:"provider_transaction_id,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
	CompletedAt           *time.Time    `json:"completed_at,omitempty"`
}

// Checkout is what the client needs to continue at the provider.
// Exactly one of Form (auto-submitted POST to ActionURL) or RedirectPath is set.
type Checkout struct {
	Provider     Provider    `json:"provider"`
	Reference    string      `json:"transaction_reference"`
	ActionURL    string      `json:"action_url,omitempty"`
	Form         []FormField `json:"form,omitempty"`
	RedirectPath string      `json:"redirect_path,omitempty"`
}

// FormField keeps form order, which some providers sign over.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Notification is a verified provider callback translated to internal terms.
type Notification struct {
	Provider              Provider
	Reference             string
	ProviderTransactionID string
	Status                PaymentStatus
	AmountCents           int64 // 0 when the provider does not report an amount
}
