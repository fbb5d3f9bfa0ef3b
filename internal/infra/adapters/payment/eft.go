package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"a2z-marketplace/internal/config"
	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*EFT)(nil)

// EFT verifies bank-notification relay callbacks signed with HMAC-SHA256
// over the raw body (X-Signature header).
type EFT struct {
	secret  []byte
	allowed allowList
}

func NewEFT(cfg config.EFTConfig) (*EFT, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("eft: secret is required")
	}
	allowed, err := newAllowList(cfg.AllowedIPs)
	if err != nil {
		return nil, fmt.Errorf("eft: %w", err)
	}
	return &EFT{secret: []byte(cfg.Secret), allowed: allowed}, nil
}

func (e *EFT) Name() model.Provider { return model.ProviderEFT }

func (e *EFT) Checkout(ctx context.Context, req adapter.CheckoutRequest) (*model.Checkout, error) {
	if req.Payment == nil {
		return nil, domain.ErrInvalidArgument
	}
	ref := req.Payment.TransactionReference
	return &model.Checkout{
		Provider:     model.ProviderEFT,
		Reference:    ref,
		RedirectPath: "/checkout/eft/" + url.PathEscape(ref),
	}, nil
}

type eftNotification struct {
	Reference     string `json:"reference"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	AmountCents   int64  `json:"amount_cents"`
}

// Sign returns the hex HMAC of body. The relay and the tests use it.
func (e *EFT) Sign(body []byte) string {
	mac := hmac.New(sha256.New, e.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (e *EFT) ParseNotification(ctx context.Context, req adapter.WebhookRequest) (*model.Notification, error) {
	if !e.allowed.allows(req.RemoteIP) {
		return nil, fmt.Errorf("%w: eft callback from %s", domain.ErrUnauthenticated, req.RemoteIP)
	}
	got, err := hex.DecodeString(strings.TrimSpace(req.Signature))
	if err != nil || len(got) == 0 {
		return nil, fmt.Errorf("%w: eft signature missing or malformed", domain.ErrUnauthenticated)
	}
	want, _ := hex.DecodeString(e.Sign(req.Body))
	if !hmac.Equal(got, want) {
		return nil, fmt.Errorf("%w: eft signature mismatch", domain.ErrUnauthenticated)
	}

	var body eftNotification
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, domain.Invalid("body", "malformed json")
	}
	status, err := eftStatus(body.Status)
	if err != nil {
		return nil, err
	}
	if body.Reference == "" {
		return nil, domain.Invalid("reference", "missing")
	}
	return &model.Notification{
		Provider:              model.ProviderEFT,
		Reference:             body.Reference,
		ProviderTransactionID: body.TransactionID,
		Status:                status,
		AmountCents:           body.AmountCents,
	}, nil
}

func eftStatus(s string) (model.PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "completed", "complete", "success":
		return model.PaymentStatusCompleted, nil
	case "failed", "rejected":
		return model.PaymentStatusFailed, nil
	case "cancelled", "reversed":
		return model.PaymentStatusCancelled, nil
	case "pending":
		return model.PaymentStatusPending, nil
	}
	return "", domain.Invalid("status", "unknown status "+s)
}
