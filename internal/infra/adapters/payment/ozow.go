package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"a2z-marketplace/internal/config"
	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*Ozow)(nil)

// ozowHashFields is the order Ozow concatenates notification fields in.
var ozowHashFields = []string{
	"SiteCode", "TransactionId", "TransactionReference", "Amount", "Status",
	"Optional1", "Optional2", "Optional3", "Optional4", "Optional5",
	"CurrencyCode", "IsTest", "StatusMessage",
}

// Ozow hands checkout to the site's redirect page and verifies SHA-512
// hashed notifications.
type Ozow struct {
	siteCode   string
	privateKey string
	allowed    allowList
}

func NewOzow(cfg config.OzowConfig) (*Ozow, error) {
	if cfg.SiteCode == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("ozow: site code and private key are required")
	}
	allowed, err := newAllowList(cfg.AllowedIPs)
	if err != nil {
		return nil, fmt.Errorf("ozow: %w", err)
	}
	return &Ozow{siteCode: cfg.SiteCode, privateKey: cfg.PrivateKey, allowed: allowed}, nil
}

func (o *Ozow) Name() model.Provider { return model.ProviderOzow }

func (o *Ozow) Checkout(ctx context.Context, req adapter.CheckoutRequest) (*model.Checkout, error) {
	if req.Payment == nil {
		return nil, domain.ErrInvalidArgument
	}
	ref := req.Payment.TransactionReference
	return &model.Checkout{
		Provider:     model.ProviderOzow,
		Reference:    ref,
		RedirectPath: "/checkout/ozow/" + url.PathEscape(ref),
	}, nil
}

func (o *Ozow) hash(values url.Values) string {
	var b strings.Builder
	for _, f := range ozowHashFields {
		b.WriteString(values.Get(f))
	}
	b.WriteString(o.privateKey)
	sum := sha512.Sum512([]byte(strings.ToLower(b.String())))
	return hex.EncodeToString(sum[:])
}

func (o *Ozow) ParseNotification(ctx context.Context, req adapter.WebhookRequest) (*model.Notification, error) {
	if !o.allowed.allows(req.RemoteIP) {
		return nil, fmt.Errorf("%w: ozow callback from %s", domain.ErrUnauthenticated, req.RemoteIP)
	}
	values, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: ozow body: %v", domain.ErrUnauthenticated, err)
	}
	posted := strings.ToLower(values.Get("Hash"))
	if posted == "" {
		return nil, fmt.Errorf("%w: ozow hash missing", domain.ErrUnauthenticated)
	}
	if subtle.ConstantTimeCompare([]byte(posted), []byte(o.hash(values))) != 1 {
		return nil, fmt.Errorf("%w: ozow hash mismatch", domain.ErrUnauthenticated)
	}
	if !strings.EqualFold(values.Get("SiteCode"), o.siteCode) {
		return nil, fmt.Errorf("%w: ozow site code mismatch", domain.ErrUnauthenticated)
	}

	status, err := ozowStatus(values.Get("Status"))
	if err != nil {
		return nil, err
	}
	n := &model.Notification{
		Provider:              model.ProviderOzow,
		Reference:             values.Get("TransactionReference"),
		ProviderTransactionID: values.Get("TransactionId"),
		Status:                status,
	}
	if amt := values.Get("Amount"); amt != "" {
		if n.AmountCents, err = parseAmount(amt); err != nil {
			return nil, domain.Invalid("Amount", err.Error())
		}
	}
	if n.Reference == "" {
		return nil, domain.Invalid("TransactionReference", "missing")
	}
	return n, nil
}

func ozowStatus(s string) (model.PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "complete":
		return model.PaymentStatusCompleted, nil
	case "error":
		return model.PaymentStatusFailed, nil
	case "cancelled", "abandoned":
		return model.PaymentStatusCancelled, nil
	case "pending", "pendinginvestigation":
		return model.PaymentStatusPending, nil
	}
	return "", domain.Invalid("Status", "unknown status "+s)
}
