package payment

import (
	"context"
	"crypto/md5"
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

var _ adapter.PaymentProvider = (*PayFast)(nil)

const (
	payfastLiveURL    = "https://www.payfast.co.za/eng/process"
	payfastSandboxURL = "https://sandbox.payfast.co.za/eng/process"
)

// PayFast builds signed hosted-checkout forms and verifies ITN callbacks.
type PayFast struct {
	merchantID  string
	merchantKey string
	passphrase  string
	sandbox     bool
	baseURL     string
	allowed     allowList
}

func NewPayFast(cfg config.PayFastConfig, baseURL string) (*PayFast, error) {
	if cfg.MerchantID == "" || cfg.MerchantKey == "" {
		return nil, fmt.Errorf("payfast: merchant id and key are required")
	}
	allowed, err := newAllowList(cfg.AllowedIPs)
	if err != nil {
		return nil, fmt.Errorf("payfast: %w", err)
	}
	return &PayFast{
		merchantID:  cfg.MerchantID,
		merchantKey: cfg.MerchantKey,
		passphrase:  cfg.Passphrase,
		sandbox:     cfg.Sandbox,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		allowed:     allowed,
	}, nil
}

func (p *PayFast) Name() model.Provider { return model.ProviderPayFast }

func (p *PayFast) actionURL() string {
	if p.sandbox {
		return payfastSandboxURL
	}
	return payfastLiveURL
}

// Checkout returns the form fields in the order PayFast signs them.
func (p *PayFast) Checkout(ctx context.Context, req adapter.CheckoutRequest) (*model.Checkout, error) {
	if req.Payment == nil {
		return nil, domain.ErrInvalidArgument
	}
	ref := req.Payment.TransactionReference
	fields := []model.FormField{
		{Name: "merchant_id", Value: p.merchantID},
		{Name: "merchant_key", Value: p.merchantKey},
		{Name: "return_url", Value: p.baseURL + "/payments/return?ref=" + url.QueryEscape(ref)},
		{Name: "cancel_url", Value: p.baseURL + "/payments/cancel?ref=" + url.QueryEscape(ref)},
		{Name: "notify_url", Value: p.baseURL + "/webhooks/payfast"},
	}
	if req.Profile != nil && req.Profile.DisplayName != "" {
		fields = append(fields, model.FormField{Name: "name_first", Value: req.Profile.DisplayName})
	}
	fields = append(fields,
		model.FormField{Name: "m_payment_id", Value: ref},
		model.FormField{Name: "amount", Value: formatAmount(req.Payment.AmountCents)},
		model.FormField{Name: "item_name", Value: req.ItemName},
	)
	fields = append(fields, model.FormField{Name: "signature", Value: p.sign(fields, true)})

	return &model.Checkout{
		Provider:  model.ProviderPayFast,
		Reference: ref,
		ActionURL: p.actionURL(),
		Form:      fields,
	}, nil
}

// sign is the MD5 of the fields as url-encoded key=value pairs in order, with
// the passphrase appended when configured. Checkout forms skip empty values;
// ITNs sign every posted field.
func (p *PayFast) sign(fields []model.FormField, skipEmpty bool) string {
	var b strings.Builder
	for _, f := range fields {
		if f.Name == "signature" || (skipEmpty && f.Value == "") {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(strings.TrimSpace(f.Value)))
	}
	if p.passphrase != "" {
		b.WriteString("&passphrase=")
		b.WriteString(url.QueryEscape(strings.TrimSpace(p.passphrase)))
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ParseNotification verifies an ITN: source address, then signature over the
// fields in the order they were posted.
func (p *PayFast) ParseNotification(ctx context.Context, req adapter.WebhookRequest) (*model.Notification, error) {
	if !p.allowed.allows(req.RemoteIP) {
		return nil, fmt.Errorf("%w: payfast callback from %s", domain.ErrUnauthenticated, req.RemoteIP)
	}
	fields, err := orderedForm(string(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: payfast body: %v", domain.ErrUnauthenticated, err)
	}
	var posted string
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		if f.Name == "signature" {
			posted = f.Value
			continue
		}
		values[f.Name] = f.Value
	}
	if posted == "" {
		return nil, fmt.Errorf("%w: payfast signature missing", domain.ErrUnauthenticated)
	}
	want := p.sign(fields, false)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(posted)), []byte(want)) != 1 {
		return nil, fmt.Errorf("%w: payfast signature mismatch", domain.ErrUnauthenticated)
	}
	if mid := values["merchant_id"]; mid != "" && mid != p.merchantID {
		return nil, fmt.Errorf("%w: payfast merchant mismatch", domain.ErrUnauthenticated)
	}

	status, err := payfastStatus(values["payment_status"])
	if err != nil {
		return nil, err
	}
	n := &model.Notification{
		Provider:              model.ProviderPayFast,
		Reference:             values["m_payment_id"],
		ProviderTransactionID: values["pf_payment_id"],
		Status:                status,
	}
	if gross := values["amount_gross"]; gross != "" {
		if n.AmountCents, err = parseAmount(gross); err != nil {
			return nil, domain.Invalid("amount_gross", err.Error())
		}
	}
	if n.Reference == "" {
		return nil, domain.Invalid("m_payment_id", "missing")
	}
	return n, nil
}

func payfastStatus(s string) (model.PaymentStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMPLETE":
		return model.PaymentStatusCompleted, nil
	case "FAILED":
		return model.PaymentStatusFailed, nil
	case "PENDING":
		return model.PaymentStatusPending, nil
	case "CANCELLED":
		return model.PaymentStatusCancelled, nil
	}
	return "", domain.Invalid("payment_status", "unknown status "+s)
}

// orderedForm decodes an x-www-form-urlencoded body keeping field order,
// which url.ParseQuery loses.
func orderedForm(body string) ([]model.FormField, error) {
	var out []model.FormField
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		out = append(out, model.FormField{Name: key, Value: val})
	}
	return out, nil
}
