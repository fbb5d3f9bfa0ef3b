// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
	"a2z-marketplace/internal/domain/ports/repository"
	"a2z-marketplace/internal/infra/logging"
	"a2z-marketplace/internal/infra/metrics"
)

var _ WebhookUseCase = (*webhookUC)(nil)

// ReconcileResult reports what a callback did.
type ReconcileResult struct {
	Payment *model.Payment
	// Duplicate is set when the payment was already terminal and nothing changed.
	Duplicate bool
	// Promoted is set when this callback upgraded the profile.
	Promoted bool
	// Ignored is set for notifications that carry no transition (pending).
	Ignored bool
	// Recovered is set when a completed callback revived a payment the
	// stale sweeper had already cancelled.
	Recovered bool
	// Superseded is set when the payment completed but the profile already
	// holds a higher active tier; the tier is kept and an admin is alerted.
	Superseded bool
}

type WebhookUseCase interface {
	// Reconcile authenticates a provider callback and applies it to the
	// matching payment. A completed payment promotes its profile in the same
	// transaction. Terminal payments are never touched again, except that a
	// completed callback may revive a cancelled one. The tier never moves down.
	Reconcile(ctx context.Context, provider model.Provider, req adapter.WebhookRequest) (*ReconcileResult, error)
}

type webhookUC struct {
	payments  repository.PaymentRepository
	profiles  repository.ProfileRepository
	tm        repository.TransactionManager
	providers adapter.ProviderRegistry
	notifier  adapter.Notifier
	log       *zerolog.Logger
	now       Clock
	dev       bool
}

func NewWebhookUseCase(
	payments repository.PaymentRepository,
	profiles repository.ProfileRepository,
	tm repository.TransactionManager,
	providers adapter.ProviderRegistry,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
	clock Clock,
	dev bool,
) WebhookUseCase {
	return &webhookUC{
		payments:  payments,
		profiles:  profiles,
		tm:        tm,
		providers: providers,
		notifier:  notifier,
		log:       loggerOrNop(logger, "webhook_uc"),
		now:       clockOrDefault(clock),
		dev:       dev,
	}
}

func (u *webhookUC) Reconcile(ctx context.Context, provider model.Provider, req adapter.WebhookRequest) (res *ReconcileResult, err error) {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "WebhookUC.Reconcile")()
	start := time.Now()
	defer func() {
		metrics.ObserveWebhook(string(provider), time.Since(start).Seconds())
		metrics.IncWebhook(string(provider), webhookResult(res, err))
	}()

	gw, err := u.providers.Get(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrNotFound, provider)
	}
	n, err := gw.ParseNotification(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("provider", string(provider)).Str("remote_ip", req.RemoteIP).Msg("webhook rejected")
		return nil, err
	}
	// a pending callback carries no transition
	if n.Status == model.PaymentStatusPending {
		log.Debug().Str("reference", logging.Redact(n.Reference, u.dev)).Msg("pending notification ignored")
		return &ReconcileResult{Ignored: true}, nil
	}

	var (
		payment    *model.Payment
		profile    *model.Profile
		dup        bool
		recovered  bool
		superseded bool
	)
	now := u.now()
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByReference(ctx, tx, n.Reference)
		if err != nil {
			return err
		}
		payment = p
		if p.Provider != provider {
			return fmt.Errorf("%w: reference belongs to another provider", domain.ErrUnauthenticated)
		}
		// money taken after the sweeper gave up is still honoured
		late := p.Status == model.PaymentStatusCancelled && n.Status == model.PaymentStatusCompleted
		if p.Status.Terminal() && !late {
			dup = true
			return nil
		}
		if n.AmountCents != 0 && n.AmountCents != p.AmountCents {
			return domain.Invalid("amount", fmt.Sprintf("expected %d cents, got %d", p.AmountCents, n.AmountCents))
		}

		var txnID *string
		if n.ProviderTransactionID != "" {
			id := n.ProviderTransactionID
			txnID = &id
		}
		var completedAt *time.Time
		if n.Status == model.PaymentStatusCompleted {
			completedAt = &now
		}
		if err := u.payments.UpdateStatus(ctx, tx, p.ID, n.Status, txnID, completedAt); err != nil {
			return err
		}
		p.Status = n.Status
		p.UpdatedAt = now
		if txnID != nil {
			p.ProviderTransactionID = txnID
		}
		p.CompletedAt = completedAt

		if n.Status != model.PaymentStatusCompleted {
			return nil
		}
		prof, err := u.profiles.FindByID(ctx, tx, p.UserID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		recovered = late
		profile = prof
		if prof.HasPaidAccess(now) && p.SubscriptionTier.Rank() < prof.Tier.Rank() {
			superseded = true
			return nil
		}
		prof.Promote(p.SubscriptionTier, now)
		if err := u.profiles.Save(ctx, tx, prof); err != nil {
			return fmt.Errorf("promote profile: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Str("reference", logging.Redact(n.Reference, u.dev)).Msg("webhook for unknown payment")
		} else {
			log.Error().Err(err).Str("reference", logging.Redact(n.Reference, u.dev)).Msg("reconcile failed")
		}
		return nil, err
	}

	if dup {
		log.Info().
			Str("reference", logging.Redact(n.Reference, u.dev)).
			Str("status", string(payment.Status)).
			Msg("duplicate webhook ignored")
		return &ReconcileResult{Payment: payment, Duplicate: true}, nil
	}

	metrics.IncPayment(string(provider), string(payment.Status))
	res = &ReconcileResult{Payment: payment, Recovered: recovered, Superseded: superseded}
	ref := logging.Redact(payment.TransactionReference, u.dev)
	price := model.FormatPrice(payment.AmountCents, payment.Currency)
	if recovered {
		log.Error().Str("reference", ref).Msg("completed callback for a cancelled payment; payment revived")
	}
	switch {
	case superseded:
		metrics.AddPaymentRevenue(payment.Currency, payment.AmountCents)
		log.Error().
			Str("reference", ref).
			Str("paid_tier", string(payment.SubscriptionTier)).
			Str("current_tier", string(profile.Tier)).
			Msg("payment for a lower tier than the active one; tier kept")
		u.notify(ctx, log, fmt.Sprintf("Payment %s completed for %s but %s is on active %s; tier kept, refund may be due (%s)",
			ref, payment.SubscriptionTier, profile.Username, profile.Tier, price))
	case profile != nil:
		res.Promoted = true
		metrics.AddPaymentRevenue(payment.Currency, payment.AmountCents)
		metrics.IncSubscriptionPromoted(profile.Tier)
		invalidateProfile(ctx, u.profiles, profile)
		msg := fmt.Sprintf("Payment %s completed: %s upgraded to %s (%s)", ref, profile.Username, profile.Tier, price)
		if recovered {
			msg += "; it arrived after the intent was cancelled as stale"
		}
		u.notify(ctx, log, msg)
	}
	log.Info().
		Str("reference", ref).
		Str("status", string(payment.Status)).
		Bool("promoted", res.Promoted).
		Msg("payment reconciled")
	return res, nil
}

func (u *webhookUC) notify(ctx context.Context, log *zerolog.Logger, text string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, text); err != nil {
		log.Warn().Err(err).Msg("admin notification failed")
	}
}

func webhookResult(res *ReconcileResult, err error) string {
	switch {
	case err == nil && res != nil && res.Duplicate:
		return "duplicate"
	case err == nil && res != nil && res.Ignored:
		return "ignored"
	case err == nil && res != nil && res.Superseded:
		return "superseded"
	case err == nil && res != nil && res.Recovered:
		return "recovered"
	case err == nil:
		return "applied"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}
