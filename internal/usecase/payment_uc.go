// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
	"a2z-marketplace/internal/domain/ports/repository"
	"a2z-marketplace/internal/infra/logging"
	"a2z-marketplace/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

const referencePrefix = "A2Z-"

type CreateIntentInput struct {
	UserID   string             `json:"-" validate:"required"`
	Tier     model.Tier         `json:"tier" validate:"required,oneof=premium business"`
	Provider model.Provider     `json:"provider" validate:"required,oneof=payfast ozow eft"`
	Billing  model.BillingCycle `json:"billing_cycle" validate:"omitempty,oneof=monthly"`
}

// Intent is a freshly created pending payment and how to continue at the provider.
type Intent struct {
	Payment  *model.Payment  `json:"payment"`
	Checkout *model.Checkout `json:"checkout"`
}

type PaymentUseCase interface {
	// CreateIntent prices the tier, stores one pending payment and returns
	// the provider checkout. The profile is not touched.
	CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error)
	// GetPayment returns a payment owned by userID.
	GetPayment(ctx context.Context, userID, reference string) (*model.Payment, error)
}

type paymentUC struct {
	payments  repository.PaymentRepository
	profiles  repository.ProfileRepository
	providers adapter.ProviderRegistry
	log       *zerolog.Logger
	now       Clock
	dev       bool
}

func NewPaymentUseCase(payments repository.PaymentRepository, profiles repository.ProfileRepository, providers adapter.ProviderRegistry, logger *zerolog.Logger, clock Clock, dev bool) PaymentUseCase {
	return &paymentUC{
		payments:  payments,
		profiles:  profiles,
		providers: providers,
		log:       loggerOrNop(logger, "payment_uc"),
		now:       clockOrDefault(clock),
		dev:       dev,
	}
}

// NewTransactionReference builds "A2Z-<ULID>-<first 8 of user id>".
func NewTransactionReference(userID string) string {
	short := strings.ReplaceAll(userID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return referencePrefix + ulid.Make().String() + "-" + short
}

func (u *paymentUC) CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
	if in.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if in.Billing == "" {
		in.Billing = model.BillingMonthly
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	log := logging.With(ctx, u.log)

	profile, err := u.profiles.FindByID(ctx, repository.NoTX, in.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no profile for caller", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: load profile", domain.ErrOperationFailed)
	}

	now := u.now()
	if profile.HasPaidAccess(now) {
		switch {
		case profile.Tier == in.Tier:
			return nil, fmt.Errorf("%w: already subscribed to %s", domain.ErrConflict, in.Tier)
		case in.Tier.Rank() < profile.Tier.Rank():
			return nil, fmt.Errorf("%w: downgrade while %s is active", domain.ErrForbidden, profile.Tier)
		}
	}

	policy, err := model.PolicyFor(in.Tier)
	if err != nil {
		return nil, err
	}
	amount, err := policy.PriceFor(profile.EarlyAdopter, in.Billing)
	if err != nil {
		return nil, err
	}
	provider, err := u.providers.Get(in.Provider)
	if err != nil {
		return nil, domain.Invalid("provider", err.Error())
	}

	p := &model.Payment{
		ID:                   uuid.NewString(),
		UserID:               profile.ID,
		AmountCents:          amount,
		Currency:             "ZAR",
		SubscriptionTier:     in.Tier,
		Provider:             in.Provider,
		TransactionReference: NewTransactionReference(profile.ID),
		Status:               model.PaymentStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		log.Error().Err(err).Str("provider", string(in.Provider)).Msg("persist payment intent failed")
		return nil, fmt.Errorf("%w: persist payment", domain.ErrOperationFailed)
	}

	checkout, err := provider.Checkout(ctx, adapter.CheckoutRequest{
		Payment:  p,
		Profile:  profile,
		ItemName: fmt.Sprintf("A2Z %s (%s)", in.Tier, in.Billing),
	})
	if err != nil {
		// the pending row is left for the stale sweeper
		log.Error().Err(err).Str("reference", p.TransactionReference).Msg("build checkout failed")
		return nil, fmt.Errorf("%w: build checkout", domain.ErrOperationFailed)
	}

	metrics.IncPayment(string(in.Provider), string(model.PaymentStatusPending))
	log.Info().
		Str("reference", logging.Redact(p.TransactionReference, u.dev)).
		Str("tier", string(in.Tier)).
		Int64("amount_cents", amount).
		Str("provider", string(in.Provider)).
		Msg("payment intent created")
	return &Intent{Payment: p, Checkout: checkout}, nil
}

func (u *paymentUC) GetPayment(ctx context.Context, userID, reference string) (*model.Payment, error) {
	p, err := u.payments.FindByReference(ctx, repository.NoTX, reference)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		// do not reveal other users' references
		return nil, domain.ErrNotFound
	}
	return p, nil
}
