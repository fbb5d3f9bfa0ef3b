// File: internal/usecase/profile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/repository"
	"a2z-marketplace/internal/infra/metrics"
)

var _ ProfileUseCase = (*profileUC)(nil)

// Usage is how much of the tier allowance a profile consumes.
type Usage struct {
	ActiveListings int `json:"active_listings"`
	// RemainingListings is -1 when the tier is uncapped.
	RemainingListings int `json:"remaining_listings"`
}

// MeView is the account summary returned to the signed-in seller.
type MeView struct {
	Profile       *model.Profile   `json:"profile"`
	EffectiveTier model.Tier       `json:"effective_tier"`
	Policy        model.TierPolicy `json:"policy"`
	Usage         Usage            `json:"usage"`
	Reset         model.ResetInfo  `json:"reset"`
}

type ProfileUseCase interface {
	// EnsureProfile returns the profile of id, creating a free one on first sight.
	EnsureProfile(ctx context.Context, id, username, displayName string) (*model.Profile, error)
	Me(ctx context.Context, userID string) (*MeView, error)
	// StartTrial grants the one-off premium trial.
	StartTrial(ctx context.Context, userID string) (*model.Profile, error)
}

type profileUC struct {
	profiles repository.ProfileRepository
	posts    repository.PostRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      Clock
}

func NewProfileUseCase(profiles repository.ProfileRepository, posts repository.PostRepository, tm repository.TransactionManager, logger *zerolog.Logger, clock Clock) ProfileUseCase {
	return &profileUC{profiles: profiles, posts: posts, tm: tm, log: loggerOrNop(logger, "profile_uc"), now: clockOrDefault(clock)}
}

func (u *profileUC) EnsureProfile(ctx context.Context, id, username, displayName string) (*model.Profile, error) {
	p, err := u.profiles.FindByID(ctx, repository.NoTX, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	p, err = model.NewProfile(id, username, displayName, u.now())
	if err != nil {
		return nil, err
	}
	err = u.profiles.Save(ctx, repository.NoTX, p)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// username taken by someone else; fall back to the generated one
		generated, _ := model.NewProfile(id, "", displayName, p.CreatedAt)
		p.Username = generated.Username
		err = u.profiles.Save(ctx, repository.NoTX, p)
	}
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// a concurrent request created it first
			return u.profiles.FindByID(ctx, repository.NoTX, id)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	u.log.Info().Str("user_id", id).Str("username", p.Username).Msg("profile created")
	return p, nil
}

func (u *profileUC) Me(ctx context.Context, userID string) (*MeView, error) {
	p, err := u.profiles.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	now := u.now()
	tier := p.EffectiveTier(now)
	policy, err := model.PolicyFor(tier)
	if err != nil {
		return nil, err
	}
	active, err := u.posts.CountActiveByOwner(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, fmt.Errorf("count listings: %w", err)
	}
	usage := Usage{ActiveListings: active, RemainingListings: -1}
	if policy.MaxListings > 0 {
		usage.RemainingListings = max(policy.MaxListings-active, 0)
	}
	return &MeView{
		Profile:       p,
		EffectiveTier: tier,
		Policy:        policy,
		Usage:         usage,
		Reset:         p.ResetInfo(now),
	}, nil
}

func (u *profileUC) StartTrial(ctx context.Context, userID string) (*model.Profile, error) {
	var out *model.Profile
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.profiles.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := p.StartTrial(u.now()); err != nil {
			return fmt.Errorf("%w: trial already used or paid plan active", err)
		}
		if err := u.profiles.Save(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateProfile(ctx, u.profiles, out)
	metrics.IncTrialStarted()
	u.log.Info().Str("user_id", userID).Time("ends_at", *out.SubscriptionEndDate).Msg("trial started")
	return out, nil
}

// invalidateProfile drops cached copies after a committed write.
func invalidateProfile(ctx context.Context, repo repository.ProfileRepository, p *model.Profile) {
	if inv, ok := repo.(repository.ProfileInvalidator); ok && p != nil {
		inv.Invalidate(ctx, p)
	}
}
