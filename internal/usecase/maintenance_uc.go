// File: internal/usecase/maintenance_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/repository"
	"a2z-marketplace/internal/infra/metrics"
)

var _ MaintenanceUseCase = (*maintenanceUC)(nil)

const expiryBatch = 200

type MaintenanceUseCase interface {
	// FinishExpired drops lapsed paid and trial profiles back to free.
	FinishExpired(ctx context.Context) (int, error)
	// CancelStalePayments cancels pending payments older than the stale window.
	CancelStalePayments(ctx context.Context) (int, error)
}

type maintenanceUC struct {
	profiles   repository.ProfileRepository
	payments   repository.PaymentRepository
	tm         repository.TransactionManager
	staleAfter time.Duration
	log        *zerolog.Logger
	now        Clock
}

func NewMaintenanceUseCase(profiles repository.ProfileRepository, payments repository.PaymentRepository, tm repository.TransactionManager, staleAfter time.Duration, logger *zerolog.Logger, clock Clock) MaintenanceUseCase {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &maintenanceUC{
		profiles:   profiles,
		payments:   payments,
		tm:         tm,
		staleAfter: staleAfter,
		log:        loggerOrNop(logger, "maintenance_uc"),
		now:        clockOrDefault(clock),
	}
}

func (u *maintenanceUC) FinishExpired(ctx context.Context) (int, error) {
	now := u.now()
	lapsed, err := u.profiles.ListLapsed(ctx, repository.NoTX, now, expiryBatch)
	if err != nil {
		return 0, fmt.Errorf("list lapsed profiles: %w", err)
	}
	done := 0
	for _, candidate := range lapsed {
		var expired *model.Profile
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			p, err := u.profiles.FindByID(ctx, tx, candidate.ID)
			if err != nil {
				return err
			}
			// a webhook may have renewed it since the listing query
			if p.EffectiveTier(now) != model.TierFree || p.Tier == model.TierFree {
				return nil
			}
			p.Expire(now)
			if err := u.profiles.Save(ctx, tx, p); err != nil {
				return err
			}
			expired = p
			return nil
		})
		if err != nil {
			u.log.Error().Err(err).Str("profile_id", candidate.ID).Msg("expire subscription failed")
			continue
		}
		if expired != nil {
			invalidateProfile(ctx, u.profiles, expired)
			done++
		}
	}
	if done > 0 {
		metrics.IncSubscriptionsExpired(done)
	}
	return done, nil
}

func (u *maintenanceUC) CancelStalePayments(ctx context.Context) (int, error) {
	n, err := u.payments.CancelStalePending(ctx, repository.NoTX, u.now().Add(-u.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("cancel stale payments: %w", err)
	}
	if n > 0 {
		metrics.AddStalePaymentsCancelled(n)
	}
	return n, nil
}
