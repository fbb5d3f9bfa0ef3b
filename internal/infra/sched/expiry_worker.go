package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/ports/adapter"
	"a2z-marketplace/internal/usecase"
)

// ExpiryWorker periodically drops lapsed paid and trial profiles to free.
type ExpiryWorker struct {
	interval time.Duration
	maint    usecase.MaintenanceUseCase
	locker   adapter.Locker
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, maint usecase.MaintenanceUseCase, locker adapter.Locker, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		maint:    maint,
		locker:   locker,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	ran := runExclusive(ctx, w.locker, "lock:expiry-worker", w.interval, w.log, func(ctx context.Context) {
		n, err := w.maint.FinishExpired(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("expiry worker error")
		}
		if n > 0 {
			w.log.Info().Int("count", n).Msg("expired subscriptions finished")
		}
	})
	if !ran {
		w.log.Debug().Msg("expiry tick skipped; another instance holds the lock")
	}
}

// runExclusive runs fn only when this instance wins the lease. Replicas
// share the schedule, so a lost race simply skips the tick.
func runExclusive(ctx context.Context, locker adapter.Locker, key string, ttl time.Duration, log *zerolog.Logger, fn func(ctx context.Context)) bool {
	if locker == nil {
		fn(ctx)
		return true
	}
	token, err := locker.TryLock(ctx, key, ttl)
	if err != nil {
		if !errors.Is(err, domain.ErrLocked) {
			log.Warn().Err(err).Str("key", key).Msg("acquire worker lock failed")
		}
		return false
	}
	defer func() {
		if err := locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("release worker lock failed")
		}
	}()
	fn(ctx)
	return true
}
