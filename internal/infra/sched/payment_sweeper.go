package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain/ports/adapter"
	"a2z-marketplace/internal/usecase"
)

// PaymentSweeper cancels pending payments whose provider callback never
// arrived. A callback that shows up later finds a terminal payment and is
// acknowledged without effect.
type PaymentSweeper struct {
	maint    usecase.MaintenanceUseCase
	locker   adapter.Locker
	interval time.Duration // how often to scan
	log      *zerolog.Logger
}

func NewPaymentSweeper(maint usecase.MaintenanceUseCase, locker adapter.Locker, interval time.Duration, logger *zerolog.Logger) *PaymentSweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	l := logger.With().Str("component", "PaymentSweeper").Logger()
	return &PaymentSweeper{maint: maint, locker: locker, interval: interval, log: &l}
}

func (w *PaymentSweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment sweeper")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment sweeper")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentSweeper) tick(ctx context.Context) {
	runExclusive(ctx, w.locker, "lock:payment-sweeper", w.interval, w.log, func(ctx context.Context) {
		n, err := w.maint.CancelStalePayments(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("payment sweeper: cancel stale failed")
			return
		}
		if n > 0 {
			w.log.Info().Int("cancelled", n).Msg("stale pending payments cancelled")
		}
	})
}
