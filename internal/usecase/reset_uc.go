// File: internal/usecase/reset_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
	"a2z-marketplace/internal/domain/ports/repository"
	"a2z-marketplace/internal/infra/logging"
	"a2z-marketplace/internal/infra/metrics"
)

var _ ResetUseCase = (*resetUC)(nil)

const (
	resetLockKey = "lock:free-account-reset"
	resetLockTTL = 30 * time.Minute
)

// ResetReport summarises one batch run.
type ResetReport struct {
	Success      int `json:"success"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	MediaDeleted int `json:"media_deleted"`
}

type ResetUseCase interface {
	// RunDailyReset retires the listings of every free profile whose weekly
	// cycle elapsed. Returns a wrapped domain.ErrConflict when another run
	// holds the lock.
	RunDailyReset(ctx context.Context) (*ResetReport, error)
}

type ResetOptions struct {
	Concurrency int
	BatchSize   int
}

type resetUC struct {
	profiles repository.ProfileRepository
	posts    repository.PostRepository
	tm       repository.TransactionManager
	storage  adapter.ObjectStorage
	locker   adapter.Locker
	notifier adapter.Notifier
	opts     ResetOptions
	log      *zerolog.Logger
	now      Clock
}

func NewResetUseCase(
	profiles repository.ProfileRepository,
	posts repository.PostRepository,
	tm repository.TransactionManager,
	storage adapter.ObjectStorage,
	locker adapter.Locker,
	notifier adapter.Notifier,
	opts ResetOptions,
	logger *zerolog.Logger,
	clock Clock,
) ResetUseCase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &resetUC{
		profiles: profiles,
		posts:    posts,
		tm:       tm,
		storage:  storage,
		locker:   locker,
		notifier: notifier,
		opts:     opts,
		log:      loggerOrNop(logger, "reset_uc"),
		now:      clockOrDefault(clock),
	}
}

type resetOutcome int

const (
	resetDone resetOutcome = iota
	resetSkipped
)

func (u *resetUC) RunDailyReset(ctx context.Context) (*ResetReport, error) {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "ResetUC.RunDailyReset")()

	token, err := u.locker.TryLock(ctx, resetLockKey, resetLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLocked) {
			metrics.IncResetRun("locked")
			return nil, fmt.Errorf("%w: reset already running", domain.ErrConflict)
		}
		metrics.IncResetRun("error")
		return nil, fmt.Errorf("%w: acquire reset lock", domain.ErrOperationFailed)
	}
	defer func() {
		// release even when the caller went away
		if err := u.locker.Unlock(context.WithoutCancel(ctx), resetLockKey, token); err != nil {
			log.Warn().Err(err).Msg("release reset lock failed")
		}
	}()

	now := u.now()
	cutoff := now.AddDate(0, 0, -model.FreeCycleDays)
	report := &ResetReport{}

	// failed rows stay eligible, so page by id rather than re-reading the head
	var after string
	for {
		page, err := u.profiles.ListDueForReset(ctx, repository.NoTX, cutoff, after, u.opts.BatchSize)
		if err != nil {
			metrics.IncResetRun("error")
			return report, fmt.Errorf("list due profiles: %w", err)
		}
		if len(page) == 0 {
			break
		}
		after = page[len(page)-1].ID
		u.runPage(ctx, log, page, now, report)

		if len(page) < u.opts.BatchSize || ctx.Err() != nil {
			break
		}
	}

	metrics.AddResetProfiles(report.Success, report.Failed)
	metrics.IncResetRun("completed")
	log.Info().
		Int("success", report.Success).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("media_deleted", report.MediaDeleted).
		Msg("free account reset finished")
	if report.Success > 0 || report.Failed > 0 {
		u.notify(ctx, log, fmt.Sprintf("Free account reset: %d reset, %d failed, %d media objects removed",
			report.Success, report.Failed, report.MediaDeleted))
	}
	return report, nil
}

func (u *resetUC) runPage(ctx context.Context, log *zerolog.Logger, page []*model.Profile, now time.Time, report *ResetReport) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(u.opts.Concurrency)
	for _, p := range page {
		p := p
		g.Go(func() error {
			outcome, media, err := u.resetOne(ctx, p.ID, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				log.Error().Err(err).Str("profile_id", p.ID).Msg("profile reset failed")
			case outcome == resetSkipped:
				report.Skipped++
			default:
				report.Success++
				report.MediaDeleted += media
			}
			// one profile never aborts the batch
			return nil
		})
	}
	_ = g.Wait()
}

// resetOne retires a single profile's listings in its own transaction.
// Storage deletion runs before commit so a failure leaves the rows intact
// for the next run; deleting a missing object is not an error.
func (u *resetUC) resetOne(ctx context.Context, profileID string, now time.Time) (resetOutcome, int, error) {
	var (
		updated *model.Profile
		deleted int
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.profiles.FindByID(ctx, tx, profileID)
		if err != nil {
			return err
		}
		// the profile may have upgraded or been reset since it was listed
		if !p.DueForReset(now) {
			return nil
		}
		media, err := u.posts.ExpireActiveByOwner(ctx, tx, p.ID, now)
		if err != nil {
			return fmt.Errorf("expire listings: %w", err)
		}
		keys := make([]string, 0, len(media))
		for _, m := range media {
			if key, ok := u.storage.KeyFromURL(m); ok {
				keys = append(keys, key)
			}
		}
		if len(keys) > 0 {
			if err := u.storage.Delete(ctx, keys...); err != nil {
				return fmt.Errorf("delete media: %w", err)
			}
		}
		p.CycleStartedAt = now
		p.UpdatedAt = now
		if err := u.profiles.Save(ctx, tx, p); err != nil {
			return fmt.Errorf("restart cycle: %w", err)
		}
		updated = p
		deleted = len(keys)
		return nil
	})
	if err != nil {
		return resetDone, 0, err
	}
	if updated == nil {
		return resetSkipped, 0, nil
	}
	invalidateProfile(ctx, u.profiles, updated)
	return resetDone, deleted, nil
}

func (u *resetUC) notify(ctx context.Context, log *zerolog.Logger, text string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, text); err != nil {
		log.Warn().Err(err).Msg("admin notification failed")
	}
}
