// File: internal/usecase/analytics_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
	"a2z-marketplace/internal/domain/ports/repository"
	"a2z-marketplace/internal/infra/metrics"
)

var _ AnalyticsUseCase = (*analyticsUC)(nil)

type AnalyticsUseCase interface {
	// Record counts one view or click without waiting for the database.
	// Delivery is at most once: saturated queues and rate-limited clients
	// drop the event silently.
	Record(ctx context.Context, postID string, kind model.AnalyticsKind, clientIP string) error
}

type AnalyticsOptions struct {
	Limit  int
	Window time.Duration
}

// KeyFunc builds the rate-limit key of one client and post.
type KeyFunc func(clientIP, postID string, kind model.AnalyticsKind) string

type analyticsUC struct {
	posts   repository.PostRepository
	limiter adapter.RateLimiter
	tasks   adapter.TaskSubmitter
	keyFn   KeyFunc
	opts    AnalyticsOptions
	log     *zerolog.Logger
}

func NewAnalyticsUseCase(posts repository.PostRepository, limiter adapter.RateLimiter, tasks adapter.TaskSubmitter, keyFn KeyFunc, opts AnalyticsOptions, logger *zerolog.Logger) AnalyticsUseCase {
	if opts.Limit <= 0 {
		opts.Limit = 30
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if keyFn == nil {
		keyFn = func(ip, id string, k model.AnalyticsKind) string {
			return fmt.Sprintf("ratelimit:analytics:%s:%s:%s", k, id, ip)
		}
	}
	return &analyticsUC{posts: posts, limiter: limiter, tasks: tasks, keyFn: keyFn, opts: opts, log: loggerOrNop(logger, "analytics_uc")}
}

func (u *analyticsUC) Record(ctx context.Context, postID string, kind model.AnalyticsKind, clientIP string) error {
	if !kind.Valid() {
		return domain.Invalid("increment", `must be "view" or "click"`)
	}
	if postID == "" {
		return domain.Invalid("id", "is required")
	}
	if err := checkPostID(postID); err != nil {
		metrics.IncAnalyticsEvent(string(kind), "not_found")
		return err
	}

	if u.limiter != nil {
		ok, err := u.limiter.Allow(ctx, u.keyFn(clientIP, postID, kind), u.opts.Limit, u.opts.Window)
		switch {
		case err != nil:
			// fail open: a Redis outage must not hide listings' traffic
			u.log.Warn().Err(err).Msg("analytics rate limiter unavailable")
		case !ok:
			metrics.IncAnalyticsEvent(string(kind), "rate_limited")
			return nil
		}
	}

	err := u.tasks.Submit(func(ctx context.Context) error {
		if err := u.posts.IncrementCounter(ctx, repository.NoTX, postID, kind); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				metrics.IncAnalyticsEvent(string(kind), "not_found")
				return nil
			}
			metrics.IncAnalyticsEvent(string(kind), "error")
			return fmt.Errorf("increment %s of %s: %w", kind, postID, err)
		}
		metrics.IncAnalyticsEvent(string(kind), "recorded")
		return nil
	})
	if err != nil {
		metrics.IncAnalyticsEvent(string(kind), "dropped")
		u.log.Debug().Err(err).Str("post_id", postID).Msg("analytics event dropped")
	}
	return nil
}
