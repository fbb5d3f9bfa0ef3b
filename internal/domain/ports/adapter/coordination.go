package adapter

import (
	"context"
	"time"
)

// Locker is a distributed single-holder lease. TryLock returns
// domain.ErrLocked when the key is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter reports whether one more event under key fits the window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// TaskSubmitter queues fire-and-forget work. Submit must not block and
// returns an error when the task was dropped.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}
