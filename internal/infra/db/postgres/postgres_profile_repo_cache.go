package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/repository"
	"a2z-marketplace/internal/infra/metrics"
	red "a2z-marketplace/internal/infra/redis"
)

var (
	_ repository.ProfileRepository  = (*profileRepoCacheDecorator)(nil)
	_ repository.ProfileInvalidator = (*profileRepoCacheDecorator)(nil)
)

// profileRepoCacheDecorator caches non-transactional profile reads in Redis.
// Reads inside a transaction always hit Postgres so row locks are taken.
type profileRepoCacheDecorator struct {
	inner repository.ProfileRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewProfileRepoCacheDecorator(inner repository.ProfileRepository, cache red.RedisClient, ttl time.Duration) *profileRepoCacheDecorator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &profileRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func profileIDKey(id string) string         { return fmt.Sprintf("profile:id:%s", id) }
func profileUsernameKey(name string) string { return fmt.Sprintf("profile:username:%s", name) }

func (d *profileRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	d.Invalidate(ctx, p)
	return d.inner.Save(ctx, tx, p)
}

// Invalidate drops both cache keys of p. Callers run it again after commit so
// a read racing the transaction cannot leave a stale entry behind.
func (d *profileRepoCacheDecorator) Invalidate(ctx context.Context, p *model.Profile) {
	if p == nil {
		return
	}
	_ = d.cache.Del(ctx, profileIDKey(p.ID), profileUsernameKey(p.Username))
}

func (d *profileRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	if tx != nil {
		metrics.IncCacheRequest("profile", "bypass")
		return d.inner.FindByID(ctx, tx, id)
	}
	if p, ok := d.get(ctx, profileIDKey(id)); ok {
		return p, nil
	}
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.put(ctx, p)
	return p, nil
}

func (d *profileRepoCacheDecorator) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.Profile, error) {
	if tx != nil {
		metrics.IncCacheRequest("profile", "bypass")
		return d.inner.FindByUsername(ctx, tx, username)
	}
	if p, ok := d.get(ctx, profileUsernameKey(username)); ok {
		return p, nil
	}
	p, err := d.inner.FindByUsername(ctx, tx, username)
	if err != nil {
		return nil, err
	}
	d.put(ctx, p)
	return p, nil
}

// Batch queries are not cached.
func (d *profileRepoCacheDecorator) ListDueForReset(ctx context.Context, tx repository.Tx, cutoff time.Time, afterID string, limit int) ([]*model.Profile, error) {
	return d.inner.ListDueForReset(ctx, tx, cutoff, afterID, limit)
}

func (d *profileRepoCacheDecorator) ListLapsed(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Profile, error) {
	return d.inner.ListLapsed(ctx, tx, now, limit)
}

func (d *profileRepoCacheDecorator) get(ctx context.Context, key string) (*model.Profile, bool) {
	val, err := d.cache.Get(ctx, key)
	if err != nil {
		metrics.IncCacheRequest("profile", "miss")
		return nil, false
	}
	var p model.Profile
	if json.Unmarshal([]byte(val), &p) != nil {
		metrics.IncCacheRequest("profile", "miss")
		return nil, false
	}
	metrics.IncCacheRequest("profile", "hit")
	return &p, true
}

// put warms both keys so either lookup path hits next time.
func (d *profileRepoCacheDecorator) put(ctx context.Context, p *model.Profile) {
	if p == nil {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = d.cache.Set(ctx, profileIDKey(p.ID), b, d.ttl)
	_ = d.cache.Set(ctx, profileUsernameKey(p.Username), b, d.ttl)
}
