//go:build !integration

package postgres

import (
	"context"
	"time"

	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/repository"
	red "a2z-marketplace/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerProfileRepo mocks the database repository that the Profile decorator wraps.
type mockInnerProfileRepo struct {
	SaveFunc            func(ctx context.Context, tx repository.Tx, p *model.Profile) error
	FindByIDFunc        func(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error)
	FindByUsernameFunc  func(ctx context.Context, tx repository.Tx, username string) (*model.Profile, error)
	ListDueForResetFunc func(ctx context.Context, tx repository.Tx, cutoff time.Time, afterID string, limit int) ([]*model.Profile, error)
	ListLapsedFunc      func(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Profile, error)
}

func (m *mockInnerProfileRepo) Save(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerProfileRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.Profile, error) {
	return m.FindByUsernameFunc(ctx, tx, username)
}
func (m *mockInnerProfileRepo) ListDueForReset(ctx context.Context, tx repository.Tx, cutoff time.Time, afterID string, limit int) ([]*model.Profile, error) {
	return m.ListDueForResetFunc(ctx, tx, cutoff, afterID, limit)
}
func (m *mockInnerProfileRepo) ListLapsed(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Profile, error) {
	return m.ListLapsedFunc(ctx, tx, now, limit)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNXFunc  func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
