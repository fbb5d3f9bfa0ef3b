package redis

import (
	"context"
	"fmt"
	"time"

	"a2z-marketplace/internal/domain/model"
)

// RateLimiter is a fixed-window counter: INCR, EXPIRE on the first hit.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// AnalyticsKey scopes an analytics increment to a client and a post.
func AnalyticsKey(clientIP, postID string, kind model.AnalyticsKind) string {
	return fmt.Sprintf("rate_limit:analytics:%s:%s:%s", postID, kind, clientIP)
}
