package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/observability"
)

// DistributedRateLimiter enforces a fixed window across all instances via
// Redis. On Redis errors it fails open; availability beats strictness for
// admin traffic.
type DistributedRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewDistributedRateLimiter creates a Redis-backed limiter
func NewDistributedRateLimiter(client *redis.Client, limit int, window time.Duration) *DistributedRateLimiter {
	return &DistributedRateLimiter{client: client, limit: limit, window: window}
}

// Allow reports whether the key may proceed in the current window
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(rl.window.Seconds()))

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= int64(rl.limit), nil
}

// Middleware limits by user id when authenticated, client IP otherwise
func (rl *DistributedRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := rl.Allow(r.Context(), clientKey(r))
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).
					Warn("rate limiter unavailable, failing open")
			}
			if !allowed {
				httputil.WriteTooManyRequests(w, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
