package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tradegate/tradegate/pkg/contextkeys"
	"github.com/tradegate/tradegate/pkg/httputil"
)

// RateLimiter is a per-process fixed-window limiter. Buckets live in an LRU
// cache so an unbounded set of clients cannot grow memory without limit.
type RateLimiter struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, *bucket]
	limit   int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	cache, _ := lru.New[string, *bucket](4096)
	return &RateLimiter{
		buckets: cache,
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether the key may proceed in the current window
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets.Get(key)
	if !ok || now.Sub(b.windowStart) >= rl.window {
		rl.buckets.Add(key, &bucket{count: 1, windowStart: now})
		return true
	}
	if b.count >= rl.limit {
		return false
	}
	b.count++
	return true
}

// Middleware limits by user id when authenticated, client IP otherwise
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(clientKey(r)) {
				httputil.WriteTooManyRequests(w, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if userID := contextkeys.UserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
