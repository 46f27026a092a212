package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// RateLimiter counts hits per key within a fixed window.
type RateLimiter interface {
	// Hit records one request and reports whether it is within the limit.
	// When it is not, retryAfter is the remaining window.
	Hit(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisRateLimiter keeps one counter key per client in Redis.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRateLimiter builds a limiter allowing limit hits per window.
func NewRedisRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Hit implements RateLimiter.
func (l *RedisRateLimiter) Hit(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := l.prefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr rate limit counter: %w", err)
	}
	// The window starts at the first hit.
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire rate limit counter: %w", err)
		}
	}
	if count <= int64(l.limit) {
		return true, 0, nil
	}
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	return false, ttl, nil
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimiter is the single-process counterpart of RedisRateLimiter.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryRateLimiter builds an in-process limiter.
func NewMemoryRateLimiter(limit int, win time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{limit: limit, window: win, windows: make(map[string]*window), now: time.Now}
}

// Hit implements RateLimiter.
func (l *MemoryRateLimiter) Hit(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
		l.evict(now)
	}
	w.count++
	if w.count <= l.limit {
		return true, 0, nil
	}
	return false, w.resetAt.Sub(now), nil
}

func (l *MemoryRateLimiter) evict(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// RateLimit rejects callers that exceed limiter, keyed by client IP. A
// limiter failure lets the request through.
func RateLimit(limiter RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}
		allowed, retryAfter, err := limiter.Hit(c.UserContext(), c.IP())
		if err != nil {
			return c.Next()
		}
		if !allowed {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			c.Set(fiber.HeaderRetryAfter, fmt.Sprint(seconds))
			return apperrors.NewRateLimited(map[string]any{"retry_after_seconds": seconds})
		}
		return c.Next()
	}
}
