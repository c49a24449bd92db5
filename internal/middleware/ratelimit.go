package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a request keyed by principal/IP may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// TokenBucket implements token bucket rate limiting
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refillRate int // tokens per second
	lastRefill time.Time
}

func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// Refill tokens based on time passed
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tokensToAdd := int(elapsed * float64(tb.refillRate))

	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// LocalLimiter manages per-key token buckets in process memory
type LocalLimiter struct {
	mu         sync.RWMutex
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate int
}

func NewLocalLimiter(capacity, refillRate int) *LocalLimiter {
	rl := &LocalLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
	}

	// Remove idle buckets so the map does not grow unbounded
	go rl.cleanup()

	return rl
}

func (rl *LocalLimiter) getBucket(key string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	bucket = NewTokenBucket(rl.capacity, rl.refillRate)
	rl.buckets[key] = bucket
	return bucket
}

func (rl *LocalLimiter) Allow(_ context.Context, key string) bool {
	return rl.getBucket(key).Allow()
}

func (rl *LocalLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, bucket := range rl.buckets {
			bucket.mu.Lock()
			if now.Sub(bucket.lastRefill) > 10*time.Minute {
				delete(rl.buckets, key)
			}
			bucket.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// RedisLimiter implements a fixed one-minute window shared across instances
type RedisLimiter struct {
	client *redis.Client
	limit  int
}

func NewRedisLimiter(client *redis.Client, limitPerMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limitPerMinute}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) bool {
	k := "ratelimit:" + key + ":" + time.Now().UTC().Format("200601021504")
	count, err := rl.client.Incr(ctx, k).Result()
	if err != nil {
		// Redis outage must not take the API down with it
		return true
	}
	if count == 1 {
		rl.client.Expire(ctx, k, time.Minute)
	}
	return count <= int64(rl.limit)
}

// RateLimit keys requests by the authenticated principal, falling back to
// the remote address for unauthenticated paths.
func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if ident, ok := IdentityFromContext(r.Context()); ok {
				key = ident.AuthID
			}

			if !limiter.Allow(r.Context(), key) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
