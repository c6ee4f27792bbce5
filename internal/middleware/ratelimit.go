package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request from identifier is allowed
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// RateLimiter provides rate limiting functionality
type RateLimiter struct {
	limiter Limiter
	logger  *log.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limiter Limiter, logger *log.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns a middleware that rate limits requests
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := getIdentifier(r)

		allowed, err := rl.limiter.Allow(r.Context(), identifier)
		if err != nil {
			// Fail open: a broken limiter backend must not take the API down
			rl.logger.Printf("Rate limit check failed for %s: %v", identifier, err)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests. Please try again later."})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getIdentifier returns the client ID when the ClientID middleware ran, the
// caller's IP otherwise
func getIdentifier(r *http.Request) string {
	if clientID, ok := GetClientIDFromContext(r.Context()); ok {
		return "client:" + clientID
	}
	return "ip:" + getClientIP(r)
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// RedisLimiter is a sliding-window limiter shared by every instance using the
// same Redis
type RedisLimiter struct {
	redis       *redis.Client
	maxRequests int
	window      time.Duration
}

// NewRedisLimiter creates a new Redis backed limiter
func NewRedisLimiter(client *redis.Client, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		redis:       client,
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow records the request and reports whether it fits in the window
func (l *RedisLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s", identifier)
	now := time.Now()
	windowStart := now.Add(-l.window).UnixMilli()

	// Use Redis sorted set for sliding window
	pipe := l.redis.Pipeline()

	// Remove old entries outside the window
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))

	// Count requests in current window
	countCmd := pipe.ZCard(ctx, key)

	// Members must be unique or requests within the same millisecond collapse
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})

	pipe.Expire(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return countCmd.Val() < int64(l.maxRequests), nil
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-process token bucket limiter, used when Redis is not
// configured
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryLimiter allows maxRequests per window for each identifier, refilled
// evenly across the window
func NewMemoryLimiter(maxRequests int, window time.Duration) *MemoryLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	l := &MemoryLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Every(window / time.Duration(maxRequests)),
		burst:    maxRequests,
		done:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether identifier may make another request now
func (l *MemoryLimiter) Allow(_ context.Context, identifier string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[identifier]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[identifier] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow(), nil
}

// Close stops the cleanup loop
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() { close(l.done) })
}

// cleanup evicts entries not seen in the last 10 minutes
func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			for id, entry := range l.limiters {
				if time.Since(entry.lastSeen) > 10*time.Minute {
					delete(l.limiters, id)
				}
			}
			l.mu.Unlock()
		}
	}
}
