// Package middleware holds fiber middleware shared by the HTTP surface.
package middleware

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/linkshift/redirector/internal/domain"
)

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity   int
	tokens     float64 // fractional so refill stays precise
	refillRate int     // tokens per second
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow takes one token if available and reports the tokens left
func (tb *TokenBucket) Allow() (bool, int) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*float64(tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true, int(tb.tokens)
	}
	return false, 0
}

// retryAfter returns the whole seconds until one token is available
func (tb *TokenBucket) retryAfter() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	if tb.refillRate <= 0 {
		return 60
	}
	return max(1, int(math.Ceil((1-tb.tokens)/float64(tb.refillRate))))
}

// Endpoint groups with their own limits
const (
	GroupResolve = "resolve"
	GroupAdmin   = "admin"
	GroupSystem  = "system"
	GroupDefault = "default"
)

type limit struct {
	capacity   int
	refillRate int
}

// RateLimiter keeps one bucket per client and endpoint group
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex

	limits map[string]limit
}

// NewRateLimiter creates a rate limiter. Resolution traffic gets twice the
// configured rate, admin traffic half of it.
func NewRateLimiter(rps, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		limits: map[string]limit{
			GroupResolve: {burst * 2, rps * 2},
			GroupAdmin:   {max(burst/2, 1), max(rps/2, 1)},
			GroupSystem:  {20, 2},
			GroupDefault: {burst, rps},
		},
	}
}

// Group classifies a request path
func Group(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/resolve"):
		return GroupResolve
	case strings.HasPrefix(path, "/api/admin"):
		return GroupAdmin
	case path == "/health" || path == "/metrics":
		return GroupSystem
	default:
		return GroupDefault
	}
}

func (rl *RateLimiter) getBucket(clientID, group string) *TokenBucket {
	key := clientID + ":" + group

	rl.mutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.mutex.RUnlock()

	if exists {
		return bucket
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	l := rl.limits[group]
	bucket = NewTokenBucket(l.capacity, l.refillRate)
	rl.buckets[key] = bucket

	return bucket
}

// Middleware returns a Fiber middleware for rate limiting
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := "ip:" + c.IP()
		group := Group(c.Path())

		bucket := rl.getBucket(clientID, group)
		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.limits[group].capacity))

		allowed, remaining := bucket.Allow()
		if !allowed {
			retry := strconv.Itoa(bucket.retryAfter())
			appErr := domain.NewAppError(
				domain.ErrRateLimit,
				"Rate limit exceeded",
				429,
				map[string]any{
					"endpoint_group": group,
					"retry_after":    retry,
				},
			).WithContext(c.UserContext(), "rate_limit")

			c.Set("Retry-After", retry)
			c.Set("X-RateLimit-Remaining", "0")

			return c.Status(appErr.StatusCode).JSON(map[string]any{
				"status":  "error",
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			})
		}

		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		return c.Next()
	}
}

// CleanupOldBuckets removes buckets idle for more than an hour
func (rl *RateLimiter) CleanupOldBuckets() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		idle := now.Sub(bucket.lastRefill)
		bucket.mutex.Unlock()
		if idle > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine starts a background routine to clean up old buckets.
// Returns a stop function to cancel the routine.
func (rl *RateLimiter) StartCleanupRoutine() (stop func()) {
	ticker := time.NewTicker(10 * time.Minute)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				rl.CleanupOldBuckets()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()

	limits := make(map[string]map[string]int, len(rl.limits))
	for group, l := range rl.limits {
		limits[group] = map[string]int{"capacity": l.capacity, "refill_rate": l.refillRate}
	}

	return map[string]any{
		"active_buckets": len(rl.buckets),
		"limits":         limits,
	}
}
