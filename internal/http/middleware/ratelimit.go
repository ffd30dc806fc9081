package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/edupay/edupay/internal/repository/redis"
)

// RateLimiter middleware handles rate limiting
type RateLimiter struct {
	cache         *redis.Cache
	requestsLimit int
	windowSize    time.Duration
}

// NewRateLimiter creates a new rate limiter middleware
func NewRateLimiter(cache *redis.Cache, requestsLimit int, windowSize time.Duration) *RateLimiter {
	return &RateLimiter{
		cache:         cache,
		requestsLimit: requestsLimit,
		windowSize:    windowSize,
	}
}

// Limit returns a middleware that rate limits requests per client IP
func (rl *RateLimiter) Limit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)
			key := redis.RateLimitKey(ip, endpoint)

			count, err := rl.cache.IncrementWithTTL(r.Context(), key, rl.windowSize)
			if err != nil {
				// A Redis outage must not block payment traffic
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.requestsLimit))
			remaining := int64(rl.requestsLimit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

			if count > int64(rl.requestsLimit) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.windowSize.Seconds())))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware creates rate limiters for the endpoint groups
type RateLimitMiddleware struct {
	payment *RateLimiter
	api     *RateLimiter
	admin   *RateLimiter
}

// NewRateLimitMiddleware creates a new rate limit middleware set
func NewRateLimitMiddleware(cache *redis.Cache, paymentPerMinute, apiPerMinute, adminPerMinute int) *RateLimitMiddleware {
	window := time.Minute
	return &RateLimitMiddleware{
		payment: NewRateLimiter(cache, paymentPerMinute, window),
		api:     NewRateLimiter(cache, apiPerMinute, window),
		admin:   NewRateLimiter(cache, adminPerMinute, window),
	}
}

// Payment returns the payment initiation rate limiter middleware
func (rlm *RateLimitMiddleware) Payment() func(http.Handler) http.Handler {
	return rlm.payment.Limit("payment")
}

// API returns the general API rate limiter middleware
func (rlm *RateLimitMiddleware) API() func(http.Handler) http.Handler {
	return rlm.api.Limit("api")
}

// Admin returns the admin rate limiter middleware
func (rlm *RateLimitMiddleware) Admin() func(http.Handler) http.Handler {
	return rlm.admin.Limit("admin")
}
