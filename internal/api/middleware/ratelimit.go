package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/propchat/internal/api/response"
	"github.com/kiranshivaraju/propchat/internal/cache"
)

const defaultRequestsPerMinute = 60

// KeyFunc picks the counter a request is charged to. ok is false when the
// request cannot be attributed and should pass unlimited.
type KeyFunc func(r *http.Request) (key string, ok bool)

// ByAPIKey charges the API key that authenticated the request.
func ByAPIKey(r *http.Request) (string, bool) {
	prefix, ok := getKeyPrefix(r)
	if !ok {
		return "", false
	}
	return cache.RateLimitKey(prefix), true
}

// ByTenantIP charges one visitor address on one tenant.
func ByTenantIP(r *http.Request) (string, bool) {
	tenant, ok := GetTenantID(r)
	if !ok {
		return "", false
	}
	return cache.ChatRateLimitKey(tenant, ClientIP(r)), true
}

// Counter is the slice of the cache the limiter needs.
type Counter interface {
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RateLimit provides fixed-window rate limiting via Redis.
type RateLimit struct {
	cache          Counter
	requestsPerMin int
	key            KeyFunc
}

// NewRateLimit creates a new RateLimit middleware. A nil key charges API keys.
func NewRateLimit(c Counter, requestsPerMin int, key KeyFunc) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	if key == nil {
		key = ByAPIKey
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin, key: key}
}

// Limit applies rate limiting to the counter chosen by the key func.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := rl.key(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.cache.IncrWithExpiry(r.Context(), key, 60*time.Second)
		if err != nil {
			// On Redis error, allow the request (fail open)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}
		resetTime := time.Now().Add(60 * time.Second).Unix()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
