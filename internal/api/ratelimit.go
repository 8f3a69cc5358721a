package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps a token bucket per client address. It guards the
// endpoints that trigger language-model work.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows maxRate requests per window, with bursts up to
// maxRate.
func NewRateLimiter(maxRate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(maxRate) / window.Seconds()),
		burst:    maxRate,
	}
}

// Allow reports whether the client may proceed.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[client]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[client] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

// RateLimitMiddleware rejects over-limit requests with 429.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := r.RemoteAddr
		if i := strings.LastIndex(client, ":"); i >= 0 {
			client = client[:i]
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			client = strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		}
		if !rl.Allow(client) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
