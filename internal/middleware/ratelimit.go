package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP extracts the client address for rate limiting and logs.
// CF-Connecting-IP wins when present since Cloudflare terminates first,
// then the leftmost X-Forwarded-For hop, then the socket address.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type bucket struct {
	hits    int
	resetAt time.Time
}

// RateLimiter counts hits per key in fixed windows, in memory. State is
// per-process; a restart clears it.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket)}
}

// Allow reports whether the key is under limit for the current window. When
// denied, retryAfter says how long until the window resets.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{hits: 1, resetAt: now.Add(window)}
		return true, 0
	}
	b.hits++
	if b.hits <= limit {
		return true, 0
	}
	return false, b.resetAt.Sub(now)
}

// Sweep drops buckets whose window has passed. Run it periodically or the
// map grows with every distinct key ever seen.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
}

// RateLimit returns middleware that rate-limits requests by a key function.
// Rejections carry a Retry-After header so well-behaved clients back off.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.Allow(keyFunc(r), limit, window)
			if !allowed {
				seconds := int(retryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				jsonError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
