package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter is an in-process fixed-window limiter keyed by client IP.
// Suitable for single-instance deployments; multi-instance setups should use
// RedisRateLimiter so the window is shared.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*clientWindow
}

type clientWindow struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		windows: map[string]*clientWindow{},
	}
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientKey(r), time.Now()) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cw, ok := rl.windows[key]
	if !ok || now.After(cw.resetAt) {
		rl.windows[key] = &clientWindow{count: 1, resetAt: now.Add(rl.window)}
		rl.pruneLocked(now)
		return true
	}
	if cw.count >= rl.limit {
		return false
	}
	cw.count++
	return true
}

// pruneLocked drops expired windows so the map does not grow with every
// distinct client ever seen. Called under rl.mu.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	if len(rl.windows) < 1024 {
		return
	}
	for key, cw := range rl.windows {
		if now.After(cw.resetAt) {
			delete(rl.windows, key)
		}
	}
}

func clientKey(r *http.Request) string {
	// Trust the first hop of X-Forwarded-For when present (set by the edge).
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
