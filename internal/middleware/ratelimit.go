package middleware

import (
	"net/http"
	"sync"
	"time"
)

type window struct {
	count   int
	started time.Time
}

// RateLimiter is a fixed-window per-IP limiter. Applied to the session-start
// route, which fans out into paid completion calls.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
	}

	go rl.sweep()

	return rl
}

// sweep drops windows that have fully expired so idle IPs don't accumulate.
func (rl *RateLimiter) sweep() {
	for {
		time.Sleep(rl.period)
		rl.mu.Lock()
		for ip, w := range rl.windows {
			if time.Since(w.started) > rl.period {
				delete(rl.windows, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[ip]
	if !ok || time.Since(w.started) > rl.period {
		rl.windows[ip] = &window{count: 1, started: time.Now()}
		return true
	}

	w.count++
	return w.count <= rl.limit
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many session starts. Wait a minute and try again.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
