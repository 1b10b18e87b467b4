package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipLimiter keeps one token bucket per client IP and forgets clients idle
// for longer than ttl.
type ipLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
	swept    time.Time
}

func newIPLimiter(limit rate.Limit, burst int, ttl time.Duration) *ipLimiter {
	return &ipLimiter{
		limit:    limit,
		burst:    burst,
		ttl:      ttl,
		visitors: make(map[string]*visitor),
		swept:    time.Now(),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	v := l.visitors[ip]
	if v == nil {
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.seen = now
	if now.Sub(l.swept) > l.ttl {
		for k, o := range l.visitors {
			if now.Sub(o.seen) > l.ttl {
				delete(l.visitors, k)
			}
		}
		l.swept = now
	}
	l.mu.Unlock()
	return v.lim.AllowN(now, 1)
}

// RateLimit limits requests per client IP. RateLimit(120, 60) allows
// 120 req/min with a burst of 60; reqPerMin <= 0 disables it.
func RateLimit(reqPerMin int, burst int) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	l := newIPLimiter(rate.Limit(float64(reqPerMin)/60.0), burst, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP honours the first X-Forwarded-For hop when behind a proxy.
func clientIP(r *http.Request) string {
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
