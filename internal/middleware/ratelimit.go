package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterSweepThreshold = 1024

// RateLimit applies a per-client-IP token bucket of limit requests per
// window, with the full limit available as burst. Rejections carry the
// given error token. A non-positive limit disables the middleware.
func RateLimit(limit int, window time.Duration, errToken string) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	l := &ipRateLimiter{
		rate:    rate.Every(window / time.Duration(limit)),
		burst:   limit,
		clients: make(map[string]*rateLimitClient),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": errToken})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipRateLimiter struct {
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	clients map[string]*rateLimitClient
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		c = &rateLimitClient{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = time.Now()

	if len(l.clients) > limiterSweepThreshold {
		l.sweep()
	}
	return c.limiter.Allow()
}

// sweep drops clients idle for over an hour. Caller holds the lock.
func (l *ipRateLimiter) sweep() {
	cutoff := time.Now().Add(-time.Hour)
	for ip, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// clientIP prefers the first X-Forwarded-For hop so limits survive a
// reverse proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
