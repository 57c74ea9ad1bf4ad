package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	seen   time.Time
}

// ipLimiter keeps one token bucket per client key. Buckets idle longer
// than pruneAge get dropped so the map cannot grow without bound when
// many distinct clients hit the API.
type ipLimiter struct {
	perSec   float64
	capacity float64
	pruneAge time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

func newIPLimiter(perSec float64, burst int, pruneAge time.Duration) *ipLimiter {
	return &ipLimiter{
		perSec:   perSec,
		capacity: float64(burst),
		pruneAge: pruneAge,
		buckets:  make(map[string]*bucket),
	}
}

func (l *ipLimiter) take(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= l.pruneAge {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= l.pruneAge {
				delete(l.buckets, k)
			}
		}
		l.lastPrune = now
	}

	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: l.capacity, seen: now}
		l.buckets[key] = b
	}
	b.tokens += now.Sub(b.seen).Seconds() * l.perSec
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimit rate-limits by client IP with a token bucket per address.
// Example: RateLimit(120, 60) allows 120 req/min with a burst of 60.
// reqPerMin <= 0 disables the limiter entirely.
func RateLimit(reqPerMin, burst int) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lim := newIPLimiter(float64(reqPerMin)/60.0, burst, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.take(clientKey(r), time.Now()) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey prefers the first X-Forwarded-For hop (the API runs behind a
// proxy in the compose setup) and falls back to the socket address.
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
