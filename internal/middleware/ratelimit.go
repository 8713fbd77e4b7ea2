package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL = 10 * time.Minute
	maxLimiters    = 10000
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware limits requests per client IP with a token bucket each.
// Buckets idle for limiterIdleTTL are dropped, and at most maxLimiters are kept.
type RateLimitMiddleware struct {
	limit     rate.Limit
	burst     int
	limiters  map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
	mu        sync.Mutex
}

// NewRateLimitMiddleware allows perMinute requests per client IP, with bursts
// of up to perMinute/4 (at least 1).
func NewRateLimitMiddleware(perMinute int) *RateLimitMiddleware {
	burst := perMinute / 4
	if burst < 1 {
		burst = 1
	}
	return &RateLimitMiddleware{
		limit:    rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
		now:      time.Now,
	}
}

func (m *RateLimitMiddleware) limiter(clientIP string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= limiterIdleTTL {
		m.evictIdle(now)
		m.lastSweep = now
	}

	cl, ok := m.limiters[clientIP]
	if !ok {
		if len(m.limiters) >= maxLimiters {
			m.evictIdle(now)
		}
		if len(m.limiters) >= maxLimiters {
			m.evictOldest()
		}
		cl = &clientLimiter{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.limiters[clientIP] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (m *RateLimitMiddleware) evictIdle(now time.Time) {
	for ip, cl := range m.limiters {
		if now.Sub(cl.lastSeen) >= limiterIdleTTL {
			delete(m.limiters, ip)
		}
	}
}

func (m *RateLimitMiddleware) evictOldest() {
	var (
		oldestIP string
		oldest   time.Time
	)
	for ip, cl := range m.limiters {
		if oldestIP == "" || cl.lastSeen.Before(oldest) {
			oldestIP, oldest = ip, cl.lastSeen
		}
	}
	delete(m.limiters, oldestIP)
}

// RateLimit rejects requests over the limit with 429.
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter(getClientIP(r)).Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
