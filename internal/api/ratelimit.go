package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// tenantLimiter hands out one token bucket per tenant. A nil limiter
// admits everything.
type tenantLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func newTenantLimiter(rps float64, burst int) *tenantLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &tenantLimiter{rps: rate.Limit(rps), burst: burst, buckets: map[string]*rate.Limiter{}}
}

func (l *tenantLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	lim := l.buckets[key]
	if lim == nil {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// RateLimit rejects tenants exceeding the configured request rate. Probe
// and metrics endpoints are exempt.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}
		if !s.limiter.allow(s.getPrincipal(r).Tenant) {
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "request rate exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
