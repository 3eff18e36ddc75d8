package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-client bucket is kept.
const idleLimiterTTL = 3 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*clientBucket
	sweptAt time.Time
	nowFunc func() time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientBucket),
		nowFunc: time.Now,
	}
}

// Allow takes a token for ip.
func (l *clientLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if now.Sub(l.sweptAt) > idleLimiterTTL {
		for k, b := range l.clients {
			if now.Sub(b.lastSeen) > idleLimiterTTL {
				delete(l.clients, k)
			}
		}
		l.sweptAt = now
	}

	b, ok := l.clients[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the client's budget with 429.
func (l *clientLimiter) Middleware(ip func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(ip(r)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the caller's address. The socket peer is authoritative;
// realIPHeader, when set, names an upstream proxy header whose first valid
// IP wins. Only set it behind a proxy that overwrites that header.
func clientIP(r *http.Request, realIPHeader string) string {
	if realIPHeader != "" {
		if ip := headerIP(realIPHeader, r.Header.Get(realIPHeader)); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// headerIP extracts the first parseable IP from a proxy header value.
func headerIP(name, raw string) string {
	if raw == "" {
		return ""
	}
	if strings.EqualFold(name, "Forwarded") {
		i := strings.Index(strings.ToLower(raw), "for=")
		if i < 0 {
			return ""
		}
		raw = raw[i+4:]
		if p := strings.IndexAny(raw, ";,"); p >= 0 {
			raw = raw[:p]
		}
	}
	for part := range strings.SplitSeq(raw, ",") {
		v := strings.Trim(strings.TrimSpace(part), `"`)
		if host, _, err := net.SplitHostPort(v); err == nil {
			v = host
		}
		v = strings.Trim(v, "[]")
		if net.ParseIP(v) != nil {
			return v
		}
	}
	return ""
}
