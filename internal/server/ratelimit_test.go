package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote addr without port", remote: "192.0.2.9", want: "192.0.2.9"},
		{name: "untrusted forwarded for ignored", headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "untrusted real ip ignored", headers: map[string]string{"X-Real-IP": "198.51.100.3", "CF-Connecting-IP": "198.51.100.2"}, remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "forwarded for first hop", header: "X-Forwarded-For", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "forwarded for skips garbage", header: "X-Forwarded-For", headers: map[string]string{"X-Forwarded-For": "unknown, 203.0.113.8"}, want: "203.0.113.8"},
		{name: "cloudflare", header: "CF-Connecting-IP", headers: map[string]string{"CF-Connecting-IP": "198.51.100.2"}, want: "198.51.100.2"},
		{name: "configured header only", header: "X-Real-IP", headers: map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.3"}, want: "198.51.100.3"},
		{name: "rfc 7239", header: "Forwarded", headers: map[string]string{"Forwarded": `for="192.0.2.60:4711";proto=http`}, want: "192.0.2.60"},
		{name: "rfc 7239 ipv6", header: "Forwarded", headers: map[string]string{"Forwarded": `For="[2001:db8::1]:4711"`}, want: "2001:db8::1"},
		{name: "missing header falls back", header: "X-Real-IP", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "invalid header falls back", header: "X-Real-IP", headers: map[string]string{"X-Real-IP": "not-an-ip"}, remote: "192.0.2.1:1234", want: "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.remote != "" {
				req.RemoteAddr = tt.remote
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.header))
		})
	}
}

func TestRateLimitMiddleware_IgnoresSpoofedHeaders(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 0.001, RateBurst: 1}, nil, nil)

	allowed := 0
	for i := range 20 {
		req := httptest.NewRequest(http.MethodGet, "/api/notifications/unread-count", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestRateLimitMiddleware_TrustsConfiguredHeader(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 0.001, RateBurst: 1, RealIPHeader: "X-Forwarded-For"}, nil, nil)

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/notifications/unread-count", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, ip)
	}
}

func TestClientLimiter_PerClientBuckets(t *testing.T) {
	l := newClientLimiter(1, 2)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestClientLimiter_EvictsIdleClients(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	require.Len(t, l.clients, 2)

	now = now.Add(idleLimiterTTL + time.Second)
	l.Allow("c")
	assert.Len(t, l.clients, 1)
}

func TestRateLimitMiddleware(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 0.001, RateBurst: 1}, nil, nil)

	rec := f.do(t, http.MethodGet, "/api/notifications/unread-count", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/notifications/unread-count", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
