// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func hit(h http.Handler, remoteAddr, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterRedis(t *testing.T) {
	_, rdb := newTestRedis(t)

	var limited []string
	rl := NewRateLimiter(rdb, RateLimitConfig{
		Name:      "credentials",
		Limit:     PerMinute(2, 2),
		FailOpen:  true,
		OnLimited: func(name string) { limited = append(limited, name) },
	})
	h := rl.Handler(okHandler())

	for i := range 2 {
		rec := hit(h, "10.0.0.1:1234", "/api/auth/login")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "2", rec.Header().Get("RateLimit-Limit"))
	}

	rec := hit(h, "10.0.0.1:1234", "/api/auth/login")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, CodeRateLimited, errorCode(t, rec))
	assert.Equal(t, []string{"credentials"}, limited)

	rec = hit(h, "10.0.0.2:1234", "/api/auth/login")
	assert.Equal(t, http.StatusOK, rec.Code, "other addresses have their own budget")
}

func TestRateLimiterFallsBackWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	rl := NewRateLimiter(rdb, RateLimitConfig{
		Limit:    PerMinute(1, 1),
		FailOpen: true,
	})
	h := rl.Handler(okHandler())

	rec := hit(h, "10.0.0.3:1234", "/api/auth/register")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = hit(h, "10.0.0.3:1234", "/api/auth/register")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiterFailClosed(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	rl := NewRateLimiter(rdb, RateLimitConfig{
		Limit: PerMinute(5, 5),
	})

	rec := hit(rl.Handler(okHandler()), "10.0.0.6:1234", "/api/auth/login")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeServiceUnavailable, errorCode(t, rec))
	assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
	assert.Zero(t, rl.local.Len(), "a fail-closed limiter never uses local buckets")
}

func TestRateLimiterFailOpen(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	rl := NewRateLimiter(rdb, RateLimitConfig{
		Limit:    PerMinute(0, 0),
		FailOpen: true,
	})

	rec := hit(rl.Handler(okHandler()), "10.0.0.7:1234", "/api/auth/login")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterBypass(t *testing.T) {
	_, rdb := newTestRedis(t)

	rl := NewRateLimiter(rdb, RateLimitConfig{
		Limit: PerMinute(1, 1),
		Skip:  func(r *http.Request) bool { return r.URL.Path == "/healthz" },
	})
	h := rl.Handler(okHandler())

	for range 5 {
		rec := hit(h, "10.0.0.4:1234", "/healthz")
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestKeyByIPAndPathSeparatesEndpoints(t *testing.T) {
	_, rdb := newTestRedis(t)

	rl := NewRateLimiter(rdb, RateLimitConfig{
		Limit:   PerMinute(1, 1),
		KeyFunc: TrustedProxies(nil).KeyByIPAndPath,
	})
	h := rl.Handler(okHandler())

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.5:1", "/api/auth/login").Code)
	require.Equal(t, http.StatusOK, hit(h, "10.0.0.5:1", "/api/auth/register").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.5:1", "/api/auth/login").Code)
}

func TestParseTrustedProxies(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.10", "::1"})
	require.NoError(t, err)
	require.Len(t, proxies, 3)

	assert.True(t, proxies.trusts("10.20.30.40"))
	assert.True(t, proxies.trusts("192.0.2.10"))
	assert.True(t, proxies.trusts("::ffff:192.0.2.10"))
	assert.True(t, proxies.trusts("::1"))
	assert.False(t, proxies.trusts("192.0.2.11"))
	assert.False(t, proxies.trusts("not-an-ip"))

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		proxies    TrustedProxies
		remoteAddr string
		forwarded  string
		realIP     string
		want       string
	}{
		{"direct peer", proxies, "192.0.2.1:5555", "", "", "192.0.2.1"},
		{"untrusted peer forging forwarded", proxies, "192.0.2.1:5555", "203.0.113.9", "", "192.0.2.1"},
		{"untrusted peer forging real ip", proxies, "192.0.2.1:5555", "", "198.51.100.7", "192.0.2.1"},
		{"no proxies configured", nil, "10.0.0.2:80", "203.0.113.9", "198.51.100.7", "10.0.0.2"},
		{"trusted proxy real ip", proxies, "10.0.0.2:80", "", "198.51.100.7", "198.51.100.7"},
		{"trusted proxy forwarded", proxies, "10.0.0.2:80", "203.0.113.9", "198.51.100.7", "203.0.113.9"},
		{"spoofed leading hop ignored", proxies, "10.0.0.2:80", "1.2.3.4, 203.0.113.9", "", "203.0.113.9"},
		{"proxy chain", proxies, "10.0.0.2:80", "203.0.113.9, 10.1.1.1", "", "203.0.113.9"},
		{"only proxies in chain", proxies, "10.0.0.2:80", "10.1.1.1", "", "10.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.proxies.clientIP(req))
		})
	}
}

func TestForwardedHeaderCannotDodgeLimit(t *testing.T) {
	_, rdb := newTestRedis(t)

	rl := NewRateLimiter(rdb, RateLimitConfig{
		Name:  "credentials",
		Limit: PerMinute(1, 1),
	})
	h := rl.Handler(okHandler())

	for i, fwd := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.50:4000"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		want := http.StatusOK
		if i > 0 {
			want = http.StatusTooManyRequests
		}
		assert.Equal(t, want, rec.Code, "forwarded %s", fwd)
	}
}
