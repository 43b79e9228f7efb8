// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/angelamos/tutoring-portal/internal/core"
)

const (
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	defaultLocalCapacity = 10_000
	localEntryTTL        = 10 * time.Minute
)

type RateLimitConfig struct {
	// Name prefixes storage keys and labels rejections, e.g. "global".
	Name    string
	Limit   redis_rate.Limit
	KeyFunc func(*http.Request) string
	Skip    func(*http.Request) bool
	// FailOpen keeps serving while Redis is unreachable, falling back to
	// per-process buckets. Without it requests get a 503.
	FailOpen      bool
	OnLimited     func(name string)
	LocalCapacity int
}

// RateLimiter enforces a GCRA budget per key in Redis. A fail-open limiter
// keeps its own token buckets while Redis is unreachable, so the effective
// limit is per replica until Redis returns.
type RateLimiter struct {
	redis  *redis_rate.Limiter
	local  *lru.LRU[string, *rate.Limiter]
	config RateLimitConfig
}

type decision struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
	resetAfter time.Duration
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = TrustedProxies(nil).KeyByIP
	}
	if cfg.LocalCapacity <= 0 {
		cfg.LocalCapacity = defaultLocalCapacity
	}

	return &RateLimiter{
		redis:  redis_rate.NewLimiter(rdb),
		local:  lru.NewLRU[string, *rate.Limiter](cfg.LocalCapacity, nil, localEntryTTL),
		config: cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.Skip != nil && rl.config.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := "rl:" + rl.config.Name + ":" + rl.config.KeyFunc(r)

		d, err := rl.decide(r.Context(), key)
		if err != nil {
			if rl.config.FailOpen {
				slog.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					"limiter", rl.config.Name,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSONError(w, core.NewAppError(
				err,
				"Service temporarily unavailable",
				http.StatusServiceUnavailable,
				CodeServiceUnavailable,
			))
			return
		}

		rl.writeHeaders(w, d)

		if !d.allowed {
			if rl.config.OnLimited != nil {
				rl.config.OnLimited(rl.config.Name)
			}
			rejectTooMany(w, d.retryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) decide(ctx context.Context, key string) (decision, error) {
	res, err := rl.redis.Allow(ctx, key, rl.config.Limit)
	if err == nil {
		return decision{
			allowed:    res.Allowed > 0,
			remaining:  res.Remaining,
			retryAfter: res.RetryAfter,
			resetAfter: res.ResetAfter,
		}, nil
	}

	if !rl.config.FailOpen {
		return decision{}, fmt.Errorf("rate limit %q: %w", rl.config.Name, err)
	}

	slog.DebugContext(ctx, "redis rate limit failed, using local buckets",
		"limiter", rl.config.Name,
		"error", err,
	)
	return rl.decideLocally(key)
}

func (rl *RateLimiter) decideLocally(key string) (decision, error) {
	limit := rl.config.Limit
	if limit.Rate <= 0 || limit.Period <= 0 {
		return decision{}, fmt.Errorf("rate limit %q: invalid limit %+v", rl.config.Name, limit)
	}

	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	refill := time.Duration(float64(time.Second) / perSecond)

	bucket, ok := rl.local.Get(key)
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(perSecond), max(limit.Burst, 1))
		rl.local.Add(key, bucket)
	}

	d := decision{
		allowed:    bucket.Allow(),
		resetAfter: refill,
	}
	d.remaining = max(int(math.Floor(bucket.Tokens())), 0)
	if !d.allowed {
		d.retryAfter = refill
	}

	return d, nil
}

func (rl *RateLimiter) writeHeaders(w http.ResponseWriter, d decision) {
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.Itoa(rl.config.Limit.Rate))
	h.Set("RateLimit-Remaining", strconv.Itoa(d.remaining))
	h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(d.resetAfter)))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d",
		rl.config.Limit.Rate, int(rl.config.Limit.Period.Seconds())))
}

func rejectTooMany(w http.ResponseWriter, retryAfter time.Duration) {
	secs := max(ceilSeconds(retryAfter), 1)
	w.Header().Set("Retry-After", strconv.Itoa(secs))

	core.JSONError(w, core.NewAppError(
		nil,
		fmt.Sprintf("Too many requests. Retry after %d seconds.", secs),
		http.StatusTooManyRequests,
		CodeRateLimited,
	))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// TrustedProxies lists the networks whose forwarding headers are believed.
// The zero value trusts nobody and keys on the socket address.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts CIDR ranges and bare addresses.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies, nil
}

func (p TrustedProxies) trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP starts from the socket peer and walks X-Forwarded-For right to
// left only while each hop is a trusted proxy. X-Real-IP is read only from a
// trusted peer that sent no X-Forwarded-For.
func (p TrustedProxies) clientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !p.trusts(peer) {
		return peer
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			client = hop
			if !p.trusts(hop) {
				break
			}
		}
		return client
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func (p TrustedProxies) KeyByIP(r *http.Request) string {
	return p.clientIP(r)
}

// KeyByIPAndPath gives each credential endpoint its own bucket per address,
// so login attempts do not share the budget of registrations.
func (p TrustedProxies) KeyByIPAndPath(r *http.Request) string {
	return p.clientIP(r) + ":" + r.URL.Path
}

func PerMinute(requests, burst int) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   requests,
		Burst:  burst,
		Period: time.Minute,
	}
}
