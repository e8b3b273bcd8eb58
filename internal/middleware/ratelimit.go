// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/session"
)

var errRateLimited = errors.New("rate limited")

type RateLimitConfig struct {
	Limit   redis_rate.Limit
	KeyFunc func(*http.Request) string
	// FailOpen admits requests when neither Redis nor the local fallback
	// can decide.
	FailOpen bool
}

// RateLimiter enforces a GCRA budget in Redis. While Redis is unreachable
// each instance falls back to an in-process token bucket per key.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(10 * time.Minute),
		config:   cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.config.KeyFunc(r)

		res, err := rl.allow(r.Context(), key)
		if err != nil {
			if rl.config.FailOpen {
				slog.WarnContext(r.Context(), "rate limiter unavailable, admitting",
					"error", err,
					"key", key,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSONError(w, core.NewAppError(
				err, "rate limiter unavailable",
				http.StatusServiceUnavailable, "RATE_LIMITER_UNAVAILABLE",
			))
			return
		}

		writeRateLimitHeaders(w, res)

		if res.Allowed == 0 {
			retry := max(int(res.RetryAfter.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			core.JSONError(w, core.NewAppError(
				errRateLimited,
				fmt.Sprintf("rate limit exceeded, retry after %d seconds", retry),
				http.StatusTooManyRequests, "RATE_LIMITED",
			))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(
	ctx context.Context,
	key string,
) (*redis_rate.Result, error) {
	res, err := rl.limiter.Allow(ctx, key, rl.config.Limit)
	if err == nil {
		return res, nil
	}
	return rl.fallback.allow(key, rl.config.Limit), nil
}

// KeyByIP trusts the last X-Forwarded-For hop, which is the one appended by
// the proxy in front of the service.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return "ratelimit:ip:" + strings.TrimSpace(hops[len(hops)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ratelimit:ip:" + xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ratelimit:ip:" + ip
}

// KeyByUser keys on the session's username, falling back to the client IP
// for anonymous requests. It only sees a session when mounted after
// Authenticator.
func KeyByUser(r *http.Request) string {
	if sess := session.FromContext(r.Context()); sess != nil {
		return "ratelimit:user:" + sess.Username
	}
	return KeyByIP(r)
}

// KeyByIPAndEndpoint gives each sensitive endpoint its own per-IP budget.
func KeyByIPAndEndpoint(r *http.Request) string {
	return KeyByIP(r) + ":endpoint:" + normalizeEndpoint(r.URL.Path)
}

// normalizeEndpoint collapses identifiers so /employees/E1 and
// /employees/E2 share one budget.
func normalizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if isIdentifier(part) {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isIdentifier(s string) bool {
	switch {
	case len(s) == 36 && s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-':
		return true
	case isNumeric(s):
		return true
	case len(s) >= 2 && s[0] == 'E':
		return isNumeric(strings.TrimLeft(s[1:], "MP-"))
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// writeRateLimitHeaders follows the IETF RateLimit header draft.
func writeRateLimitHeaders(w http.ResponseWriter, res *redis_rate.Result) {
	h := w.Header()
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d",
		res.Limit.Rate, int(res.Limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d",
		res.Remaining, int(res.ResetAfter.Seconds())))
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter is the per-process fallback. Idle buckets are swept on
// access once ttl has passed since the previous sweep.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	ttl       time.Duration
	lastSweep time.Time
}

func newLocalLimiter(ttl time.Duration) *localLimiter {
	return &localLimiter{
		buckets:   make(map[string]*bucket),
		ttl:       ttl,
		lastSweep: time.Now(),
	}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSecond)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.ttl {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(b.limiter.TokensAt(now))-1, 0),
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if b.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.Remaining = 0
		res.RetryAfter = interval
	}
	return res
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: time.Minute,
	}
}
