package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jobhouse/server/internal/api/render"
	"github.com/jobhouse/server/internal/auth"
	"github.com/jobhouse/server/internal/config"
)

type RateLimitTier string

const (
	TierPublic        RateLimitTier = "public"
	TierAuthenticated RateLimitTier = "authenticated"
	TierAdmin         RateLimitTier = "admin"
	// TierLogin guards credential endpoints: a small burst refilled slowly.
	TierLogin RateLimitTier = "login"
)

const (
	loginWindow  = 15 * time.Minute
	entryTTL     = 15 * time.Minute
	cleanupEvery = 5 * time.Minute
)

// RateLimiter holds one token bucket per tier and client. It is the only
// in-process state shared across requests.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limits   map[RateLimitTier]int
	trusted  []*net.IPNet
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter starts the background sweep of idle entries; call Stop to
// end it.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limits: map[RateLimitTier]int{
			TierPublic:        cfg.PublicPerMinute,
			TierAuthenticated: cfg.AuthenticatedPerMinute,
			TierAdmin:         cfg.AdminPerMinute,
			TierLogin:         cfg.LoginPer15Minutes,
		},
		trusted: parseCIDRs(cfg.TrustedProxyCIDRs),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Tier limits requests under the given tier. Authenticated requests are
// keyed by user id, everything else by client IP.
func (rl *RateLimiter) Tier(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r, rl.trusted)
			if caller, ok := auth.CallerFrom(r.Context()); ok && tier != TierLogin {
				key = "user:" + caller.UserID
			}
			limiter := rl.limiter(tier, key)
			if limiter != nil && !limiter.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter(tier, rl.limits[tier]).Seconds())))
				render.Error(w, r, http.StatusTooManyRequests, render.MsgTooMany, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := rl.limits[tier]
	if limit <= 0 {
		return nil
	}
	lookup := string(tier) + ":" + key

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.limiters[lookup]; ok {
		entry.lastSeen = rl.now()
		return entry.limiter
	}
	limiter := rate.NewLimiter(rate.Every(retryAfter(tier, limit)), limit)
	rl.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: rl.now()}
	return limiter
}

// retryAfter is the refill interval of one token.
func retryAfter(tier RateLimitTier, limit int) time.Duration {
	if limit <= 0 {
		return time.Minute
	}
	if tier == TierLogin {
		return loginWindow / time.Duration(limit)
	}
	return time.Minute / time.Duration(limit)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-entryTTL)
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// clientKey trusts X-Forwarded-For and X-Real-IP only when the direct peer
// is a configured proxy.
func clientKey(r *http.Request, trusted []*net.IPNet) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}
	if !isTrusted(remoteIP, trusted) {
		return remoteIP
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return remoteIP
}

func isTrusted(ip string, trusted []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range trusted {
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseCIDRs(values []string) []*net.IPNet {
	var out []*net.IPNet
	for _, v := range values {
		if _, cidr, err := net.ParseCIDR(strings.TrimSpace(v)); err == nil {
			out = append(out, cidr)
		}
	}
	return out
}
