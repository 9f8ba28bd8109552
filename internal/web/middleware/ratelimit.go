package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/JonMunkholm/jsonbi/internal/core"
)

// ErrRateLimited is reported to clients that exceed their request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// staleAfter is how long an idle client's limiter is kept.
const staleAfter = 10 * time.Minute

// RateLimitConfig holds configuration for the rate limiter middleware.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per client.
	RequestsPerMinute int
	// Burst is the maximum number of requests allowed at once. Defaults to
	// RequestsPerMinute.
	Burst int
}

// sweepInterval is how often idle client limiters are dropped.
const sweepInterval = 5 * time.Minute

// clientLimiter tracks a per-client rate limiter and when it was last seen.
type clientLimiter struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

func (c *clientLimiter) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *clientLimiter) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}

// clientSet holds one limiter per client address.
type clientSet struct {
	clients sync.Map // map[string]*clientLimiter
	every   rate.Limit
	burst   int
}

func (c *clientSet) limiter(ip string, now time.Time) *rate.Limiter {
	if v, ok := c.clients.Load(ip); ok {
		cl := v.(*clientLimiter)
		cl.touch(now)
		return cl.limiter
	}
	v, _ := c.clients.LoadOrStore(ip, &clientLimiter{
		limiter:  rate.NewLimiter(c.every, c.burst),
		lastSeen: now,
	})
	return v.(*clientLimiter).limiter
}

// sweep drops clients idle for longer than staleAfter and returns how many
// were dropped.
func (c *clientSet) sweep(now time.Time) int {
	removed := 0
	c.clients.Range(func(key, value any) bool {
		if value.(*clientLimiter).idleSince(now) > staleAfter {
			c.clients.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// run sweeps every interval until ctx is done.
func (c *clientSet) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

// RateLimiter returns middleware that enforces a per-client token bucket.
// Requests over the limit get 429 with a Retry-After header. A non-positive
// RequestsPerMinute disables limiting. Idle clients are swept in the
// background until ctx is done.
func RateLimiter(ctx context.Context, cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}

	set := &clientSet{
		every: rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst: cfg.Burst,
	}
	go set.run(ctx, sweepInterval)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := set.limiter(clientIP(r), time.Now())

			reservation := limiter.Reserve()
			if !reservation.OK() {
				writeTooManyRequests(w, r, 0)
				return
			}
			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				writeTooManyRequests(w, r, int(delay.Seconds())+1)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the request's client address without the port.
// TrustedRealIP has already replaced RemoteAddr for trusted proxies.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}

	if !strings.HasPrefix(r.URL.Path, "/api/") && !strings.Contains(r.Header.Get("Accept"), "application/json") {
		http.Error(w, core.FormatUserError(ErrRateLimited), http.StatusTooManyRequests)
		return
	}

	msg := core.MapError(ErrRateLimited)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   ErrRateLimited.Error(),
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	})
}
