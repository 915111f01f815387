package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	svcerrors "github.com/R3E-Network/microblog/internal/errors"
	"github.com/R3E-Network/microblog/internal/httputil"
	"github.com/R3E-Network/microblog/pkg/logger"
)

// maxKeysPerIP bounds how many api-key buckets one client IP may hold.
// Further keys from that IP share the IP bucket.
const maxKeysPerIP = 16

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	ip       string
	keyed    bool
}

// RateLimiter throttles callers per client IP and api key. Keys are not
// authenticated at this layer, so each IP gets at most maxKeysPerIP keyed
// buckets.
type RateLimiter struct {
	limiters  map[string]*limiterEntry
	keysPerIP map[string]int
	mu        sync.Mutex
	rps       int
	burst     int
	logger    *logger.Logger
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter. A non-positive rps disables
// limiting.
func NewRateLimiter(requestsPerSecond int, burst int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	if burst <= 0 {
		burst = requestsPerSecond
	}
	return &RateLimiter{
		limiters:  make(map[string]*limiterEntry),
		keysPerIP: make(map[string]int),
		rps:       requestsPerSecond,
		burst:     burst,
		logger:    log,
		now:       time.Now,
	}
}

// Enabled reports whether requests are throttled at all.
func (rl *RateLimiter) Enabled() bool { return rl.rps > 0 }

func (rl *RateLimiter) getLimiter(ip, apiKey string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := "ip:" + ip
	keyed := false
	if apiKey != "" {
		candidate := key + "|key:" + apiKey
		if _, exists := rl.limiters[candidate]; exists || rl.keysPerIP[ip] < maxKeysPerIP {
			key, keyed = candidate, true
		}
	}

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst),
			ip:      ip,
			keyed:   keyed,
		}
		rl.limiters[key] = entry
		if keyed {
			rl.keysPerIP[ip]++
		}
	}
	entry.lastSeen = rl.now()
	return entry.limiter
}

// Handler returns the rate limiting middleware handler
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	if !rl.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.getLimiter(clientIP(r), r.Header.Get(APIKeyHeader)).Allow() {
			rl.logger.WithField("trace_id", TraceID(r.Context())).
				WithField("path", r.URL.Path).
				WithField("method", r.Method).
				Warn("rate limit exceeded")
			httputil.WriteError(w, svcerrors.RateLimitExceeded(rl.rps, "1s"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup drops limiters idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			if entry.keyed {
				rl.keysPerIP[entry.ip]--
				if rl.keysPerIP[entry.ip] <= 0 {
					delete(rl.keysPerIP, entry.ip)
				}
			}
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	if !rl.Enabled() || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(maxIdle)
			}
		}
	}()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
