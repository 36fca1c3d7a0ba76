package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/R3E-Network/person_service/pkg/logger"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client address.
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	log      *logger.Logger
	cron     *cron.Cron
}

// NewRateLimiter creates a new rate limiter. Limiters idle for longer than
// idleTTL are dropped by Cleanup.
func NewRateLimiter(requestsPerSecond float64, burst int, idleTTL time.Duration, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	if burst <= 0 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
		log:      log,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = rl.now()
	return entry.limiter
}

// Handler returns the rate limiting middleware handler
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.getLimiter(key).Allow() {
			rl.log.WithFields(map[string]interface{}{
				"client":   key,
				"path":     r.URL.Path,
				"method":   r.Method,
				"trace_id": TraceID(r.Context()),
			}).Warn("rate limit exceeded")

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup removes limiters that have been idle longer than the TTL and
// returns how many were dropped.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// StartCleanup schedules Cleanup on a cron spec such as "@every 1m".
func (rl *RateLimiter) StartCleanup(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if n := rl.Cleanup(); n > 0 {
			rl.log.WithField("removed", n).Debug("rate limiters cleaned up")
		}
	}); err != nil {
		return err
	}
	rl.mu.Lock()
	rl.cron = c
	rl.mu.Unlock()
	c.Start()
	return nil
}

// StopCleanup halts the cleanup schedule, if running.
func (rl *RateLimiter) StopCleanup() {
	rl.mu.Lock()
	c := rl.cron
	rl.cron = nil
	rl.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
