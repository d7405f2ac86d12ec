package api

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// requestLogger logs one line per request. The wrapped writer still
// implements http.Flusher, which the SSE handlers rely on.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// RateLimit configures the per-client token bucket on analysis endpoints.
// A non-positive RPS disables limiting.
type RateLimit struct {
	RPS   float64
	Burst int
}

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterPruneAbove = 1024
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientLimiter struct {
	cfg      RateLimit
	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

func newClientLimiter(cfg RateLimit) *clientLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &clientLimiter{cfg: cfg, limiters: make(map[string]*limiterEntry)}
}

func (c *clientLimiter) allow(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.limiters[key]
	if !ok {
		if len(c.limiters) >= limiterPruneAbove {
			for k, old := range c.limiters {
				if now.Sub(old.lastSeen) > limiterIdleTTL {
					delete(c.limiters, k)
				}
			}
		}
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(c.cfg.RPS), c.cfg.Burst)}
		c.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (c *clientLimiter) middleware(next http.Handler) http.Handler {
	if c.cfg.RPS <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(clientKey(r), time.Now()) {
			w.Header().Set("Retry-After", "1")
			httpError(w, http.StatusTooManyRequests, "rate limit exceeded, retry shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
