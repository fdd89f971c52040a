package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/accounts/internal/config"
)

// Limiter bounds credential-submission attempts per (source, route) key
// using a sliding window of attempt timestamps.  It is an explicitly owned
// instance injected into the middleware, never ambient global state, and is
// deliberately single-process: each instance enforces its own window.
type Limiter struct {
	mu       sync.Mutex
	cfg      config.RateLimitConfig
	attempts map[string][]time.Time
	now      func() time.Time // replaceable clock, used by tests
}

// NewLimiter builds a limiter from the loaded configuration.
func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		cfg:      cfg,
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether an attempt under the given key may proceed.  An
// attempt is allowed while fewer than the configured number of timestamps
// fall inside the trailing window.  Denied attempts are not recorded, so a
// blocked client does not push its own recovery further out.  The critical
// section is a bounded slice scan plus an append, kept tiny on purpose.
func (l *Limiter) Allow(key string) (bool, int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	recent := l.attempts[key][:0:0]
	for _, t := range l.attempts[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.cfg.Attempts {
		l.attempts[key] = recent
		// The window frees a slot once the oldest in-window attempt ages out.
		retry := recent[0].Add(l.cfg.Window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return false, 0, retry
	}

	recent = append(recent, now)
	l.attempts[key] = recent
	return true, l.cfg.Attempts - len(recent), 0
}

// Sweep removes keys whose attempts have all aged out of the window.  It
// exists only to bound memory; correctness never depends on it because
// Allow filters out-of-window entries at check time.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.Window)
	for key, ts := range l.attempts {
		stale := true
		for _, t := range ts {
			if t.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(l.attempts, key)
		}
	}
}

// StartCleanup runs Sweep on the configured interval until stop is closed.
func (l *Limiter) StartCleanup(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(l.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// RateLimit guards a route with the given limiter.  The key combines the
// client IP with the method and route so that abuse of one endpoint does
// not lock a source out of the others.
func RateLimit(l *Limiter) echo.MiddlewareFunc {
	if l == nil || !l.Config().Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return func(c echo.Context) error { return next(c) } }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key := ip + ":" + c.Request().Method + " " + c.Path()

			allowed, remaining, retry := l.Allow(key)

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Config().Attempts))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 0 {
					secs = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				if l.Config().Debug {
					c.Logger().Infof("[ratelimit] block key=%s retry=%ds", key, secs)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

// Config exposes the limiter configuration to the middleware wrapper.
func (l *Limiter) Config() config.RateLimitConfig { return l.cfg }
