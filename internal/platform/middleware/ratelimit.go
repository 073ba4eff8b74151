package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/carebook/carebook/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// Idle callers are dropped from the limiter map so it does not grow without
// bound under churny traffic.
const (
	limiterIdleTTL = 3 * time.Minute
	evictionPeriod = time.Minute
)

// caller tracks one caller's limiter and the last time it was consulted.
type caller struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterStore hands out a rate.Limiter per caller key.
type limiterStore struct {
	mu      sync.Mutex
	callers map[string]*caller
	rps     rate.Limit
	burst   int
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	return &limiterStore{
		callers: make(map[string]*caller),
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.BurstSize,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.callers[key]
	if !ok {
		c = &caller{lim: rate.NewLimiter(s.rps, s.burst)}
		s.callers[key] = c
	}
	c.seen = time.Now()
	return c.lim
}

// evict drops callers that have been idle since before the cutoff.
func (s *limiterStore) evict(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, c := range s.callers {
		if c.seen.Before(cutoff) {
			delete(s.callers, key)
		}
	}
}

func (s *limiterStore) runEviction(period time.Duration) {
	for range time.Tick(period) {
		s.evict(time.Now().Add(-limiterIdleTTL))
	}
}

// RateLimit limits request rates per caller. Authenticated requests are keyed
// by user ID so one user's burst never starves another behind the same NAT;
// anonymous requests fall back to tenant plus client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)
	go store.runEviction(evictionPeriod)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !store.get(callerKey(c)).Allow() {
				c.Response().Header().Set("Retry-After", "1")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func callerKey(c echo.Context) string {
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		return "u:" + uid
	}
	tenantID, _ := c.Get("jwt_tenant_id").(string)
	return "a:" + tenantID + ":" + c.RealIP()
}
