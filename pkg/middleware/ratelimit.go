package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/environ"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitStrategy selects how clients are identified.
type RateLimitStrategy string

const (
	// StrategyIP keys buckets by client IP
	StrategyIP RateLimitStrategy = "ip"
	// StrategyUser keys buckets by the authenticated user, falling back to IP
	StrategyUser RateLimitStrategy = "user"
	// StrategyCustom keys buckets with KeyExtractor
	StrategyCustom RateLimitStrategy = "custom"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Unique identifier for this rate limit bucket
	// If multiple mounts share the same BucketName, they share the same rate limit
	BucketName string

	// Maximum number of requests allowed in the time window
	Limit int

	// Time window for the rate limit (e.g., 1 minute, 1 hour)
	Window time.Duration

	// Strategy for identifying clients
	Strategy RateLimitStrategy

	// Custom key extractor function (used when Strategy is StrategyCustom)
	KeyExtractor func(environ.Env) (string, error)

	// Runs when the rate limit is exceeded
	// If nil, a default 429 Too Many Requests response is sent
	ExceededHandler common.AppFunc
}

// RateLimiter defines the interface for rate limiting algorithms
type RateLimiter interface {
	// Allow checks if a request is allowed based on the key and rate limit config
	// Returns true if the request is allowed, false otherwise
	// Also returns the number of remaining requests and time until reset
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// window is one fixed counting window
type window struct {
	start  time.Time
	period time.Duration
	count  int
}

func (w *window) expired(now time.Time) bool {
	return now.Sub(w.start) >= w.period
}

// WindowRateLimiter counts requests per key in fixed windows. Expired windows
// are swept when a new window is opened, at most once per period.
type WindowRateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
	now       func() time.Time
}

// NewWindowRateLimiter creates a WindowRateLimiter
func NewWindowRateLimiter() *WindowRateLimiter {
	return &WindowRateLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow checks if a request is allowed based on the key and rate limit config
func (l *WindowRateLimiter) Allow(key string, limit int, period time.Duration) (bool, int, time.Duration) {
	if period <= 0 {
		period = time.Second
	}
	if limit <= 0 {
		limit = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= period {
		if !now.Before(l.nextSweep) {
			l.sweep(now)
			l.nextSweep = now.Add(period)
		}
		w = &window{start: now, period: period}
		l.windows[key] = w
	}
	reset := period - now.Sub(w.start)

	if w.count >= limit {
		return false, 0, reset
	}
	w.count++
	return true, limit - w.count, reset
}

// sweep deletes every expired window. Callers hold l.mu.
func (l *WindowRateLimiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if w.expired(now) {
			delete(l.windows, key)
		}
	}
}

// extractIP returns the client IP stored by ClientIPMiddleware, falling back
// to the host's REMOTE_ADDR
func extractIP(env environ.Env) string {
	if ip := ClientIP(env); ip != "" {
		return ip
	}
	return cleanIP(remoteAddr(env))
}

// RateLimit creates a middleware that enforces rate limits
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) common.Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			// Skip rate limiting if config is nil
			if config == nil {
				return next(env)
			}

			// Extract key based on strategy
			var key string
			switch config.Strategy {
			case StrategyUser:
				key = GetUserID(env)
				if key == "" {
					key = extractIP(env)
				}
			case StrategyCustom:
				if config.KeyExtractor == nil {
					key = extractIP(env)
					break
				}
				var err error
				key, err = config.KeyExtractor(env)
				if err != nil {
					logger.Error("Failed to extract rate limit key", LogFields(env, zap.Error(err))...)
					return WriteError(env, http.StatusInternalServerError, "Internal Server Error")
				}
			default:
				key = extractIP(env)
			}

			bucketKey := config.BucketName + ":" + key
			allowed, remaining, reset := limiter.Allow(bucketKey, config.Limit, config.Window)

			env.WithResponseHeaders(func(h *environ.Headers) {
				h.Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
				h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))
			})

			if !allowed {
				env.WithResponseHeaders(func(h *environ.Headers) {
					h.Set("Retry-After", strconv.FormatInt(int64(reset.Seconds()), 10))
				})

				logger.Warn("Rate limit exceeded", LogFields(env,
					zap.String("key", key),
					zap.Int("limit", config.Limit),
					zap.Int("remaining", remaining),
				)...)

				if config.ExceededHandler != nil {
					return config.ExceededHandler(env)
				}
				return WriteError(env, http.StatusTooManyRequests, "Too Many Requests")
			}

			return next(env)
		}
	}
}

// Throttle paces requests through a leaky-bucket limiter: each request waits
// for its slot instead of being rejected. A request whose cancellation signal
// fires while it waits is completed as canceled.
func Throttle(limiter ratelimit.Limiter) common.Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			limiter.Take()
			if err := env.CallCancelled().Err(); err != nil {
				return err
			}
			return next(env)
		}
	}
}

// NewThrottle creates a Throttle allowing rate requests per second.
func NewThrottle(rate int, opts ...ratelimit.Option) common.Middleware {
	return Throttle(ratelimit.New(rate, opts...))
}
