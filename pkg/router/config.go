// Package router mounts SBridge pipelines on an httprouter table.
// Each mount or route gets its own adapter; the router decides which one is
// invoked and handles graceful shutdown.
package router

import (
	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/metrics"
	"github.com/Suhaibinator/SBridge/pkg/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RouterConfig defines the global configuration for the router.
type RouterConfig struct {
	Logger              *zap.Logger                 // Logger for all router operations
	GlobalMaxBodySize   int64                       // Default maximum request body size in bytes
	GlobalRateLimit     *middleware.RateLimitConfig // Default rate limit for all mounts
	IPConfig            *middleware.IPConfig        // Configuration for client IP extraction
	EnableTraceID       bool                        // Assign a trace ID to every request
	TrustTraceHeader    bool                        // Reuse an incoming X-Trace-Id header
	EnableLogging       bool                        // Log every request through middleware.Logging
	Metrics             *metrics.Collector          // Records adapter outcomes when set
	Upgrader            *websocket.Upgrader         // Enables websocket upgrades when set
	DisableForcedCommit bool                        // Passed through to every adapter
	Mounts              []MountConfig               // Applications mounted below a path prefix
	Middlewares         []common.Middleware         // Global middlewares applied to all mounts and routes
	RateLimiter         middleware.RateLimiter      // Limiter shared by all rate limits; defaults to a fixed-window limiter
}

// MountConfig mounts an application below a path prefix. The prefix becomes
// the request's path-base and the remainder its path.
type MountConfig struct {
	PathPrefix          string                      // Mount point, e.g. "/api"; "" or "/" mounts at the root
	Methods             []string                    // Allowed methods; all methods when empty
	MaxBodySizeOverride int64                       // Override global max body size for this mount
	RateLimitOverride   *middleware.RateLimitConfig // Override global rate limit for this mount
	Middlewares         []common.Middleware         // Middlewares applied to this mount
	App                 common.AppFunc              // Terminal application
}

// RouteConfig registers an application on a single httprouter pattern.
// Named parameters are available through GetParams.
type RouteConfig struct {
	Path        string                      // httprouter pattern, e.g. "/users/:id"
	Methods     []string                    // HTTP methods this route handles
	MaxBodySize int64                       // Override max body size for this route
	RateLimit   *middleware.RateLimitConfig // Rate limit for this route
	Middlewares []common.Middleware         // Middlewares applied to this route
	App         common.AppFunc              // Terminal application
}

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware
