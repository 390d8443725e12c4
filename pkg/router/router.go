package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/Suhaibinator/SBridge/pkg/adapter"
	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/environ"
	"github.com/Suhaibinator/SBridge/pkg/host"
	"github.com/Suhaibinator/SBridge/pkg/host/nethttp"
	"github.com/Suhaibinator/SBridge/pkg/middleware"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Router is the main router struct that implements http.Handler.
// It dispatches requests to mounted pipelines and supports graceful shutdown.
type Router struct {
	config      RouterConfig
	router      *httprouter.Router
	logger      *zap.Logger
	middlewares []common.Middleware
	rateLimiter middleware.RateLimiter
	wg          sync.WaitGroup
	shutdown    bool
	shutdownMu  sync.RWMutex
}

// contextKey is a type for context keys.
type contextKey string

const (
	// ParamsKey is the key used to store httprouter.Params in the request context.
	// The context is the environment's cancellation signal, so route parameters
	// reach the pipeline through GetParams.
	ParamsKey contextKey = "params"
)

// mountMethods are registered for every mount; filtering happens in the pipeline.
var mountMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodConnect,
	http.MethodTrace,
}

// NewRouter creates a new Router with the given configuration and registers
// its mounts.
func NewRouter(config RouterConfig) (*Router, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rateLimiter := config.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewWindowRateLimiter()
	}

	r := &Router{
		config:      config,
		router:      httprouter.New(),
		logger:      logger,
		rateLimiter: rateLimiter,
	}

	// Client IP comes first so every later middleware can use it
	ipConfig := config.IPConfig
	if ipConfig == nil {
		ipConfig = middleware.DefaultIPConfig()
	}
	r.middlewares = append(r.middlewares, middleware.ClientIPMiddleware(ipConfig))
	if config.EnableTraceID {
		r.middlewares = append(r.middlewares, middleware.TraceMiddleware(config.TrustTraceHeader))
	}
	if config.EnableLogging {
		r.middlewares = append(r.middlewares, middleware.Logging(logger))
	}
	r.middlewares = append(r.middlewares, config.Middlewares...)

	for _, m := range config.Mounts {
		if err := r.Mount(m); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Mount registers an application below m.PathPrefix. Requests for the prefix
// itself and everything under it reach the application with the prefix as
// path-base. A root mount receives every request no other route matches.
// Mount prefixes cannot contain parameters and must not overlap.
func (r *Router) Mount(m MountConfig) error {
	prefix := strings.TrimRight(m.PathPrefix, "/")
	if strings.ContainsAny(prefix, ":*") {
		return fmt.Errorf("router: mount prefix %q must not contain parameters", m.PathPrefix)
	}

	h, err := r.handler(prefix, m.App, m.Methods,
		r.getEffectiveMaxBodySize(m.MaxBodySizeOverride),
		r.getEffectiveRateLimit(m.RateLimitOverride),
		m.Middlewares)
	if err != nil {
		return err
	}

	if prefix == "" {
		r.router.NotFound = h
		return nil
	}

	handle := r.convertToHTTPRouterHandle(h)
	return register(func() {
		for _, method := range mountMethods {
			r.router.Handle(method, prefix, handle)
			r.router.Handle(method, prefix+"/*path", handle)
		}
	})
}

// RegisterRoute registers an application on a single httprouter pattern.
// The request keeps its full path and an empty path-base.
func (r *Router) RegisterRoute(route RouteConfig) error {
	maxBodySize := route.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = r.config.GlobalMaxBodySize
	}

	h, err := r.handler("", route.App, nil, maxBodySize, r.getEffectiveRateLimit(route.RateLimit), route.Middlewares)
	if err != nil {
		return err
	}

	handle := r.convertToHTTPRouterHandle(h)
	return register(func() {
		for _, method := range route.Methods {
			r.router.Handle(method, route.Path, handle)
		}
	})
}

// register turns httprouter's registration panics into errors.
func register(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("router: %v", rec)
		}
	}()
	fn()
	return nil
}

// handler builds the pipeline for one mount or route and wraps it in an
// adapter and a net/http host.
func (r *Router) handler(appPath string, app common.AppFunc, methods []string, maxBodySize int64, rateLimit *middleware.RateLimitConfig, middlewares []Middleware) (http.Handler, error) {
	if app == nil {
		return nil, adapter.ErrNilApp
	}

	// Build the middleware chain
	chain := common.NewMiddlewareChain(middleware.Recovery(r.logger), r.errorMiddleware)
	if len(methods) > 0 {
		chain = chain.Append(allowMethods(methods))
	}
	chain = chain.Append(r.middlewares...)
	chain = chain.Append(middlewares...)
	if maxBodySize > 0 {
		chain = chain.Append(middleware.MaxBodySize(maxBodySize))
	}
	if rateLimit != nil {
		chain = chain.Append(middleware.RateLimit(rateLimit, r.rateLimiter, r.logger))
	}

	var caps host.Capabilities
	if r.config.Upgrader != nil {
		caps = nethttp.Capabilities()
	}

	a, err := adapter.New(chain.Then(app), adapter.Config{
		Logger:              r.logger,
		Capabilities:        caps,
		DisableForcedCommit: r.config.DisableForcedCommit,
		Metrics:             r.config.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return r.track(nethttp.Handler(a, nethttp.Options{
		Logger:          r.logger,
		ApplicationPath: appPath,
		Upgrader:        r.config.Upgrader,
	})), nil
}

// track counts in-flight requests and refuses new ones once shutdown starts.
func (r *Router) track(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// First add to the wait group before checking shutdown status
		r.wg.Add(1)

		r.shutdownMu.RLock()
		isShutdown := r.shutdown
		r.shutdownMu.RUnlock()

		if isShutdown {
			r.wg.Done()
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		defer r.wg.Done()
		h.ServeHTTP(w, req)
	})
}

// convertToHTTPRouterHandle converts an http.Handler to an httprouter.Handle.
// It stores the route parameters in the request context so they can be accessed by handlers.
func (r *Router) convertToHTTPRouterHandle(handler http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(req.Context(), ParamsKey, ps)
		handler.ServeHTTP(w, req.WithContext(ctx))
	}
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Shutdown gracefully shuts down the router.
// It stops accepting new requests and waits for existing requests, including
// open websocket sessions, to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetParams retrieves the httprouter.Params from the environment.
func GetParams(env environ.Env) httprouter.Params {
	params, _ := env.CallCancelled().Value(ParamsKey).(httprouter.Params)
	return params
}

// GetParam retrieves a specific parameter from the environment.
// It's a convenience function that combines GetParams and ByName.
func GetParam(env environ.Env, name string) string {
	return GetParams(env).ByName(name)
}

// getEffectiveMaxBodySize returns the mount's max body size, or the global one.
func (r *Router) getEffectiveMaxBodySize(override int64) int64 {
	if override > 0 {
		return override
	}
	return r.config.GlobalMaxBodySize
}

// getEffectiveRateLimit returns the mount's rate limit, or the global one.
func (r *Router) getEffectiveRateLimit(override *middleware.RateLimitConfig) *middleware.RateLimitConfig {
	if override != nil {
		return override
	}
	return r.config.GlobalRateLimit
}

// HTTPError represents an HTTP error with a status code and message.
// When an application returns one before the response is committed, the
// router answers with that status and message and the request succeeds.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// errorMiddleware turns an *HTTPError into a response.
func (r *Router) errorMiddleware(next common.AppFunc) common.AppFunc {
	return func(env environ.Env) error {
		err := next(env)
		var httpErr *HTTPError
		if err == nil || !errors.As(err, &httpErr) || middleware.Committed(env) {
			return err
		}

		r.logger.Debug("Handler returned an HTTP error", middleware.LogFields(env,
			zap.Int("status", httpErr.StatusCode),
			zap.String("message", httpErr.Message),
		)...)
		return middleware.WriteError(env, httpErr.StatusCode, httpErr.Message)
	}
}

// allowMethods answers 405 for methods outside the list.
func allowMethods(methods []string) Middleware {
	allow := strings.Join(methods, ", ")
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			if slices.Contains(methods, env.Method()) {
				return next(env)
			}
			env.WithResponseHeaders(func(h *environ.Headers) {
				h.Set("Allow", allow)
			})
			return NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed")
		}
	}
}
