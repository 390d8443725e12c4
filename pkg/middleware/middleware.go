// Package middleware provides a collection of environment middleware components for SBridge.
package middleware

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/environ"
	"github.com/Suhaibinator/SBridge/pkg/stream"
	"go.uber.org/zap"
)

// Use the Middleware type from the common package
type Middleware = common.Middleware

// Chain chains multiple middlewares together
func Chain(middlewares ...Middleware) Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return common.NewMiddlewareChain(middlewares...).Then(next)
	}
}

// Committed reports whether the response body has already been written to.
func Committed(env environ.Env) bool {
	if t, ok := env.ResponseBody().(*stream.Trigger); ok {
		return t.Started()
	}
	return false
}

// WriteError sends a plain-text error response in the manner of http.Error.
func WriteError(env environ.Env, status int, message string) error {
	env.SetStatusCode(status)
	env.WithResponseHeaders(func(h *environ.Headers) {
		h.Del("Content-Length")
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("X-Content-Type-Options", "nosniff")
	})
	body := env.ResponseBody()
	if body == nil {
		return nil
	}
	_, err := io.WriteString(body, message+"\n")
	return err
}

// LogFields returns request log fields, with the trace id first when present.
func LogFields(env environ.Env, extra ...zap.Field) []zap.Field {
	f := []zap.Field{
		zap.String("method", env.Method()),
		zap.String("path", env.PathBase()+env.Path()),
	}
	f = append(f, extra...)
	if traceID := env.TraceID(); traceID != "" {
		f = append([]zap.Field{zap.String("trace_id", traceID)}, f...)
	}
	return f
}

// Recovery is a middleware that recovers from panics. When the response has
// not been committed it answers with a 500; otherwise the panic becomes the
// pipeline's error.
func Recovery(logger *zap.Logger) Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered", LogFields(env,
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
					)...)

					if Committed(env) {
						err = fmt.Errorf("panic after response was committed: %v", rec)
						return
					}
					err = WriteError(env, http.StatusInternalServerError, "Internal Server Error")
				}
			}()

			return next(env)
		}
	}
}

// Logging is a middleware that logs requests
func Logging(logger *zap.Logger) Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			start := time.Now()

			err := next(env)

			duration := time.Since(start)
			status := env.StatusCode()
			outcome := common.OutcomeOf(err)

			// Use appropriate log level based on outcome, status code and duration
			switch {
			case outcome == common.OutcomeFailure:
				logger.Error("Request failed", LogFields(env,
					zap.Error(err),
					zap.Duration("duration", duration),
				)...)
			case outcome == common.OutcomeCanceled:
				logger.Info("Request canceled", LogFields(env,
					zap.Duration("duration", duration),
				)...)
			case status >= 500:
				logger.Error("Server error", LogFields(env,
					zap.Int("status", status),
					zap.Duration("duration", duration),
					zap.String("remote_addr", remoteAddr(env)),
				)...)
			case status >= 400:
				logger.Warn("Client error", LogFields(env,
					zap.Int("status", status),
					zap.Duration("duration", duration),
				)...)
			case duration > 1*time.Second:
				logger.Warn("Slow request", LogFields(env,
					zap.Int("status", status),
					zap.Duration("duration", duration),
				)...)
			default:
				logger.Debug("Request", LogFields(env,
					zap.Int("status", status),
					zap.Duration("duration", duration),
				)...)
			}
			return err
		}
	}
}

// MaxBodySize is a middleware that limits the size of the request body.
// Reading past the limit fails with *http.MaxBytesError.
func MaxBodySize(maxSize int64) Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			if body := env.RequestBody(); body != nil {
				rc, ok := body.(io.ReadCloser)
				if !ok {
					rc = io.NopCloser(body)
				}
				env[environ.RequestBodyKey] = http.MaxBytesReader(nil, rc, maxSize)
			}
			return next(env)
		}
	}
}

// CORS is a middleware that adds CORS headers to the response
func CORS(origins []string, methods []string, headers []string) Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			env.WithResponseHeaders(func(h *environ.Headers) {
				if len(origins) > 0 {
					h.Set("Access-Control-Allow-Origin", strings.Join(origins, ", "))
				}
				if len(methods) > 0 {
					h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
				}
				if len(headers) > 0 {
					h.Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
				}
			})

			// Handle preflight requests
			if env.Method() == http.MethodOptions {
				env.SetStatusCode(http.StatusNoContent)
				return nil
			}

			return next(env)
		}
	}
}

// NotFound is a terminal middleware that answers 404.
func NotFound() Middleware {
	return func(common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			return WriteError(env, http.StatusNotFound, "Not Found")
		}
	}
}
