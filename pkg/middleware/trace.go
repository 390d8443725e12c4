package middleware

import (
	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/environ"
	"github.com/google/uuid"
)

// TraceHeader carries the trace id on requests and responses.
const TraceHeader = "X-Trace-Id"

// TraceMiddleware creates a middleware that assigns a trace ID to each request
// and stores it in the environment. An incoming X-Trace-Id header is reused
// when trustHeader is set. The id is echoed in the response headers.
func TraceMiddleware(trustHeader bool) common.Middleware {
	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			traceID := ""
			if trustHeader {
				traceID = env.RequestHeaders().Get(TraceHeader)
			}
			if traceID == "" {
				traceID = uuid.New().String()
			}

			env[environ.TraceIDKey] = traceID
			env.WithResponseHeaders(func(h *environ.Headers) {
				h.Set(TraceHeader, traceID)
			})

			return next(env)
		}
	}
}

// GetTraceID extracts the trace ID from the environment.
// Returns an empty string if no trace ID is found.
func GetTraceID(env environ.Env) string {
	return env.TraceID()
}
