// Package environ defines the per-request environment shared by every middleware
// in a pipeline, together with the well-known keys and typed accessors for it.
package environ

import (
	"context"
	"fmt"
	"io"
)

// Env is the key/value exchange for one request/response pair.
// An Env is created per request and must never be reused across requests.
// Keys are an open namespace: middleware may add arbitrary entries for later
// middleware to consume.
type Env map[string]any

// Get returns the value stored under key if it is present and of type T.
// Otherwise it returns def.
func Get[T any](env Env, key string, def T) T {
	if v, ok := env[key].(T); ok {
		return v
	}
	return def
}

// Lookup returns the value stored under key and whether it is present and of type T.
func Lookup[T any](env Env, key string) (T, bool) {
	v, ok := env[key].(T)
	return v, ok
}

// Missing returns the required keys that are absent from env.
func (env Env) Missing() []string {
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := env[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// Method returns the request method.
func (env Env) Method() string {
	return Get(env, RequestMethodKey, "")
}

// Scheme returns the request scheme.
func (env Env) Scheme() string {
	return Get(env, RequestSchemeKey, "")
}

// PathBase returns the portion of the request path that identifies the application root.
func (env Env) PathBase() string {
	return Get(env, RequestPathBaseKey, "")
}

// Path returns the request path relative to PathBase.
func (env Env) Path() string {
	return Get(env, RequestPathKey, "")
}

// QueryString returns the raw query string without the leading '?'.
func (env Env) QueryString() string {
	return Get(env, RequestQueryStringKey, "")
}

// Protocol returns the request protocol, e.g. "HTTP/1.1".
func (env Env) Protocol() string {
	return Get(env, RequestProtocolKey, "")
}

// RequestBody returns the request body stream.
func (env Env) RequestBody() io.Reader {
	return Get[io.Reader](env, RequestBodyKey, nil)
}

// RequestHeaders returns the request headers.
func (env Env) RequestHeaders() *Headers {
	return Get[*Headers](env, RequestHeadersKey, nil)
}

// CallCancelled returns the request's cancellation signal.
// It returns context.Background if none is present.
func (env Env) CallCancelled() context.Context {
	return Get[context.Context](env, CallCancelledKey, context.Background())
}

// ResponseHeaders returns the response headers.
func (env Env) ResponseHeaders() *Headers {
	return Get[*Headers](env, ResponseHeadersKey, nil)
}

// ResponseBody returns the response body writer.
func (env Env) ResponseBody() io.Writer {
	return Get[io.Writer](env, ResponseBodyKey, nil)
}

// StatusCode returns the response status code, defaulting to 200.
func (env Env) StatusCode() int {
	return Get(env, ResponseStatusCodeKey, 200)
}

// SetStatusCode sets the response status code and returns env for chaining.
func (env Env) SetStatusCode(code int) Env {
	env[ResponseStatusCodeKey] = code
	return env
}

// ReasonPhrase returns the response reason phrase if one was set.
func (env Env) ReasonPhrase() (string, bool) {
	v, ok := env[ResponseReasonPhraseKey]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// SetReasonPhrase sets the response reason phrase and returns env for chaining.
func (env Env) SetReasonPhrase(reason string) Env {
	env[ResponseReasonPhraseKey] = reason
	return env
}

// WithResponseHeaders calls fn with the response headers, if any, and returns env.
func (env Env) WithResponseHeaders(fn func(h *Headers)) Env {
	if h := env.ResponseHeaders(); h != nil && fn != nil {
		fn(h)
	}
	return env
}

// TraceID returns the request's trace id, or "" if tracing is not enabled.
func (env Env) TraceID() string {
	return Get(env, TraceIDKey, "")
}
