package common

import "github.com/Suhaibinator/SBridge/pkg/environ"

// Completed is the terminal AppFunc. It succeeds without touching the environment.
func Completed(environ.Env) error {
	return nil
}

// Compose builds a single AppFunc from middlewares in declaration order.
// The first middleware runs first; each one's continuation is the composition
// of the middlewares after it, ending in Completed. Compose calls every factory
// once and never invokes the resulting units.
func Compose(middlewares ...Middleware) AppFunc {
	return NewMiddlewareChain(middlewares...).Then(Completed)
}

// MiddlewareChain represents a chain of middleware
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	c := make(MiddlewareChain, len(middlewares))
	copy(c, middlewares)
	return c
}

// Append adds middleware to the end of the chain
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, 0, len(c)+len(middlewares))
	result = append(result, c...)
	return append(result, middlewares...)
}

// Prepend adds middleware to the beginning of the chain
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// Then applies the middleware chain to a terminal AppFunc.
// A nil terminal is treated as Completed.
func (c MiddlewareChain) Then(app AppFunc) AppFunc {
	if app == nil {
		app = Completed
	}
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] == nil {
			continue
		}
		app = c[i](app)
	}
	return app
}
