package nethttp

import (
	"net/http"

	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/host"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server serves one host request. *adapter.Adapter implements it.
type Server interface {
	Serve(hc host.Context) error
}

// Options configures Handler.
type Options struct {
	// Logger receives the host error path's log entries. Defaults to a no-op logger.
	Logger *zap.Logger

	// ApplicationPath is the path the application is mounted at.
	ApplicationPath string

	// Upgrader performs websocket handshakes. Upgrades are refused when nil.
	Upgrader *websocket.Upgrader
}

// DefaultUpgrader returns the upgrader used by the example server.
func DefaultUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// Handler returns an http.Handler that serves every request through s.
//
// A failure before the response is committed becomes a 500. A failure after
// the commit is logged and otherwise suppressed, since the status line has
// already been sent. A cancellation is logged and nothing is written.
func Handler(s Server, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := NewContext(w, r, opts.ApplicationPath, opts.Upgrader)
		handleError(logger, c, r, s.Serve(c))
	})
}

func handleError(logger *zap.Logger, c *Context, r *http.Request, err error) {
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	}

	switch {
	case common.OutcomeOf(err) == common.OutcomeCanceled:
		logger.Debug("Request canceled", fields...)
	case c.Committed():
		logger.Warn("Request failed after the response was committed", fields...)
	default:
		logger.Error("Request failed", fields...)
		http.Error(c.w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
