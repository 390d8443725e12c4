// Package adapter runs a middleware pipeline against a host request.
// It builds the request environment, invokes the pipeline, and makes sure the
// response is committed to the host exactly once. When the pipeline asks for a
// protocol switch, the adapter hands the host channel to the duplex bridge.
package adapter

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/duplex"
	"github.com/Suhaibinator/SBridge/pkg/environ"
	"github.com/Suhaibinator/SBridge/pkg/host"
	"github.com/Suhaibinator/SBridge/pkg/metrics"
	"go.uber.org/zap"
)

// Config configures an Adapter.
type Config struct {
	// Logger is used for per-request logging. Defaults to a no-op logger.
	Logger *zap.Logger

	// Root is an application root below the host's application path.
	// Requests outside it keep their full path and an empty path-base.
	Root string

	// Capabilities describes the host. The duplex upgrade path is enabled only
	// when Capabilities.Duplex is set.
	Capabilities host.Capabilities

	// DisableForcedCommit leaves a response that was never written uncommitted
	// when the pipeline succeeds. By default the adapter commits it.
	DisableForcedCommit bool

	// Metrics records outcomes when set.
	Metrics *metrics.Collector
}

// DefaultConfig returns a Config with forced commit enabled and no duplex support.
func DefaultConfig() Config {
	return Config{Logger: zap.NewNop()}
}

// Adapter serves host requests through a composed pipeline. It is immutable
// after construction and safe for concurrent use.
type Adapter struct {
	app     common.AppFunc
	config  Config
	logger  *zap.Logger
	root    string
	duplex  bool
	bridge  *duplex.Bridge
	metrics *metrics.Collector
}

// New creates an Adapter around app.
func New(app common.AppFunc, config Config) (*Adapter, error) {
	if app == nil {
		return nil, ErrNilApp
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		app:     app,
		config:  config,
		logger:  logger,
		root:    normalizeRoot(config.Root),
		duplex:  SupportsDuplex(StartupProperties(config.Capabilities)),
		bridge:  duplex.NewBridge(logger),
		metrics: config.Metrics,
	}, nil
}

// NewFromMiddlewares composes middlewares and creates an Adapter around the result.
func NewFromMiddlewares(config Config, middlewares ...common.Middleware) (*Adapter, error) {
	return New(common.Compose(middlewares...), config)
}

// MustNew is like New but panics on error.
func MustNew(app common.AppFunc, config Config) *Adapter {
	a, err := New(app, config)
	if err != nil {
		panic(err)
	}
	return a
}

// StartupProperties describes what an adapter over a host with caps offers.
func StartupProperties(caps host.Capabilities) environ.Env {
	props := environ.Env{environ.VersionKey: environ.Version}
	if caps.Duplex {
		props[environ.DuplexVersionKey] = environ.DuplexVersion
		props[environ.DuplexSupportKey] = environ.DuplexSupport
	}
	return props
}

// SupportsDuplex reports whether props advertise the duplex upgrade path.
func SupportsDuplex(props environ.Env) bool {
	return environ.Get(props, environ.DuplexVersionKey, "") == environ.DuplexVersion &&
		environ.Get(props, environ.DuplexSupportKey, "") == environ.DuplexSupport
}

// DuplexEnabled reports whether the upgrade path is active.
func (a *Adapter) DuplexEnabled() bool {
	return a.duplex
}

// Serve handles one request. It returns nil on success, the pipeline's error
// verbatim on failure or cancellation, and a *ConstructionError when the
// environment could not be built. Serve never writes an error response itself.
func (a *Adapter) Serve(hc host.Context) error {
	start := time.Now()

	x, err := a.newExchange(hc)
	if err != nil {
		a.logger.Error("Failed to construct environment", zap.Error(err))
		return err
	}

	err = a.invoke(x.env)
	if err == nil {
		err = a.complete(x)
	}

	outcome := common.OutcomeOf(err)
	duration := time.Since(start)
	a.metrics.ObserveRequest(outcome.String(), duration)
	a.logOutcome(x, outcome, err, duration)
	return err
}

// invoke runs the pipeline, converting a panic into a *PanicError.
func (a *Adapter) invoke(env environ.Env) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			perr := &PanicError{Value: rec, Stack: debug.Stack()}
			a.logger.Error("Panic recovered", a.fields(env,
				zap.Any("panic", rec),
				zap.String("stack", string(perr.Stack)),
			)...)
			err = perr
		}
	}()
	return a.app(env)
}

// complete finishes a successful pipeline run: it either switches protocols or
// commits the ordinary response.
func (a *Adapter) complete(x *exchange) error {
	if handler, ok := duplex.HandlerOf(x.env); ok && a.duplex && x.currentStatus() == environ.UpgradeStatusCode {
		if acc, ok := x.hc.(host.DuplexAcceptor); ok {
			return a.upgrade(x, acc, handler)
		}
		a.logger.Debug("Host cannot accept duplex upgrades; completing as an ordinary response", a.fields(x.env)...)
	}

	if x.body.Started() {
		a.metrics.ObserveCommit(false)
		return nil
	}
	if a.config.DisableForcedCommit {
		return nil
	}
	x.forced = true
	if err := x.body.Flush(); err != nil {
		return fmt.Errorf("adapter: commit response: %w", err)
	}
	a.metrics.ObserveCommit(true)
	return nil
}

func (a *Adapter) upgrade(x *exchange, acc host.DuplexAcceptor, handler duplex.Handler) error {
	if x.body.Started() {
		return ErrUpgradeAfterCommit
	}
	ch, err := acc.AcceptDuplex(responseHeader(x.env))
	if err != nil {
		return fmt.Errorf("adapter: accept duplex: %w", err)
	}
	if ch == nil {
		return errNoChannel
	}
	state, err := a.bridge.Run(x.env.CallCancelled(), ch, handler)
	a.metrics.ObserveDuplex(state.String())
	return err
}

// fields returns request log fields, with the trace id first when present.
func (a *Adapter) fields(env environ.Env, extra ...zap.Field) []zap.Field {
	fields := []zap.Field{
		zap.String("method", env.Method()),
		zap.String("path_base", env.PathBase()),
		zap.String("path", env.Path()),
	}
	fields = append(fields, extra...)
	if traceID := env.TraceID(); traceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
	}
	return fields
}

func (a *Adapter) logOutcome(x *exchange, outcome common.Outcome, err error, duration time.Duration) {
	switch outcome {
	case common.OutcomeSuccess:
		a.logger.Debug("Request completed", a.fields(x.env,
			zap.Int("status", x.currentStatus()),
			zap.Bool("forced_commit", x.forced),
			zap.Duration("duration", duration),
		)...)
	case common.OutcomeCanceled:
		a.logger.Info("Request canceled", a.fields(x.env,
			zap.Error(err),
			zap.Duration("duration", duration),
		)...)
	default:
		a.logger.Error("Pipeline failed", a.fields(x.env,
			zap.Error(err),
			zap.Bool("committed", x.body.Started()),
			zap.Duration("duration", duration),
		)...)
	}
}
