// Package duplex bridges an upgraded host channel to a duplex handler running
// over a portable session environment. Frame types cross the boundary as small
// integer opcodes so handlers never see the host's own enumerations.
package duplex

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/Suhaibinator/SBridge/pkg/environ"
	"github.com/Suhaibinator/SBridge/pkg/host"
	"go.uber.org/zap"
)

// State is the bridge's view of an upgraded session.
type State int

const (
	StateNegotiating State = iota
	StateOpen
	StateClosing
	StateClosed
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StateError reports a native channel state the bridge cannot finalize from.
// It is an adapter-level error, distinct from a handler failure.
type StateError struct {
	State host.ChannelState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("duplex: unexpected channel state %q after handler returned", e.State)
}

// Bridge runs duplex handlers against host channels. A Bridge holds no
// per-session state and is safe for concurrent use.
type Bridge struct {
	logger *zap.Logger
}

// NewBridge creates a Bridge. A nil logger disables logging.
func NewBridge(logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{logger: logger}
}

// Run hands ch to handler and finalizes the channel once handler returns.
// ctx becomes the session's cancellation signal. Run releases ch before
// returning. The returned state is Closed or Aborted unless the native state
// was unexpected, in which case a *StateError is returned.
func (b *Bridge) Run(ctx context.Context, ch host.Channel, handler Handler) (State, error) {
	defer func() {
		if err := ch.Close(); err != nil {
			b.logger.Debug("Duplex channel release failed", zap.Error(err))
		}
	}()

	b.transition(StateNegotiating, StateOpen)
	herr := b.invoke(newSession(ctx, ch), handler)
	if herr != nil {
		b.logger.Warn("Duplex handler failed", zap.Error(herr))
	}

	state, ferr := b.finalize(ch)
	return state, errors.Join(herr, ferr)
}

func (b *Bridge) invoke(env environ.Env, handler Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("Panic recovered in duplex handler",
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("duplex: handler panic: %v", rec)
		}
	}()
	return handler(env)
}

// transition logs one step of the session state machine.
func (b *Bridge) transition(from, to State) {
	b.logger.Debug("Duplex session state",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

// finalize completes or aborts the closing handshake depending on how the
// handler left the native channel.
func (b *Bridge) finalize(ch host.Channel) (State, error) {
	native := ch.State()
	switch native {
	case host.StateClosed:
		b.transition(StateOpen, StateClosed)
		return StateClosed, nil
	case host.StateAborted:
		b.transition(StateOpen, StateAborted)
		return StateAborted, nil
	case host.StateCloseReceived:
		// The peer is waiting for our close frame.
		b.transition(StateOpen, StateClosing)
		if err := ch.CloseOutput(context.Background(), NormalClosure, ""); err != nil {
			ch.Abort()
			b.transition(StateClosing, StateAborted)
			return StateAborted, fmt.Errorf("duplex: close: %w", err)
		}
		b.transition(StateClosing, StateClosed)
		return StateClosed, nil
	case host.StateOpen, host.StateCloseSent:
		// The peer has not finished closing; abort instead of draining.
		ch.Abort()
		b.transition(StateOpen, StateAborted)
		return StateAborted, nil
	default:
		ch.Abort()
		b.transition(StateOpen, StateAborted)
		return StateAborted, &StateError{State: native}
	}
}
