package duplex

import (
	"context"

	"github.com/Suhaibinator/SBridge/pkg/environ"
	"github.com/Suhaibinator/SBridge/pkg/host"
)

// Handler drives an upgraded channel. It receives the session environment.
type Handler func(env environ.Env) error

// SendFunc sends one frame fragment. opcode is OpText or OpBinary.
type SendFunc func(ctx context.Context, data []byte, opcode int, endOfMessage bool) error

// ReceiveFunc reads the next fragment into buf.
type ReceiveFunc func(ctx context.Context, buf []byte) (Received, error)

// CloseFunc sends a close frame.
type CloseFunc func(ctx context.Context, status int, description string) error

// Received describes one received fragment. Count is zero for close frames.
type Received struct {
	Opcode           int
	EndOfMessage     bool
	Count            int
	CloseStatus      int
	CloseDescription string
}

// Accept marks env as wanting a protocol switch to handler: it sets the
// upgrade status and the duplex handler key.
func Accept(env environ.Env, handler Handler) {
	env.SetStatusCode(environ.UpgradeStatusCode)
	env[environ.DuplexFuncKey] = handler
}

// HandlerOf returns the duplex handler stored in env, if any.
func HandlerOf(env environ.Env) (Handler, bool) {
	switch h := env[environ.DuplexFuncKey].(type) {
	case Handler:
		return h, h != nil
	case func(environ.Env) error:
		return h, h != nil
	default:
		return nil, false
	}
}

// Send returns the session's send function.
func Send(env environ.Env) SendFunc {
	return environ.Get[SendFunc](env, environ.DuplexSendKey, nil)
}

// Receive returns the session's receive function.
func Receive(env environ.Env) ReceiveFunc {
	return environ.Get[ReceiveFunc](env, environ.DuplexReceiveKey, nil)
}

// Close returns the session's close function.
func Close(env environ.Env) CloseFunc {
	return environ.Get[CloseFunc](env, environ.DuplexCloseKey, nil)
}

// newSession builds the session environment over ch.
func newSession(ctx context.Context, ch host.Channel) environ.Env {
	return environ.Env{
		environ.DuplexSendKey:          sendOver(ch),
		environ.DuplexReceiveKey:       receiveOver(ch),
		environ.DuplexCloseKey:         closeOver(ch),
		environ.DuplexVersionKey:       environ.DuplexVersion,
		environ.DuplexCallCancelledKey: ctx,
		environ.HostDuplexChannelKey:   ch,
	}
}

func sendOver(ch host.Channel) SendFunc {
	return func(ctx context.Context, data []byte, opcode int, endOfMessage bool) error {
		kind, err := KindOf(opcode)
		if err != nil {
			return err
		}
		return ch.Send(ctx, data, kind, endOfMessage)
	}
}

func receiveOver(ch host.Channel) ReceiveFunc {
	return func(ctx context.Context, buf []byte) (Received, error) {
		res, err := ch.Receive(ctx, buf)
		if err != nil {
			return Received{}, err
		}
		opcode, err := OpcodeOf(res.Kind)
		if err != nil {
			return Received{}, err
		}
		r := Received{
			Opcode:       opcode,
			EndOfMessage: res.EndOfMessage,
			CloseStatus:  res.CloseStatus,
		}
		if opcode == OpClose {
			r.CloseDescription = res.CloseDescription
		} else {
			r.Count = res.Count
		}
		return r, nil
	}
}

func closeOver(ch host.Channel) CloseFunc {
	return func(ctx context.Context, status int, description string) error {
		return ch.CloseOutput(ctx, status, description)
	}
}
