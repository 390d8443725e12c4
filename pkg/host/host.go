// Package host declares what SBridge consumes from the server that owns a request.
// The core reads request data from a Context during environment construction and
// writes status, headers and bytes back to it when the response is committed.
// Nothing in the core depends on a concrete server; see the nethttp subpackage
// for the net/http implementation.
package host

import (
	"context"
	"io"
	"net/http"
)

// Variable is one host variable, such as REMOTE_ADDR or SERVER_PORT.
type Variable struct {
	Name  string
	Value string
}

// Context is one inbound request and its outbound response as exposed by a host.
type Context interface {
	// Method returns the request method.
	Method() string
	// Scheme returns "http" or "https".
	Scheme() string
	// ApplicationPath returns the path the host mounted the application at.
	// "/" and "" both mean the host root.
	ApplicationPath() string
	// Path returns the full request path, including the application path.
	Path() string
	// QueryString returns the raw query without the leading '?'.
	QueryString() string
	// Protocol returns the request protocol, e.g. "HTTP/1.1".
	Protocol() string
	// Body returns the request body stream.
	Body() io.Reader
	// Header returns the inbound request headers.
	Header() http.Header
	// Variables returns host variables in a stable order. Variables derived
	// from inbound headers use the HTTP_ prefix.
	Variables() []Variable
	// Context returns the request's cancellation signal.
	Context() context.Context

	// SetStatus sets the response status code.
	SetStatus(code int)
	// SetReason sets the response reason phrase. Hosts that cannot send custom
	// reason phrases may ignore it.
	SetReason(reason string)
	// AddHeader appends a response header value.
	AddHeader(name, value string)
	// Output returns the response byte sink.
	Output() io.Writer
}

// Capabilities describes what a host supports. It is queried once at startup.
type Capabilities struct {
	Duplex bool
}

// DuplexAcceptor is implemented by a Context that can switch protocols.
type DuplexAcceptor interface {
	// IsDuplexRequest reports whether the client asked for an upgrade.
	IsDuplexRequest() bool
	// AcceptDuplex completes the handshake, sending header with the switching
	// response, and returns the native channel.
	AcceptDuplex(header http.Header) (Channel, error)
}

// MessageKind is the host's native message type enumeration.
type MessageKind int

const (
	MessageText MessageKind = iota + 1
	MessageBinary
	MessageClose
)

// ChannelState is the host's native channel state enumeration.
type ChannelState int

const (
	StateNone ChannelState = iota
	StateConnecting
	StateOpen
	StateCloseSent
	StateCloseReceived
	StateClosed
	StateAborted
)

// String returns the state name.
func (s ChannelState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateCloseSent:
		return "close_sent"
	case StateCloseReceived:
		return "close_received"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ReceiveResult describes one native receive.
type ReceiveResult struct {
	Kind             MessageKind
	EndOfMessage     bool
	Count            int
	CloseStatus      int
	CloseDescription string
}

// Channel is a host's native bidirectional message channel.
type Channel interface {
	Send(ctx context.Context, data []byte, kind MessageKind, endOfMessage bool) error
	Receive(ctx context.Context, buf []byte) (ReceiveResult, error)
	// CloseOutput sends a close frame with status and description.
	CloseOutput(ctx context.Context, status int, description string) error
	// Abort tears the channel down without a closing handshake.
	Abort()
	State() ChannelState
	// Close releases the channel's resources once the exchange is over.
	Close() error
}
