// Package hosttest provides in-memory host implementations for tests.
package hosttest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/Suhaibinator/SBridge/pkg/host"
)

// HeaderCall records one AddHeader call.
type HeaderCall struct {
	Name  string
	Value string
}

// Context is a recording host.Context. Set the exported request fields before
// handing it to an adapter and inspect the response fields afterwards.
type Context struct {
	MethodValue       string
	SchemeValue       string
	AppPath           string
	PathValue         string
	Query             string
	Proto             string
	BodyReader        io.Reader
	RequestHeader     http.Header
	Vars              []host.Variable
	Ctx               context.Context
	NoOutput          bool
	DuplexRequest     bool
	DuplexChannel     host.Channel
	DuplexAcceptErr   error
	AcceptedHeader    http.Header
	StatusCalls       []int
	Reason            string
	ReasonSet         bool
	Headers           []HeaderCall
	Written           bytes.Buffer
	BodyAtFirstCommit int
}

// NewContext returns a GET request for path with sensible defaults.
func NewContext(path string) *Context {
	return &Context{
		MethodValue:   http.MethodGet,
		SchemeValue:   "http",
		PathValue:     path,
		Proto:         "HTTP/1.1",
		BodyReader:    http.NoBody,
		RequestHeader: http.Header{},
		Ctx:           context.Background(),
	}
}

// Method returns MethodValue.
func (c *Context) Method() string {
	return c.MethodValue
}

// Scheme returns SchemeValue.
func (c *Context) Scheme() string {
	return c.SchemeValue
}

// ApplicationPath returns AppPath.
func (c *Context) ApplicationPath() string {
	return c.AppPath
}

// Path returns PathValue.
func (c *Context) Path() string {
	return c.PathValue
}

// QueryString returns Query.
func (c *Context) QueryString() string {
	return c.Query
}

// Protocol returns Proto.
func (c *Context) Protocol() string {
	return c.Proto
}

// Body returns BodyReader.
func (c *Context) Body() io.Reader {
	return c.BodyReader
}

// Header returns RequestHeader.
func (c *Context) Header() http.Header {
	return c.RequestHeader
}

// Variables returns Vars.
func (c *Context) Variables() []host.Variable {
	return c.Vars
}

// Context returns Ctx.
func (c *Context) Context() context.Context {
	return c.Ctx
}

// SetReason records the reason phrase.
func (c *Context) SetReason(reason string) {
	c.Reason, c.ReasonSet = reason, true
}

// AddHeader records one response header value.
func (c *Context) AddHeader(name, value string) {
	c.Headers = append(c.Headers, HeaderCall{Name: name, Value: value})
}

// SetStatus records the status code.
func (c *Context) SetStatus(code int) {
	c.StatusCalls = append(c.StatusCalls, code)
	c.BodyAtFirstCommit = c.Written.Len()
}

// Status returns the last status set, or 0.
func (c *Context) Status() int {
	if len(c.StatusCalls) == 0 {
		return 0
	}
	return c.StatusCalls[len(c.StatusCalls)-1]
}

// HeaderValues returns the values added for name, in call order.
func (c *Context) HeaderValues(name string) []string {
	var values []string
	for _, h := range c.Headers {
		if http.CanonicalHeaderKey(h.Name) == http.CanonicalHeaderKey(name) {
			values = append(values, h.Value)
		}
	}
	return values
}

// Output returns the Written buffer, or nil when NoOutput is set.
func (c *Context) Output() io.Writer {
	if c.NoOutput {
		return nil
	}
	return &c.Written
}

// recording names the embedded Context so that the promoted Context method
// is not shadowed by a field of the same name.
type recording = Context

// DuplexContext is a Context that can also accept upgrades.
type DuplexContext struct {
	*recording
}

// NewDuplexContext wraps c so it also implements host.DuplexAcceptor.
func NewDuplexContext(c *Context) DuplexContext {
	return DuplexContext{recording: c}
}

// Recorder returns the wrapped Context.
func (c DuplexContext) Recorder() *Context {
	return c.recording
}

// IsDuplexRequest reports DuplexRequest.
func (c DuplexContext) IsDuplexRequest() bool { return c.DuplexRequest }

// AcceptDuplex records header and returns DuplexChannel.
func (c DuplexContext) AcceptDuplex(header http.Header) (host.Channel, error) {
	if c.DuplexAcceptErr != nil {
		return nil, c.DuplexAcceptErr
	}
	c.AcceptedHeader = header
	if c.DuplexChannel == nil {
		return nil, errors.New("hosttest: no duplex channel")
	}
	return c.DuplexChannel, nil
}

// SentFrame records one Send call.
type SentFrame struct {
	Data         []byte
	Kind         host.MessageKind
	EndOfMessage bool
}

// CloseCall records one CloseOutput call.
type CloseCall struct {
	Status      int
	Description string
}

// Channel is a scripted host.Channel. Inbound results are returned by Receive
// in order; Send and CloseOutput calls are recorded.
type Channel struct {
	mu       sync.Mutex
	state    host.ChannelState
	Inbound  []Inbound
	Sent     []SentFrame
	Closes   []CloseCall
	Aborts   int
	Released int
	CloseErr error
}

// Inbound is one scripted receive.
type Inbound struct {
	Data   []byte
	Result host.ReceiveResult
	Err    error
}

// NewChannel returns an open Channel.
func NewChannel() *Channel {
	return &Channel{state: host.StateOpen}
}

// SetState forces the native state.
func (c *Channel) SetState(s host.ChannelState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// State returns the native state.
func (c *Channel) State() host.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send records a frame.
func (c *Channel) Send(_ context.Context, data []byte, kind host.MessageKind, endOfMessage bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, SentFrame{Data: append([]byte(nil), data...), Kind: kind, EndOfMessage: endOfMessage})
	return nil
}

// Receive pops the next scripted result. A close result moves the channel to
// StateCloseReceived, or StateClosed if a close was already sent.
func (c *Channel) Receive(_ context.Context, buf []byte) (host.ReceiveResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Inbound) == 0 {
		return host.ReceiveResult{}, io.EOF
	}
	in := c.Inbound[0]
	c.Inbound = c.Inbound[1:]
	if in.Err != nil {
		return host.ReceiveResult{}, in.Err
	}
	res := in.Result
	res.Count = copy(buf, in.Data)
	if res.Kind == host.MessageClose {
		res.Count = 0
		if c.state == host.StateCloseSent {
			c.state = host.StateClosed
		} else {
			c.state = host.StateCloseReceived
		}
	}
	return res, nil
}

// CloseOutput records a close frame and advances the state.
func (c *Channel) CloseOutput(_ context.Context, status int, description string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CloseErr != nil {
		return c.CloseErr
	}
	c.Closes = append(c.Closes, CloseCall{Status: status, Description: description})
	if c.state == host.StateCloseReceived {
		c.state = host.StateClosed
	} else {
		c.state = host.StateCloseSent
	}
	return nil
}

// Abort records an abort.
func (c *Channel) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Aborts++
	c.state = host.StateAborted
}

// Close records a release.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Released++
	return nil
}
