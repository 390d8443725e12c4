package nethttp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Suhaibinator/SBridge/pkg/host"
	"github.com/gorilla/websocket"
)

// closeTimeout bounds the close frame write when ctx has no deadline.
const closeTimeout = 5 * time.Second

var (
	errNoUpgrader = errors.New("nethttp: upgrades are not enabled")
	errBadKind    = errors.New("nethttp: unsupported message kind")
)

// channel adapts a gorilla websocket connection to host.Channel. Send may run
// concurrently with Receive; the state is shared and guarded by mu.
type channel struct {
	conn *websocket.Conn

	mu       sync.Mutex
	state    host.ChannelState
	released bool

	writeMu sync.Mutex
	writer  io.WriteCloser

	// pending holds the unread remainder of the current inbound message.
	pending  *bytes.Reader
	readKind host.MessageKind
}

func newChannel(conn *websocket.Conn) *channel {
	c := &channel{conn: conn, state: host.StateOpen}
	// Answering the peer's close is left to the duplex handler or the bridge.
	conn.SetCloseHandler(func(int, string) error { return nil })
	return c
}

func (c *channel) State() host.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *channel) setState(s host.ChannelState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Send writes one fragment of a message. Fragments are accumulated in a
// message writer that is closed when endOfMessage is set.
func (c *channel) Send(ctx context.Context, data []byte, kind host.MessageKind, endOfMessage bool) error {
	if kind == host.MessageClose {
		return c.CloseOutput(ctx, websocket.CloseNormalClosure, "")
	}
	var messageType int
	switch kind {
	case host.MessageText:
		messageType = websocket.TextMessage
	case host.MessageBinary:
		messageType = websocket.BinaryMessage
	default:
		return errBadKind
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	if c.writer == nil {
		w, err := c.conn.NextWriter(messageType)
		if err != nil {
			return err
		}
		c.writer = w
	}
	if _, err := c.writer.Write(data); err != nil {
		c.writer = nil
		return err
	}
	if endOfMessage {
		w := c.writer
		c.writer = nil
		return w.Close()
	}
	return nil
}

// Receive reads the next fragment of the current message into buf. A close
// frame moves the channel to StateCloseReceived, or StateClosed when our own
// close was already sent.
func (c *channel) Receive(ctx context.Context, buf []byte) (host.ReceiveResult, error) {
	if c.pending == nil {
		if deadline, ok := ctx.Deadline(); ok {
			if err := c.conn.SetReadDeadline(deadline); err != nil {
				return host.ReceiveResult{}, err
			}
		}
		messageType, r, err := c.conn.NextReader()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return c.closeReceived(ce), nil
			}
			return host.ReceiveResult{}, err
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return host.ReceiveResult{}, err
		}
		c.pending = bytes.NewReader(data)
		c.readKind = host.MessageBinary
		if messageType == websocket.TextMessage {
			c.readKind = host.MessageText
		}
	}

	n, _ := c.pending.Read(buf)
	res := host.ReceiveResult{Kind: c.readKind, Count: n}
	if c.pending.Len() == 0 {
		res.EndOfMessage = true
		c.pending = nil
	}
	return res, nil
}

func (c *channel) closeReceived(ce *websocket.CloseError) host.ReceiveResult {
	c.mu.Lock()
	switch c.state {
	case host.StateCloseSent:
		c.state = host.StateClosed
	case host.StateOpen:
		c.state = host.StateCloseReceived
	}
	c.mu.Unlock()

	return host.ReceiveResult{
		Kind:             host.MessageClose,
		EndOfMessage:     true,
		CloseStatus:      ce.Code,
		CloseDescription: ce.Text,
	}
}

// CloseOutput sends a close frame.
func (c *channel) CloseOutput(ctx context.Context, status int, description string) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(closeTimeout)
	}
	msg := websocket.FormatCloseMessage(status, description)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case host.StateCloseReceived:
		c.state = host.StateClosed
	case host.StateOpen:
		c.state = host.StateCloseSent
	}
	return nil
}

// Abort closes the underlying connection without a closing handshake.
func (c *channel) Abort() {
	c.setState(host.StateAborted)
	_ = c.release()
}

// Close releases the connection.
func (c *channel) Close() error {
	return c.release()
}

func (c *channel) release() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	c.mu.Unlock()
	return c.conn.Close()
}
