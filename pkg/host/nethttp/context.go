// Package nethttp implements the host interfaces over net/http, with
// gorilla/websocket providing the duplex channel.
package nethttp

import (
	"context"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/Suhaibinator/SBridge/pkg/host"
	"github.com/gorilla/websocket"
)

// Context adapts one net/http request and its ResponseWriter to host.Context.
// Status and headers are buffered until the first body write.
type Context struct {
	w        http.ResponseWriter
	r        *http.Request
	appPath  string
	upgrader *websocket.Upgrader

	status      int
	wroteHeader bool
	upgraded    bool
}

// NewContext creates a Context. appPath is the path the application is
// mounted at; upgrader may be nil when upgrades are not needed.
func NewContext(w http.ResponseWriter, r *http.Request, appPath string, upgrader *websocket.Upgrader) *Context {
	return &Context{
		w:        w,
		r:        r,
		appPath:  appPath,
		upgrader: upgrader,
		status:   http.StatusOK,
	}
}

// Capabilities reports what this host supports.
func Capabilities() host.Capabilities {
	return host.Capabilities{Duplex: true}
}

func (c *Context) Method() string { return c.r.Method }

func (c *Context) Scheme() string {
	if c.r.TLS != nil {
		return "https"
	}
	return "http"
}

func (c *Context) ApplicationPath() string  { return c.appPath }
func (c *Context) Path() string             { return c.r.URL.Path }
func (c *Context) QueryString() string      { return c.r.URL.RawQuery }
func (c *Context) Protocol() string         { return c.r.Proto }
func (c *Context) Body() io.Reader          { return c.r.Body }
func (c *Context) Context() context.Context { return c.r.Context() }

// Header returns the request headers. net/http moves Host out of the header
// map, so it is added back.
func (c *Context) Header() http.Header {
	h := c.r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if c.r.Host != "" && h.Get("Host") == "" {
		h.Set("Host", c.r.Host)
	}
	return h
}

// Variables returns CGI-style server variables for the request.
func (c *Context) Variables() []host.Variable {
	serverName, serverPort := splitHostPort(c.r.Host)
	remoteAddr, remotePort := splitHostPort(c.r.RemoteAddr)
	https := "off"
	if c.r.TLS != nil {
		https = "on"
	}

	vars := []host.Variable{
		{Name: "REQUEST_METHOD", Value: c.r.Method},
		{Name: "SERVER_PROTOCOL", Value: c.r.Proto},
		{Name: "QUERY_STRING", Value: c.r.URL.RawQuery},
		{Name: "PATH_INFO", Value: c.r.URL.Path},
		{Name: "REMOTE_ADDR", Value: remoteAddr},
		{Name: "REMOTE_PORT", Value: remotePort},
		{Name: "SERVER_NAME", Value: serverName},
		{Name: "SERVER_PORT", Value: serverPort},
		{Name: "HTTPS", Value: https},
	}

	header := c.Header()
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)

	var all strings.Builder
	for _, name := range names {
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		value := strings.Join(header[name], ", ")
		vars = append(vars, host.Variable{Name: key, Value: value})
		all.WriteString(key + ":" + value + "\n")
	}
	vars = append(vars, host.Variable{Name: "ALL_HTTP", Value: all.String()})
	return vars
}

func splitHostPort(hostport string) (string, string) {
	h, p, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, ""
	}
	return h, p
}

// SetStatus buffers the status code until the first write.
func (c *Context) SetStatus(code int) { c.status = code }

// SetReason is ignored: net/http always sends the standard reason phrase.
func (c *Context) SetReason(string) {}

// AddHeader appends a response header value.
func (c *Context) AddHeader(name, value string) { c.w.Header().Add(name, value) }

// Output returns the response body sink.
func (c *Context) Output() io.Writer { return output{c} }

// Committed reports whether the status line has been sent, either by a body
// write or by a protocol switch.
func (c *Context) Committed() bool { return c.wroteHeader || c.upgraded }

func (c *Context) writeHeader() {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.w.WriteHeader(c.status)
}

// IsDuplexRequest reports whether the client asked for a websocket upgrade.
func (c *Context) IsDuplexRequest() bool {
	return c.upgrader != nil && websocket.IsWebSocketUpgrade(c.r)
}

// AcceptDuplex completes the websocket handshake, sending header with the
// 101 response.
func (c *Context) AcceptDuplex(header http.Header) (host.Channel, error) {
	if c.upgrader == nil {
		return nil, errNoUpgrader
	}
	conn, err := c.upgrader.Upgrade(c.w, c.r, header)
	// Upgrade replies with an HTTP error itself when the handshake fails.
	c.upgraded = true
	if err != nil {
		return nil, err
	}
	return newChannel(conn), nil
}

// output writes the buffered status before the first body byte.
type output struct {
	c *Context
}

func (o output) Write(p []byte) (int, error) {
	o.c.writeHeader()
	return o.c.w.Write(p)
}

// Flush sends the status and headers and flushes any buffered body.
func (o output) Flush() error {
	o.c.writeHeader()
	if f, ok := o.c.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
