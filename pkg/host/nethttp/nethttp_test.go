package nethttp_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Suhaibinator/SBridge/pkg/adapter"
	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/duplex"
	"github.com/Suhaibinator/SBridge/pkg/environ"
	"github.com/Suhaibinator/SBridge/pkg/host/nethttp"
)

func newServer(t *testing.T, app common.AppFunc, opts nethttp.Options) *httptest.Server {
	t.Helper()
	config := adapter.DefaultConfig()
	config.Capabilities = nethttp.Capabilities()
	a, err := adapter.New(app, config)
	require.NoError(t, err)
	server := httptest.NewServer(nethttp.Handler(a, opts))
	t.Cleanup(server.Close)
	return server
}

func TestHandler_OrdinaryResponse(t *testing.T) {
	t.Parallel()

	t.Run("status_headers_and_body", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, func(env environ.Env) error {
			env.SetStatusCode(http.StatusCreated)
			env.ResponseHeaders().Add("X-Test", "a")
			env.ResponseHeaders().Add("X-Test", "b")
			_, err := io.WriteString(env.ResponseBody(), "created")
			return err
		}, nethttp.Options{})

		resp, err := http.Get(server.URL + "/items")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, []string{"a", "b"}, resp.Header.Values("X-Test"))
		assert.Equal(t, "created", string(body))
	})

	t.Run("forced_commit", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, func(env environ.Env) error {
			env.SetStatusCode(http.StatusAccepted)
			env.ResponseHeaders().Set("X-Queued", "1")
			return nil
		}, nethttp.Options{})

		resp, err := http.Post(server.URL, "text/plain", strings.NewReader("job"))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("X-Queued"))
	})

	t.Run("request_data", func(t *testing.T) {
		t.Parallel()

		envs := make(chan environ.Env, 1)
		server := newServer(t, func(e environ.Env) error {
			envs <- e
			body, err := io.ReadAll(e.RequestBody())
			if err != nil {
				return err
			}
			_, err = e.ResponseBody().Write(body)
			return err
		}, nethttp.Options{ApplicationPath: "/api"})

		req, err := http.NewRequest(http.MethodPut, server.URL+"/api/things?x=1", strings.NewReader("payload"))
		require.NoError(t, err)
		req.Header.Set("X-Custom", "yes")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(body))

		env := <-envs
		assert.Equal(t, http.MethodPut, env.Method())
		assert.Equal(t, "http", env.Scheme())
		assert.Equal(t, "/api", env.PathBase())
		assert.Equal(t, "/things", env.Path())
		assert.Equal(t, "x=1", env.QueryString())
		assert.Equal(t, "HTTP/1.1", env.Protocol())
		assert.Equal(t, "yes", env.RequestHeaders().Get("x-custom"))
		assert.NotEmpty(t, env.RequestHeaders().Get("host"))
		assert.Equal(t, "127.0.0.1", env["server.REMOTE_ADDR"])
		assert.Equal(t, "PUT", env["server.REQUEST_METHOD"])
		assert.Equal(t, "off", env["server.HTTPS"])
		assert.NotContains(t, env, "server.HTTP_X_CUSTOM")
		assert.NotContains(t, env, "server.ALL_HTTP")
	})
}

func TestHandler_ErrorPath(t *testing.T) {
	t.Parallel()

	t.Run("failure_before_commit", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zapcore.DebugLevel)
		server := newServer(t, func(env environ.Env) error {
			env.ResponseHeaders().Set("X-Never", "sent")
			return errors.New("boom")
		}, nethttp.Options{Logger: zap.New(core)})

		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-Never"))
		assert.Equal(t, 1, logs.FilterMessage("Request failed").Len())
	})

	t.Run("failure_after_commit", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zapcore.DebugLevel)
		server := newServer(t, func(env environ.Env) error {
			if _, err := io.WriteString(env.ResponseBody(), "partial"); err != nil {
				return err
			}
			return errors.New("late failure")
		}, nethttp.Options{Logger: zap.New(core)})

		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "partial", string(body))
		assert.Equal(t, 1, logs.FilterMessage("Request failed after the response was committed").Len())
	})

	t.Run("cancellation", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zapcore.DebugLevel)
		a, err := adapter.New(func(environ.Env) error { return context.Canceled }, adapter.DefaultConfig())
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		nethttp.Handler(a, nethttp.Options{Logger: zap.New(core)}).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, 0, rec.Body.Len())
		assert.False(t, rec.Flushed)
		assert.Equal(t, 1, logs.FilterMessage("Request canceled").Len())
	})
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

// fragmentingEcho echoes every message back using a small buffer, so longer
// messages travel as several fragments.
func fragmentingEcho(env environ.Env) error {
	ctx := env.CallCancelled()
	buf := make([]byte, 4)
	for {
		r, err := duplex.Receive(env)(ctx, buf)
		if err != nil {
			return err
		}
		if r.Opcode == duplex.OpClose {
			return nil
		}
		if err := duplex.Send(env)(ctx, buf[:r.Count], r.Opcode, r.EndOfMessage); err != nil {
			return err
		}
	}
}

func TestHandler_WebSocket(t *testing.T) {
	t.Parallel()

	t.Run("echo_and_close", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, func(env environ.Env) error {
			assert.Equal(t, environ.DuplexSupport, env[environ.DuplexSupportKey])
			duplex.Accept(env, fragmentingEcho)
			return nil
		}, nethttp.Options{Upgrader: nethttp.DefaultUpgrader()})

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws"), nil)
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello world")))
		mt, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, mt)
		assert.Equal(t, "hello world", string(msg))

		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
		mt, msg, err = conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, mt)
		assert.Equal(t, []byte{1, 2, 3}, msg)

		// The peer starts the closing handshake; the bridge completes it.
		require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye")))
		_, _, err = conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal closure, got %v", err)
	})

	t.Run("handler_returns_while_open", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, func(env environ.Env) error {
			duplex.Accept(env, func(environ.Env) error { return nil })
			return nil
		}, nethttp.Options{Upgrader: nethttp.DefaultUpgrader()})

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws"), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, _, err = conn.ReadMessage()
		require.Error(t, err)
		assert.False(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected an abort, got %v", err)
	})

	t.Run("response_headers_sent_with_handshake", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, func(env environ.Env) error {
			env.ResponseHeaders().Set("X-Session", "42")
			duplex.Accept(env, func(environ.Env) error { return nil })
			return nil
		}, nethttp.Options{Upgrader: nethttp.DefaultUpgrader()})

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws"), nil)
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, "42", resp.Header.Get("X-Session"))
	})

	t.Run("upgrades_disabled", func(t *testing.T) {
		t.Parallel()

		server := newServer(t, func(env environ.Env) error {
			assert.NotContains(t, env, environ.DuplexSupportKey)
			duplex.Accept(env, fragmentingEcho)
			return nil
		}, nethttp.Options{})

		_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws"), nil)
		require.Error(t, err)
		if resp != nil {
			assert.NotEqual(t, http.StatusSwitchingProtocols, resp.StatusCode)
		}
	})
}
