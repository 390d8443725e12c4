package hosttest

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/Suhaibinator/SBridge/pkg/host"
)

var (
	_ host.Context        = (*Context)(nil)
	_ host.Context        = DuplexContext{}
	_ host.DuplexAcceptor = DuplexContext{}
	_ host.Channel        = (*Channel)(nil)
)

// TestContextRecordsOutput tests that writes land in Written and the commit
// snapshot is taken at SetStatus
func TestContextRecordsOutput(t *testing.T) {
	c := NewContext("/a")
	body, err := io.ReadAll(c.Body())
	if err != nil || len(body) != 0 {
		t.Errorf("Expected an empty request body, got %q (%v)", body, err)
	}

	c.SetStatus(http.StatusCreated)
	if _, err := io.WriteString(c.Output(), "hello"); err != nil {
		t.Fatalf("Expected no write error, got %v", err)
	}
	c.AddHeader("x-one", "1")

	if c.Status() != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, c.Status())
	}
	if c.BodyAtFirstCommit != 0 {
		t.Errorf("Expected 0 bytes at commit, got %d", c.BodyAtFirstCommit)
	}
	if c.Written.String() != "hello" {
		t.Errorf("Expected written %q, got %q", "hello", c.Written.String())
	}
	if got := c.HeaderValues("X-One"); len(got) != 1 || got[0] != "1" {
		t.Errorf("Expected header values [1], got %v", got)
	}

	c.NoOutput = true
	if c.Output() != nil {
		t.Error("Expected no output writer when NoOutput is set")
	}
}

// TestDuplexContextPromotesContext tests that the wrapper keeps the request
// context and records the accepted handshake on the wrapped recorder
func TestDuplexContextPromotesContext(t *testing.T) {
	type key struct{}
	c := NewContext("/ws")
	c.Ctx = context.WithValue(context.Background(), key{}, "v")
	c.DuplexRequest = true
	ch := NewChannel()
	c.DuplexChannel = ch

	d := NewDuplexContext(c)
	if d.Context().Value(key{}) != "v" {
		t.Error("Expected the wrapped request context")
	}
	if !d.IsDuplexRequest() {
		t.Error("Expected a duplex request")
	}
	if d.Recorder() != c {
		t.Error("Expected Recorder to return the wrapped Context")
	}

	header := http.Header{"Sec-Websocket-Protocol": {"chat"}}
	got, err := d.AcceptDuplex(header)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != ch {
		t.Error("Expected the scripted channel")
	}
	if c.AcceptedHeader.Get("Sec-Websocket-Protocol") != "chat" {
		t.Errorf("Expected the accepted header on the recorder, got %v", c.AcceptedHeader)
	}
}
