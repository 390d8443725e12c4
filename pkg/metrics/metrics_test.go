package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestCollectorObserve tests that observations reach the registry
func TestCollectorObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	config := DefaultConfig()
	config.Registerer = reg
	config.Tags = Tags{"service": "test"}

	c, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create collector: %v", err)
	}

	c.ObserveRequest("success", 10*time.Millisecond)
	c.ObserveRequest("success", 20*time.Millisecond)
	c.ObserveRequest("failure", time.Millisecond)
	c.ObserveCommit(false)
	c.ObserveCommit(true)
	c.ObserveDuplex("closed")

	if got := testutil.ToFloat64(c.requests.WithLabelValues("success")); got != 2 {
		t.Errorf("Expected 2 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("failure")); got != 1 {
		t.Errorf("Expected 1 failed request, got %v", got)
	}
	if got := testutil.ToFloat64(c.commits.WithLabelValues("forced")); got != 1 {
		t.Errorf("Expected 1 forced commit, got %v", got)
	}
	if got := testutil.ToFloat64(c.duplex.WithLabelValues("closed")); got != 1 {
		t.Errorf("Expected 1 closed duplex session, got %v", got)
	}

	// Const labels are applied to every series
	expected := `
# HELP sbridge_duplex_sessions_total Duplex sessions, by final state.
# TYPE sbridge_duplex_sessions_total counter
sbridge_duplex_sessions_total{service="test",state="closed"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "sbridge_duplex_sessions_total"); err != nil {
		t.Errorf("Unexpected metrics output: %v", err)
	}
}

// TestCollectorDuplicateRegistration tests that registering twice fails
func TestCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	config := DefaultConfig()
	config.Registerer = reg

	if _, err := New(config); err != nil {
		t.Fatalf("Failed to create collector: %v", err)
	}
	if _, err := New(config); err == nil {
		t.Error("Expected an error registering the same collectors twice")
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected MustNew to panic")
		}
	}()
	MustNew(config)
}

// TestNilCollector tests that a nil collector is a no-op
func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveRequest("success", time.Second)
	c.ObserveCommit(true)
	c.ObserveDuplex("aborted")
	if c.Handler() == nil {
		t.Error("Expected a handler from a nil collector")
	}
}

// TestCollectorHandler tests the exposition handler
func TestCollectorHandler(t *testing.T) {
	c, err := New(Config{Namespace: "bridge"})
	if err != nil {
		t.Fatalf("Failed to create collector: %v", err)
	}
	c.ObserveRequest("canceled", time.Millisecond)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `bridge_requests_total{outcome="canceled"} 1`) {
		t.Errorf("Expected request counter in output, got:\n%s", body)
	}
}
