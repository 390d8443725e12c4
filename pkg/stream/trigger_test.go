package stream

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// TestTriggerFiresOnceBeforeFirstWrite tests the one-shot latch
func TestTriggerFiresOnceBeforeFirstWrite(t *testing.T) {
	var buf bytes.Buffer
	calls := 0
	tr := New(&buf, func() {
		calls++
		if buf.Len() != 0 {
			t.Errorf("Expected callback to run before bytes reach the sink, sink had %d bytes", buf.Len())
		}
	})

	if tr.Started() {
		t.Error("Expected trigger not to be started")
	}

	if _, err := tr.Write([]byte("a")); err != nil {
		t.Fatalf("Write returned an error: %v", err)
	}
	if err := tr.WriteByte('b'); err != nil {
		t.Fatalf("WriteByte returned an error: %v", err)
	}
	if _, err := tr.WriteString("c"); err != nil {
		t.Fatalf("WriteString returned an error: %v", err)
	}
	if err := tr.Flush(); err != nil {
		t.Fatalf("Flush returned an error: %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected callback to fire once, got %d", calls)
	}
	if !tr.Started() {
		t.Error("Expected trigger to be started")
	}
	if buf.String() != "abc" {
		t.Errorf("Expected %q, got %q", "abc", buf.String())
	}
}

// TestTriggerNeverFiresWithoutWrite tests that reads and closes do not fire the trigger
func TestTriggerNeverFiresWithoutWrite(t *testing.T) {
	calls := 0
	buf := bytes.NewBufferString("payload")
	tr := New(buf, func() { calls++ })

	p := make([]byte, 3)
	if _, err := tr.Read(p); err != nil {
		t.Fatalf("Read returned an error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close returned an error: %v", err)
	}

	if calls != 0 {
		t.Errorf("Expected 0 callback invocations, got %d", calls)
	}
	if tr.Started() {
		t.Error("Expected trigger not to be started")
	}
}

// TestTriggerZeroLengthFlush tests that a flush with no data commits
func TestTriggerZeroLengthFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	calls := 0
	tr := New(rec, func() { calls++ })

	if err := tr.Flush(); err != nil {
		t.Fatalf("Flush returned an error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 callback invocation, got %d", calls)
	}
	if !rec.Flushed {
		t.Error("Expected the underlying http.Flusher to be flushed")
	}

	// Zero-length write after the commit does not re-trigger
	if _, err := tr.Write(nil); err != nil {
		t.Fatalf("Write returned an error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 callback invocation, got %d", calls)
	}
}

// TestTriggerNilCallback tests that a nil callback is allowed
func TestTriggerNilCallback(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, nil)
	if _, err := tr.Write([]byte("x")); err != nil {
		t.Fatalf("Write returned an error: %v", err)
	}
	if !tr.Started() {
		t.Error("Expected trigger to be started")
	}
	if tr.Unwrap() != &buf {
		t.Error("Expected Unwrap to return the sink")
	}
}

// writeOnly hides every method except Write
type writeOnly struct{ w io.Writer }

func (w writeOnly) Write(p []byte) (int, error) { return w.w.Write(p) }

// TestTriggerUnsupportedPassThrough tests pass-through on a write-only sink
func TestTriggerUnsupportedPassThrough(t *testing.T) {
	var buf bytes.Buffer
	tr := New(writeOnly{&buf}, nil)

	if tr.CanRead() || tr.CanSeek() {
		t.Error("Expected write-only sink not to be readable or seekable")
	}
	if _, err := tr.Read(make([]byte, 1)); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported from Read, got %v", err)
	}
	if _, err := tr.Seek(0, io.SeekStart); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported from Seek, got %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Expected Close to be a no-op, got %v", err)
	}

	// WriteByte falls back to Write when the sink is not an io.ByteWriter
	if err := tr.WriteByte('z'); err != nil {
		t.Fatalf("WriteByte returned an error: %v", err)
	}
	if buf.String() != "z" {
		t.Errorf("Expected %q, got %q", "z", buf.String())
	}
}

// TestTriggerSeekPassThrough tests seeking a file sink
func TestTriggerSeekPassThrough(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "body"))
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	calls := 0
	tr := New(f, func() { calls++ })
	if !tr.CanSeek() || !tr.CanRead() {
		t.Error("Expected file sink to be readable and seekable")
	}

	if _, err := tr.WriteString("hello"); err != nil {
		t.Fatalf("WriteString returned an error: %v", err)
	}
	if pos, err := tr.Seek(0, io.SeekStart); err != nil || pos != 0 {
		t.Fatalf("Seek returned %d, %v", pos, err)
	}
	got, err := io.ReadAll(tr)
	if err != nil {
		t.Fatalf("ReadAll returned an error: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Expected %q, got %q", "hello", string(got))
	}
	if calls != 1 {
		t.Errorf("Expected 1 callback invocation, got %d", calls)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close returned an error: %v", err)
	}
}
