// Package stream provides the deferred-commit response body writer.
package stream

import (
	"errors"
	"io"
	"net/http"
)

// Trigger wraps the host's outbound byte sink and runs a callback exactly once,
// at the first write attempt, before any bytes reach the sink. Writes, byte
// writes, string writes and flushes (including zero-length ones) all count as
// write attempts. Reads, seeks and closes pass straight through.
//
// A Trigger is owned by a single request and is not safe for concurrent use.
type Trigger struct {
	inner        io.Writer
	onFirstWrite func()
	started      bool
}

// New creates a Trigger over inner. onFirstWrite may be nil.
func New(inner io.Writer, onFirstWrite func()) *Trigger {
	return &Trigger{inner: inner, onFirstWrite: onFirstWrite}
}

func (t *Trigger) start() {
	if t.started {
		return
	}
	t.started = true
	if t.onFirstWrite != nil {
		t.onFirstWrite()
	}
}

// Started reports whether the first-write callback has been triggered.
func (t *Trigger) Started() bool {
	return t.started
}

// Unwrap returns the underlying sink.
func (t *Trigger) Unwrap() io.Writer {
	return t.inner
}

// Write fires the trigger if needed and writes p to the sink.
func (t *Trigger) Write(p []byte) (int, error) {
	t.start()
	return t.inner.Write(p)
}

// WriteByte fires the trigger if needed and writes a single byte.
func (t *Trigger) WriteByte(c byte) error {
	t.start()
	if bw, ok := t.inner.(io.ByteWriter); ok {
		return bw.WriteByte(c)
	}
	_, err := t.inner.Write([]byte{c})
	return err
}

// WriteString fires the trigger if needed and writes s.
func (t *Trigger) WriteString(s string) (int, error) {
	t.start()
	return io.WriteString(t.inner, s)
}

// Flush fires the trigger if needed and flushes the sink when it supports
// flushing. It is the zero-length commit used to force status and headers out.
func (t *Trigger) Flush() error {
	t.start()
	switch f := t.inner.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case http.Flusher:
		f.Flush()
	}
	return nil
}

// Read reads from the sink if it is readable.
func (t *Trigger) Read(p []byte) (int, error) {
	if r, ok := t.inner.(io.Reader); ok {
		return r.Read(p)
	}
	return 0, errors.ErrUnsupported
}

// Seek seeks the sink if it is seekable.
func (t *Trigger) Seek(offset int64, whence int) (int64, error) {
	if s, ok := t.inner.(io.Seeker); ok {
		return s.Seek(offset, whence)
	}
	return 0, errors.ErrUnsupported
}

// Close closes the sink if it is closable. Closing never fires the trigger.
func (t *Trigger) Close() error {
	if c, ok := t.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CanRead reports whether the sink supports Read.
func (t *Trigger) CanRead() bool {
	_, ok := t.inner.(io.Reader)
	return ok
}

// CanSeek reports whether the sink supports Seek.
func (t *Trigger) CanSeek() bool {
	_, ok := t.inner.(io.Seeker)
	return ok
}
