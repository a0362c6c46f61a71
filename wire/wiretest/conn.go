// Package wiretest provides an in-memory wire.Conn for tests.
package wiretest

import (
	"bytes"
	stderrors "errors"
	"net/http"
	"sync"
)

// ErrBrokenPipe is returned by a Conn configured to fail.
var ErrBrokenPipe = stderrors.New("wiretest: broken pipe")

// Conn records everything written to it. It is safe for concurrent use.
type Conn struct {
	mu      sync.Mutex
	header  http.Header
	sent    http.Header
	status  int
	body    bytes.Buffer
	writes  int
	flushes int
	aborted bool

	// FailOnWrite makes the Nth Write (1-based) fail. Zero never fails.
	FailOnWrite int
	// PartialOnFail makes the failing Write accept this many bytes first.
	PartialOnFail int
	// AbortErr is returned by Abort.
	AbortErr error
	// OnWrite, if set, runs before each Write with its 1-based index.
	OnWrite func(n int)
}

// NewConn returns an empty recording connection.
func NewConn() *Conn {
	return &Conn{header: make(http.Header)}
}

// Header returns the mutable response headers.
func (c *Conn) Header() http.Header { return c.header }

// WriteHeader records the status and a snapshot of the headers.
func (c *Conn) WriteHeader(status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != 0 {
		return
	}
	c.status = status
	c.sent = c.header.Clone()
}

// Write appends p to the recorded body.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.writes++
	n := c.writes
	hook := c.OnWrite
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		return 0, ErrBrokenPipe
	}
	if c.FailOnWrite > 0 && n >= c.FailOnWrite {
		k := c.PartialOnFail
		if k > len(p) {
			k = len(p)
		}
		c.body.Write(p[:k])
		return k, ErrBrokenPipe
	}
	if c.status == 0 {
		c.status = http.StatusOK
		c.sent = c.header.Clone()
	}
	return c.body.Write(p)
}

// Flush counts flushes.
func (c *Conn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

// Abort marks the connection as aborted.
func (c *Conn) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted = true
	return c.AbortErr
}

// Status returns the status written, or 0.
func (c *Conn) Status() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SentHeader returns the headers as they were when the status was written.
func (c *Conn) SentHeader() http.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent.Clone()
}

// Body returns the bytes written so far.
func (c *Conn) Body() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body.String()
}

// Writes returns the number of Write calls.
func (c *Conn) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// Flushes returns the number of Flush calls.
func (c *Conn) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

// Aborted reports whether Abort was called.
func (c *Conn) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}
