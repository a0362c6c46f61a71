package wire

import (
	stderrors "errors"
	"net/http"
	"time"
)

// Conn is the transport a Writer drives. It mirrors the subset of
// http.ResponseWriter the writer needs, plus Abort.
type Conn interface {
	Header() http.Header
	WriteHeader(status int)
	Write(p []byte) (int, error)
	// Flush pushes buffered bytes to the client.
	Flush() error
	// Abort terminates the connection without finishing the response framing.
	Abort() error
}

// ErrAbortUnsupported is returned by HTTPConn.Abort when the underlying
// writer cannot be hijacked (HTTP/2, test recorders). Callers then panic
// with http.ErrAbortHandler so net/http resets the stream.
var ErrAbortUnsupported = stderrors.New("wire: connection cannot be aborted")

// HTTPConn adapts an http.ResponseWriter to Conn.
type HTTPConn struct {
	w        http.ResponseWriter
	rc       *http.ResponseController
	hijacked bool
}

// NewHTTPConn wraps w. The write deadline is cleared so long-lived streams
// are not cut off by the server's WriteTimeout.
func NewHTTPConn(w http.ResponseWriter) *HTTPConn {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	return &HTTPConn{w: w, rc: rc}
}

// Header returns the response headers.
func (c *HTTPConn) Header() http.Header { return c.w.Header() }

// WriteHeader sends the status line and headers.
func (c *HTTPConn) WriteHeader(status int) { c.w.WriteHeader(status) }

// Write writes body bytes.
func (c *HTTPConn) Write(p []byte) (int, error) { return c.w.Write(p) }

// Flush flushes buffered data to the client.
func (c *HTTPConn) Flush() error {
	err := c.rc.Flush()
	if stderrors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

// Abort hijacks the underlying connection and closes it. Bytes already
// written are flushed first; the chunked terminator is never sent.
func (c *HTTPConn) Abort() error {
	conn, _, err := c.rc.Hijack()
	if err != nil {
		if stderrors.Is(err, http.ErrNotSupported) {
			return ErrAbortUnsupported
		}
		return err
	}
	c.hijacked = true
	return conn.Close()
}

// Hijacked reports whether Abort took over the connection. Once hijacked,
// the ResponseWriter must not be used again.
func (c *HTTPConn) Hijacked() bool { return c.hijacked }
