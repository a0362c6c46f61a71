package wire

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/kbukum/streamkit/errors"
)

var (
	// ErrCommitted is returned by Prepare once body bytes are on the wire.
	ErrCommitted = stderrors.New("wire: response already committed")
	// ErrFinished is returned by Write after Finalize or Abort.
	ErrFinished = stderrors.New("wire: response already finished")
)

// Writer writes one response to a Conn. It is not safe for concurrent use;
// the delivery controller owns it for the lifetime of the response.
type Writer struct {
	conn Conn
	base http.Header

	status        int
	header        http.Header
	contentLength int64

	headerSent bool
	committed  bool
	finished   bool
	bytes      int64
	chunks     int
}

// NewWriter returns a writer over conn. Headers already set on conn (by
// middleware, for instance) survive every Prepare.
func NewWriter(conn Conn) *Writer {
	return &Writer{
		conn:          conn,
		base:          conn.Header().Clone(),
		status:        http.StatusOK,
		contentLength: -1,
	}
}

// Prepare sets the pending status and headers. contentLength < 0 means
// unknown, which selects chunked framing. Calling Prepare again before
// commit replaces the previous status and headers entirely.
func (w *Writer) Prepare(status int, header http.Header, contentLength int64) error {
	if w.committed || w.headerSent {
		return ErrCommitted
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.status = status
	w.header = header.Clone()
	w.contentLength = contentLength
	return nil
}

func (w *Writer) sendHeader() {
	h := w.conn.Header()
	for k := range h {
		delete(h, k)
	}
	for k, v := range w.base {
		h[k] = append([]string(nil), v...)
	}
	for k, v := range w.header {
		h[k] = append([]string(nil), v...)
	}
	if w.contentLength >= 0 && bodyAllowed(w.status) {
		h.Set("Content-Length", strconv.FormatInt(w.contentLength, 10))
	}
	w.conn.WriteHeader(w.status)
	w.headerSent = true
}

// Write sends chunk to the client and flushes it. The response is committed
// once any byte was accepted by the connection.
func (w *Writer) Write(chunk []byte) error {
	if w.finished {
		return ErrFinished
	}
	if len(chunk) == 0 {
		return nil
	}
	if !w.headerSent {
		w.sendHeader()
	}
	if !bodyAllowed(w.status) {
		return nil
	}
	n, err := w.conn.Write(chunk)
	if n > 0 {
		w.committed = true
		w.bytes += int64(n)
	}
	if err != nil {
		return errors.Transport(err)
	}
	w.chunks++
	if err := w.conn.Flush(); err != nil {
		return errors.Transport(err)
	}
	return nil
}

// Finalize completes the response. Headers are sent if no body byte was written.
func (w *Writer) Finalize() error {
	if w.finished {
		return ErrFinished
	}
	if !w.headerSent {
		w.sendHeader()
	}
	w.finished = true
	if err := w.conn.Flush(); err != nil {
		return errors.Transport(err)
	}
	return nil
}

// Abort terminates the connection without a well-formed end of response.
func (w *Writer) Abort() error {
	if w.finished {
		return nil
	}
	w.finished = true
	return w.conn.Abort()
}

// Committed reports whether any body byte reached the connection.
func (w *Writer) Committed() bool { return w.committed }

// HeaderSent reports whether the status line went out.
func (w *Writer) HeaderSent() bool { return w.headerSent }

// Status returns the pending or sent status code.
func (w *Writer) Status() int { return w.status }

// BytesWritten returns the number of body bytes accepted by the connection.
func (w *Writer) BytesWritten() int64 { return w.bytes }

// Chunks returns the number of chunks fully written.
func (w *Writer) Chunks() int { return w.chunks }

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
