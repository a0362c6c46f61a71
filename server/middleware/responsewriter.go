package middleware

import (
	"bufio"
	"net"
	"net/http"
)

// statusWriter records the status and body size of a response. It passes
// Flush and Hijack through so streaming deliveries can flush per chunk and
// abort by closing the connection.
type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
	hijacked    bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	n, err := sw.ResponseWriter.Write(b)
	sw.bytes += int64(n)
	return n, err
}

// FlushError flushes the underlying writer, reporting failures.
func (sw *statusWriter) FlushError() error {
	sw.wroteHeader = true
	return http.NewResponseController(sw.ResponseWriter).Flush()
}

// Flush implements http.Flusher.
func (sw *statusWriter) Flush() {
	_ = sw.FlushError()
}

// Hijack implements http.Hijacker. It returns http.ErrNotSupported when the
// underlying writer cannot be hijacked, e.g. on HTTP/2.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(sw.ResponseWriter).Hijack()
	if err == nil {
		sw.hijacked = true
	}
	return conn, rw, err
}

// Unwrap lets http.ResponseController reach the original writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
