package delivery

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kbukum/streamkit/source"
)

// Response is what a route handler returns: a status, headers and a body source.
type Response struct {
	Status int
	Header http.Header
	Body   source.Source
}

// NewResponse returns a response with the given status and body.
func NewResponse(status int, body source.Source) *Response {
	return &Response{Status: status, Header: make(http.Header), Body: body}
}

// Text returns an eager text/plain response.
func Text(status int, s string) *Response {
	return NewResponse(status, source.String(s)).
		WithHeader("Content-Type", "text/plain; charset=utf-8")
}

// Bytes returns an eager application/octet-stream response.
func Bytes(status int, b []byte) *Response {
	return NewResponse(status, source.Bytes(b)).
		WithHeader("Content-Type", "application/octet-stream")
}

// JSON returns an eager application/json response. Encoding failures are
// reported as a producer failure when the response is delivered.
func JSON(status int, v any) *Response {
	data, err := json.Marshal(v)
	if err != nil {
		return NewResponse(status, source.NewPush(func(_ context.Context, _ source.Emitter) error {
			return err
		}))
	}
	return NewResponse(status, source.Bytes(data)).
		WithHeader("Content-Type", "application/json; charset=utf-8")
}

// Stream returns a 200 response over src.
func Stream(src source.Source) *Response {
	return NewResponse(http.StatusOK, src)
}

// WithHeader sets a header, replacing existing values.
func (r *Response) WithHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
	return r
}

// AddHeader appends a header value, keeping existing ones.
func (r *Response) AddHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Add(key, value)
	return r
}

// contentLength is known only for eager bodies.
func (r *Response) contentLength() int64 {
	if e, ok := r.Body.(*source.Eager); ok {
		return e.Size()
	}
	return -1
}
