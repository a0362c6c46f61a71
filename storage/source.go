package storage

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/source"
)

// Source returns a pull source streaming the object at p in chunks of
// chunkSize. The object is opened on the first pull.
func Source(st Storage, p string, chunkSize int) *source.Pull {
	return source.Lazy(func(ctx context.Context) (io.ReadCloser, error) {
		rc, err := st.Open(ctx, p)
		if err != nil {
			return nil, errors.Producer(err).WithDetail("path", p)
		}
		return rc, nil
	}, chunkSize)
}

// Response is a 200 streaming obj, with its content type when known.
func Response(st Storage, obj Object, chunkSize int) *delivery.Response {
	resp := delivery.NewResponse(http.StatusOK, Source(st, obj.Path, chunkSize))
	ct := obj.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	resp.WithHeader("Content-Type", ct)
	if !obj.LastModified.IsZero() {
		resp.WithHeader("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	return resp
}

// AsAppError maps storage errors onto the error taxonomy: a missing object
// is NOT_FOUND, a bad key BAD_REQUEST, anything else INTERNAL_ERROR.
func AsAppError(err error, p string) *errors.AppError {
	switch {
	case stderrors.Is(err, ErrNotFound):
		return errors.NotFound("object", p)
	case stderrors.Is(err, ErrInvalidPath):
		return errors.BadRequest("Invalid object path.")
	default:
		return errors.Internal(err)
	}
}
