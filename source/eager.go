package source

import (
	"os"

	"github.com/kbukum/streamkit/errors"
)

// Eager is a body that is fully materialized before delivery starts.
type Eager struct {
	once
	data []byte
	err  error
}

// Bytes returns an eager source over b. The slice is not copied.
func Bytes(b []byte) *Eager { return &Eager{data: b} }

// String returns an eager source over s.
func String(s string) *Eager { return &Eager{data: []byte(s)} }

// File reads the whole file at path. A read failure is kept and reported as
// a producer failure when the source is activated.
func File(path string) *Eager {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Eager{err: errors.Producer(err).WithDetail("path", path)}
	}
	return &Eager{data: data}
}

// Kind returns KindEager.
func (e *Eager) Kind() Kind { return KindEager }

// Data returns the body and any error recorded at creation.
func (e *Eager) Data() ([]byte, error) { return e.data, e.err }

// Size returns the body length, or -1 if the source failed at creation.
func (e *Eager) Size() int64 {
	if e.err != nil {
		return -1
	}
	return int64(len(e.data))
}

func (e *Eager) sealed() {}
