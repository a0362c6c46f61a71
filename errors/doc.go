// Package errors provides the structured error taxonomy used by the
// streaming delivery pipeline: producer, transport and handler failures,
// each carrying an error code and a recommended HTTP status.
package errors
