// Package wire writes a response onto a client connection and tracks
// whether the response has been committed.
//
// A response is committed the moment the first body byte is written. Until
// then the status and headers are only pending and can be replaced by a
// new Prepare call, which is how an error response substitutes a failed one.
// After commit the only ways out are Finalize and Abort.
package wire
