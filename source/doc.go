// Package source defines the body producers a streaming response can carry.
//
// A Source is one of three variants:
//
//   - *Eager holds the whole body in memory at creation (a byte slice or a file read).
//   - *Push runs a Start callback once; it emits chunks through an Emitter
//     and may keep emitting from deferred continuations.
//   - *Pull runs a Pull callback each time the delivery pipeline wants more
//     data. A pull step is never started while the previous one is still running.
//
// Every Source is single use. The delivery pipeline calls Claim before
// activating it, and a second Claim fails with SOURCE_CONSUMED.
//
// Producers signal the end of the stream explicitly: Close for completion,
// Error for failure. Returning an error from Start or Pull, or panicking,
// counts as a failure too.
package source
