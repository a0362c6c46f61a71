// Package delivery drives a response body from its source onto the wire.
//
// A Controller owns one response at a time per call: it activates the body
// source, moves chunks through a bounded buffer, writes them with a
// wire.Writer and decides what happens when the source fails.
//
// Failure handling depends on whether the response is committed:
//
//   - Before the first body byte is written, the failure is recovered. The
//     application error handler, if any, supplies a substitute response which
//     is delivered from scratch. Without a handler, or if the substitute
//     fails too, a default 500 response is sent.
//   - After the first body byte, the connection is aborted. The error handler
//     is not called.
//
// Transport failures, client disconnects and failures of the error handler
// itself always abort.
//
// State machine for one response:
//
//	Idle -> Activated -> Completed
//	                  -> FailedPreCommit -> Substituting -> Activated ...
//	                  -> FailedPostCommit -> Aborted
package delivery
