// Package server is the HTTP front of the delivery pipeline, built on Gin.
//
// Ordinary routes are plain Gin handlers. Streaming routes are registered
// with Stream: the handler returns a *delivery.Response and the server runs
// it through the delivery controller, which owns the status line, the body
// and the failure handling. A failure after the first body byte aborts the
// connection, so clients see a truncated transfer rather than a clean end.
//
// Server-wide middleware (server/middleware) wraps the root handler:
//
//   - Recovery: JSON 500 before commit, connection abort after
//   - RequestID: X-Request-Id propagation into logs
//   - CORS: origin checks and preflight answers
//   - BodySizeLimit: request body cap
//   - RequestLogger: status, size and duration per request
//
// Streaming routes additionally pass through StreamLimit, a bulkhead on
// concurrent deliveries. Built-in endpoints (server/endpoint) are /health,
// /live, /ready and /metrics.
package server
