// Package component defines the lifecycle contract shared by the long-lived
// parts of a streamkit service: the HTTP server, the SSE hub and the
// telemetry exporters.
//
// A Registry starts components in registration order, stops them in reverse
// order and aggregates their health for the /health endpoint.
package component
