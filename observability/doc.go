// Package observability wires OpenTelemetry tracing and metrics, plus a
// Prometheus registry, into response delivery.
//
// Telemetry is a component: Start installs OTLP tracer and meter providers
// when export is enabled, Stop flushes them.
//
// Delivery metrics implement delivery.Observer and can be passed straight to
// a controller:
//
//	tel, _ := observability.NewTelemetry(cfg, "streamserve", "1.0.0", "production")
//	ctrl := delivery.New(dcfg, delivery.WithObserver(tel.Observer()))
//
// With Prometheus enabled, tel.MetricsHandler() serves the /metrics endpoint.
package observability
