package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromMetrics exposes delivery metrics in Prometheus format. It satisfies
// delivery.Observer.
type PromMetrics struct {
	registry *prometheus.Registry

	DeliveriesTotal    *prometheus.CounterVec
	DeliveriesInFlight prometheus.Gauge
	BytesTotal         prometheus.Counter
	ChunksTotal        prometheus.Counter
	SubstitutionsTotal prometheus.Counter
	AbortsTotal        prometheus.Counter
	DeliveryDuration   *prometheus.HistogramVec
	SSEClients         prometheus.Gauge
	SSEEventsTotal     *prometheus.CounterVec
}

// NewPromMetrics registers the delivery metrics on a fresh registry, along
// with the Go runtime and process collectors.
func NewPromMetrics(namespace string) *PromMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PromMetrics{
		registry: reg,
		DeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Total number of finished deliveries",
			},
			[]string{"outcome", "substituted"},
		),
		DeliveriesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "deliveries_in_flight",
				Help:      "Number of deliveries currently being written",
			},
		),
		BytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delivery_bytes_total",
				Help:      "Total body bytes written to clients",
			},
		),
		ChunksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delivery_chunks_total",
				Help:      "Total body chunks written to clients",
			},
		),
		SubstitutionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delivery_substitutions_total",
				Help:      "Responses replaced by an error response before commit",
			},
		),
		AbortsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delivery_aborts_total",
				Help:      "Deliveries that ended with an aborted connection",
			},
		),
		DeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delivery_duration_seconds",
				Help:      "Delivery duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"outcome"},
		),
		SSEClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sse_clients",
				Help:      "Number of connected SSE clients",
			},
		),
		SSEEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sse_events_total",
				Help:      "Events published to the SSE hub",
			},
			[]string{"type"},
		),
	}
}

// Registry returns the registry holding the metrics.
func (m *PromMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *PromMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// DeliveryStarted increments the in-flight gauge.
func (m *PromMetrics) DeliveryStarted(context.Context) {
	m.DeliveriesInFlight.Inc()
}

// ChunkWritten records one chunk of n bytes.
func (m *PromMetrics) ChunkWritten(_ context.Context, n int) {
	m.ChunksTotal.Inc()
	m.BytesTotal.Add(float64(n))
}

// DeliveryFinished records the outcome of a delivery.
func (m *PromMetrics) DeliveryFinished(_ context.Context, outcome string, substituted bool, _ int64, d time.Duration) {
	sub := "false"
	if substituted {
		sub = "true"
		m.SubstitutionsTotal.Inc()
	}
	if outcome == "aborted" {
		m.AbortsTotal.Inc()
	}
	m.DeliveriesInFlight.Dec()
	m.DeliveriesTotal.WithLabelValues(outcome, sub).Inc()
	m.DeliveryDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ClientConnected tracks SSE hub membership.
func (m *PromMetrics) ClientConnected() { m.SSEClients.Inc() }

// ClientDisconnected tracks SSE hub membership.
func (m *PromMetrics) ClientDisconnected() { m.SSEClients.Dec() }

// EventPublished counts a published SSE event.
func (m *PromMetrics) EventPublished(eventType string) {
	m.SSEEventsTotal.WithLabelValues(eventType).Inc()
}
