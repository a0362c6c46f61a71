package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// newMeterProvider builds a provider pushing metrics to the OTLP HTTP
// endpoint every cfg.Interval.
func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	), nil
}

// DeliveryMetrics records delivery lifecycle events as OpenTelemetry
// instruments. It satisfies delivery.Observer.
type DeliveryMetrics struct {
	total         metric.Int64Counter
	active        metric.Int64UpDownCounter
	bytes         metric.Int64Counter
	chunks        metric.Int64Counter
	substitutions metric.Int64Counter
	aborts        metric.Int64Counter
	duration      metric.Float64Histogram
}

// NewDeliveryMetrics creates the delivery instruments on meter.
func NewDeliveryMetrics(meter metric.Meter) (*DeliveryMetrics, error) {
	total, err := meter.Int64Counter("delivery.total",
		metric.WithDescription("Finished deliveries by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivery.total counter: %w", err)
	}

	active, err := meter.Int64UpDownCounter("delivery.active",
		metric.WithDescription("Deliveries currently in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivery.active gauge: %w", err)
	}

	bytes, err := meter.Int64Counter("delivery.bytes",
		metric.WithDescription("Body bytes written to clients"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivery.bytes counter: %w", err)
	}

	chunks, err := meter.Int64Counter("delivery.chunks",
		metric.WithDescription("Body chunks written to clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivery.chunks counter: %w", err)
	}

	substitutions, err := meter.Int64Counter("delivery.substitutions",
		metric.WithDescription("Responses replaced by an error response before commit"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivery.substitutions counter: %w", err)
	}

	aborts, err := meter.Int64Counter("delivery.aborts",
		metric.WithDescription("Deliveries that ended with an aborted connection"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivery.aborts counter: %w", err)
	}

	duration, err := meter.Float64Histogram("delivery.duration",
		metric.WithDescription("Duration of deliveries in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivery.duration histogram: %w", err)
	}

	return &DeliveryMetrics{
		total:         total,
		active:        active,
		bytes:         bytes,
		chunks:        chunks,
		substitutions: substitutions,
		aborts:        aborts,
		duration:      duration,
	}, nil
}

// DeliveryStarted increments the in-flight count.
func (m *DeliveryMetrics) DeliveryStarted(ctx context.Context) {
	m.active.Add(ctx, 1)
}

// ChunkWritten records one chunk of n bytes.
func (m *DeliveryMetrics) ChunkWritten(ctx context.Context, n int) {
	m.chunks.Add(ctx, 1)
	m.bytes.Add(ctx, int64(n))
}

// DeliveryFinished records the outcome of a delivery.
func (m *DeliveryMetrics) DeliveryFinished(ctx context.Context, outcome string, substituted bool, _ int64, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("substituted", substituted),
	)
	m.active.Add(ctx, -1)
	m.total.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	if substituted {
		m.substitutions.Add(ctx, 1)
	}
	if outcome == "aborted" {
		m.aborts.Add(ctx, 1)
	}
}
