package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/logger"
)

// Telemetry is the component owning the exporters and delivery metrics of a service.
type Telemetry struct {
	cfg         Config
	service     string
	version     string
	environment string

	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	metrics *DeliveryMetrics
	prom    *PromMetrics
}

var _ component.Component = (*Telemetry)(nil)

// NewTelemetry creates the telemetry component. Instruments are created on
// the global meter, which forwards to the real provider once Start installs it.
func NewTelemetry(cfg Config, service, version, environment string) (*Telemetry, error) {
	cfg.ApplyDefaults()
	metrics, err := NewDeliveryMetrics(otel.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	t := &Telemetry{
		cfg:         cfg,
		service:     service,
		version:     version,
		environment: environment,
		metrics:     metrics,
	}
	if cfg.Prometheus {
		t.prom = NewPromMetrics(cfg.Namespace)
	}
	return t, nil
}

// Name implements component.Component.
func (t *Telemetry) Name() string { return "telemetry" }

// Start installs the OTLP tracer and meter providers as the globals when
// export is enabled.
func (t *Telemetry) Start(ctx context.Context) error {
	if !t.cfg.Enabled {
		return nil
	}
	res, err := serviceResource(ctx, t.service, t.version, t.environment)
	if err != nil {
		return fmt.Errorf("telemetry resource: %w", err)
	}
	tp, err := newTracerProvider(ctx, t.cfg, res)
	if err != nil {
		return err
	}
	mp, err := newMeterProvider(ctx, t.cfg, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	t.tp, t.mp = tp, mp

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logger.Info("Telemetry export started", logger.Fields(
		"endpoint", t.cfg.Endpoint,
		"sample_rate", t.cfg.SampleRate,
		"interval", t.cfg.Interval.String(),
	))
	return nil
}

// Stop flushes and shuts down the providers.
func (t *Telemetry) Stop(ctx context.Context) error {
	var errs []error
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer: %w", err))
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown: %v", errs)
	}
	return nil
}

// Health implements component.Component.
func (t *Telemetry) Health(context.Context) component.Health {
	return component.Healthy(t.Name())
}

// Describe implements component.Describable.
func (t *Telemetry) Describe() component.Description {
	details := "otlp=off"
	if t.cfg.Enabled {
		details = fmt.Sprintf("otlp=%s sample=%.2f", t.cfg.Endpoint, t.cfg.SampleRate)
	}
	if t.prom != nil {
		details += " prometheus=on"
	}
	return component.Description{Name: "Telemetry", Type: "telemetry", Details: details}
}

// Observer returns the delivery observer feeding every enabled backend.
func (t *Telemetry) Observer() delivery.Observer {
	if t.prom == nil {
		return t.metrics
	}
	return delivery.Observers(t.metrics, t.prom)
}

// Prometheus returns the Prometheus metrics, or nil when disabled.
func (t *Telemetry) Prometheus() *PromMetrics { return t.prom }

// MetricsHandler serves /metrics, or nil when Prometheus is disabled.
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.prom == nil {
		return nil
	}
	return t.prom.Handler()
}
