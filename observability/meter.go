package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/seqkit/logger"
)

// Run statuses recorded on seq.run.total and on run spans.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
	// Engine describes the sequence engine the service runs.
	Engine EngineAttributes
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment, config.Engine)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded by sequence runs.
type Metrics struct {
	runTotal      metric.Int64Counter
	runDuration   metric.Float64Histogram
	runActive     metric.Int64UpDownCounter
	dispatchTotal metric.Int64Counter
	faultTotal    metric.Int64Counter
}

// NewMetrics creates the run instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runTotal, err := meter.Int64Counter(MetricRunTotal,
		metric.WithDescription("Total number of finished sequence runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRunTotal, err)
	}

	runDuration, err := meter.Float64Histogram(MetricRunDuration,
		metric.WithDescription("Duration of sequence runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRunDuration, err)
	}

	runActive, err := meter.Int64UpDownCounter(MetricRunActive,
		metric.WithDescription("Number of sequence runs currently enumerating"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricRunActive, err)
	}

	dispatchTotal, err := meter.Int64Counter(MetricDispatchTotal,
		metric.WithDescription("Step calls and inner loops dispatched off the consumer goroutine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricDispatchTotal, err)
	}

	faultTotal, err := meter.Int64Counter(MetricFaultTotal,
		metric.WithDescription("Faults recorded by sequence runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricFaultTotal, err)
	}

	return &Metrics{
		runTotal:      runTotal,
		runDuration:   runDuration,
		runActive:     runActive,
		dispatchTotal: dispatchTotal,
		faultTotal:    faultTotal,
	}, nil
}

// Metric names.
const (
	MetricRunTotal      = "seq.run.total"
	MetricRunDuration   = "seq.run.duration"
	MetricRunActive     = "seq.run.active"
	MetricDispatchTotal = "seq.dispatch.total"
	MetricFaultTotal    = "seq.fault.total"
)

// RecordRunStart increments the active run count.
func (m *Metrics) RecordRunStart(ctx context.Context, engine, mode string) {
	m.runActive.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEngine, engine),
		attribute.String(AttrMode, mode),
	))
}

// RecordRunEnd decrements active runs and records the finished run.
func (m *Metrics) RecordRunEnd(ctx context.Context, engine, mode, status string, duration time.Duration) {
	base := []attribute.KeyValue{
		attribute.String(AttrEngine, engine),
		attribute.String(AttrMode, mode),
	}
	m.runActive.Add(ctx, -1, metric.WithAttributes(base...))
	m.runTotal.Add(ctx, 1, metric.WithAttributes(append(base, attribute.String(AttrStatus, status))...))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(base...))
}

// RecordDispatch counts one unit of work handed to a goroutine or pool.
func (m *Metrics) RecordDispatch(ctx context.Context, engine, mode string) {
	m.dispatchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEngine, engine),
		attribute.String(AttrMode, mode),
	))
}

// RecordFault counts one recorded fault of the given kind.
func (m *Metrics) RecordFault(ctx context.Context, engine, kind string) {
	m.faultTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrEngine, engine),
		attribute.String("kind", kind),
	))
}
