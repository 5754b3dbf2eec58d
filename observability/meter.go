package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/httpkit/logger"
)

// MeterConfig controls the OTLP metric exporter.
type MeterConfig struct {
	// Enabled toggles metrics entirely.
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP/HTTP collector endpoint, host:port.
	Endpoint string `mapstructure:"endpoint"`

	// Interval between metric exports.
	Interval time.Duration `mapstructure:"interval"`

	// Insecure disables TLS on the exporter connection.
	Insecure bool `mapstructure:"insecure"`
}

// DefaultMeterConfig returns settings suitable for local development.
func DefaultMeterConfig() MeterConfig {
	return MeterConfig{
		Enabled:  true,
		Endpoint: "localhost:4318",
		Interval: 15 * time.Second,
		Insecure: true,
	}
}

// InitMeter installs a global meter provider exporting OTLP over HTTP.
// The returned function flushes and shuts the provider down.
func InitMeter(ctx context.Context, serviceName, serviceVersion string, cfg MeterConfig) (func(context.Context) error, error) {
	log := logger.Get("observability")

	if !cfg.Enabled {
		log.Debug("metrics disabled")
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	res, err := newResource(ctx, serviceName, serviceVersion)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval))),
	)

	otel.SetMeterProvider(mp)

	log.Info("metrics initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", interval.String(),
	))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return mp.Shutdown(ctx)
	}, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	if name == "" {
		name = defaultTracerName
	}
	return otel.Meter(name)
}

// Metrics bundles the instruments recorded by the client transport.
type Metrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestActive   metric.Int64UpDownCounter
	retryTotal      metric.Int64Counter
	errorTotal      metric.Int64Counter
}

// NewMetrics creates the client instrument set on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.requestTotal, err = meter.Int64Counter("httpclient.request.total",
		metric.WithDescription("Completed request attempts"))
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}

	m.requestDuration, err = meter.Float64Histogram("httpclient.request.duration",
		metric.WithDescription("Request attempt duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	m.requestActive, err = meter.Int64UpDownCounter("httpclient.request.active",
		metric.WithDescription("Request attempts in flight"))
	if err != nil {
		return nil, fmt.Errorf("create active gauge: %w", err)
	}

	m.retryTotal, err = meter.Int64Counter("httpclient.retry.total",
		metric.WithDescription("Retry attempts beyond the first"))
	if err != nil {
		return nil, fmt.Errorf("create retry counter: %w", err)
	}

	m.errorTotal, err = meter.Int64Counter("httpclient.error.total",
		metric.WithDescription("Failed request attempts"))
	if err != nil {
		return nil, fmt.Errorf("create error counter: %w", err)
	}

	return m, nil
}

// RecordRequestStart marks an attempt in flight.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

// RecordRequest records a finished attempt. Status is the HTTP status code,
// or zero when the attempt failed before a response arrived.
func (m *Metrics) RecordRequest(ctx context.Context, service, method string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrService, service),
		attribute.String(AttrMethod, method),
		attribute.String(AttrStatusCode, strconv.Itoa(status)),
	)
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRetry counts an attempt past the first.
func (m *Metrics) RecordRetry(ctx context.Context, service, method string) {
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrService, service),
		attribute.String(AttrMethod, method),
	))
}

// RecordError counts a failed attempt by error type.
func (m *Metrics) RecordError(ctx context.Context, service, errType string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrService, service),
		attribute.String(AttrErrorType, errType),
	))
}
