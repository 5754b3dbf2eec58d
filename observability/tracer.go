package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/httpkit/logger"
)

// defaultTracerName is the instrumentation scope used when callers do not
// supply their own tracer.
const defaultTracerName = "github.com/kbukum/httpkit"

// Span names for the client pipeline.
const (
	SpanExchange = "httpclient.exchange"
	SpanAttempt  = "httpclient.attempt"
)

// Attribute keys recorded on client spans and metrics.
const (
	AttrService    = "httpclient.service"
	AttrMethod     = "http.request.method"
	AttrURL        = "url.path"
	AttrStatusCode = "http.response.status_code"
	AttrAttempt    = "httpclient.attempt"
	AttrExchangeID = "httpclient.exchange_id"
	AttrErrorType  = "error.type"
)

// TracerConfig controls the OTLP trace exporter.
type TracerConfig struct {
	// Enabled toggles tracing entirely. When false InitTracer installs a
	// no-op provider and returns a no-op shutdown.
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP/HTTP collector endpoint, host:port.
	Endpoint string `mapstructure:"endpoint"`

	// SamplingRate in [0,1]. 0 disables sampling, 1 samples everything.
	SamplingRate float64 `mapstructure:"sampling_rate"`

	// Insecure disables TLS on the exporter connection.
	Insecure bool `mapstructure:"insecure"`
}

// DefaultTracerConfig returns settings suitable for local development.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:      true,
		Endpoint:     "localhost:4318",
		SamplingRate: 1.0,
		Insecure:     true,
	}
}

// InitTracer installs a global tracer provider exporting OTLP over HTTP.
// The returned function flushes and shuts the provider down; call it on
// process exit.
func InitTracer(ctx context.Context, serviceName, serviceVersion string, cfg TracerConfig) (func(context.Context) error, error) {
	log := logger.Get("observability")

	if !cfg.Enabled {
		log.Debug("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := newResource(ctx, serviceName, serviceVersion)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate >= 1:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("tracing initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"sampling_rate", cfg.SamplingRate,
	))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

func newResource(ctx context.Context, serviceName, serviceVersion string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
	)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = defaultTracerName
	}
	return otel.Tracer(name)
}

// StartSpan starts a span on the default tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer(defaultTracerName).Start(ctx, name, opts...)
}

// SpanFromContext returns the current span, which may be a no-op span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanAttribute sets a string attribute on the span in ctx, if any.
func SetSpanAttribute(ctx context.Context, key, value string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(key, value))
}

// SetSpanError records err on span and marks the span status as error.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
