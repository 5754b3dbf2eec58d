package observability

import (
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/httpkit"
)

// The decorators wrap the transport rather than join the filter pipeline so
// every attempt is covered even when a filter or the wire aborts the
// exchange: the span ends and the in-flight gauge drops on the transport's
// return path, not on a pipeline callback that may never fire.

type traceTransport struct {
	inner   httpkit.Transport
	service string
}

// TraceTransport wraps inner so each attempt runs inside a client span.
// The span records method, path, attempt number and outcome, and the W3C
// trace context is injected into the outgoing headers so the upstream can
// join the trace.
func TraceTransport(inner httpkit.Transport, service string) httpkit.Transport {
	return &traceTransport{inner: inner, service: service}
}

func (t *traceTransport) Execute(ex *httpkit.Exchange) (*httpkit.Response, error) {
	ctx, span := StartSpan(ex.Context(), SpanAttempt, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String(AttrService, t.service),
		attribute.String(AttrMethod, ex.Request.Method),
		attribute.String(AttrURL, ex.Request.Path),
		attribute.Int(AttrAttempt, ex.Retries+1),
		attribute.String(AttrExchangeID, ex.ID),
	)

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(ex.Request.Headers))

	resp, err := t.inner.Execute(ex)
	if err != nil {
		SetSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int(AttrStatusCode, resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

// Unwrap exposes the wrapped transport.
func (t *traceTransport) Unwrap() httpkit.Transport {
	return t.inner
}

type metricsTransport struct {
	inner   httpkit.Transport
	service string
	metrics *Metrics
}

// MetricsTransport wraps inner so each attempt is counted and timed.
func MetricsTransport(inner httpkit.Transport, service string, m *Metrics) httpkit.Transport {
	return &metricsTransport{inner: inner, service: service, metrics: m}
}

func (t *metricsTransport) Execute(ex *httpkit.Exchange) (*httpkit.Response, error) {
	ctx := ex.Context()
	t.metrics.RecordRequestStart(ctx)
	if ex.Retries > 0 {
		t.metrics.RecordRetry(ctx, t.service, ex.Request.Method)
	}

	start := time.Now()
	resp, err := t.inner.Execute(ex)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.metrics.RecordRequest(ctx, t.service, ex.Request.Method, status, duration)
	if err != nil {
		t.metrics.RecordError(ctx, t.service, errorType(err))
	}
	return resp, err
}

// Unwrap exposes the wrapped transport.
func (t *metricsTransport) Unwrap() httpkit.Transport {
	return t.inner
}

func errorType(err error) string {
	var e *httpkit.Error
	if errors.As(err, &e) {
		return e.Code.String()
	}
	return "unknown"
}
