package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/httpkit"
	"github.com/kbukum/httpkit/filters"
)

// installTestTracer wires an in-memory exporter as the global tracer
// provider and returns it. Spans export synchronously.
func installTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown tracer provider: %v", err)
		}
	})
	otel.SetTracerProvider(tp)
	return exporter
}

func spanAttr(stub tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range stub.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig()

	if !cfg.Enabled {
		t.Error("expected Enabled to be true")
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SamplingRate != 1.0 {
		t.Errorf("expected SamplingRate 1.0, got %f", cfg.SamplingRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig()

	if !cfg.Enabled {
		t.Error("expected Enabled to be true")
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "test", "dev", TracerConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown returned error: %v", err)
	}
}

func TestInitMeterDisabled(t *testing.T) {
	shutdown, err := InitMeter(context.Background(), "test", "dev", MeterConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown returned error: %v", err)
	}
}

func TestTracerDefaultName(t *testing.T) {
	if Tracer("") == nil {
		t.Fatal("expected non-nil tracer")
	}
	if Meter("") == nil {
		t.Fatal("expected non-nil meter")
	}
}

func TestSetSpanError(t *testing.T) {
	exporter := installTestTracer(t)

	_, span := StartSpan(context.Background(), "test-error")
	SetSpanError(span, errors.New("boom"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected an exception event on the span")
	}
}

func TestSetSpanErrorNilIsNoop(t *testing.T) {
	exporter := installTestTracer(t)

	_, span := StartSpan(context.Background(), "test-no-error")
	SetSpanError(span, nil)
	span.End()

	spans := exporter.GetSpans()
	if spans[0].Status.Code == codes.Error {
		t.Error("nil error should not mark the span as failed")
	}
}

func TestSetSpanAttribute(t *testing.T) {
	exporter := installTestTracer(t)

	ctx, span := StartSpan(context.Background(), "test-attrs")
	SetSpanAttribute(ctx, "upstream", "billing")
	span.End()

	spans := exporter.GetSpans()
	v, ok := spanAttr(spans[0], "upstream")
	if !ok || v.AsString() != "billing" {
		t.Errorf("expected upstream attribute 'billing', got %v", v)
	}
}

func TestTraceTransportRecordsAttempt(t *testing.T) {
	exporter := installTestTracer(t)

	inner := httpkit.TransportFunc(func(ex *httpkit.Exchange) (*httpkit.Response, error) {
		return &httpkit.Response{
			StatusCode: http.StatusOK,
			Headers:    make(http.Header),
			Entity:     httpkit.NewBufferedEntity(nil),
		}, nil
	})

	tt := TraceTransport(inner, "billing")
	ex := httpkit.NewExchange(context.Background(), httpkit.NewRequest(http.MethodGet, "/invoices"))

	resp, err := tt.Execute(ex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	stub := spans[0]
	if stub.Name != SpanAttempt {
		t.Errorf("expected span %q, got %q", SpanAttempt, stub.Name)
	}
	if stub.SpanKind != trace.SpanKindClient {
		t.Errorf("expected client span kind, got %v", stub.SpanKind)
	}
	if v, ok := spanAttr(stub, AttrService); !ok || v.AsString() != "billing" {
		t.Errorf("expected service attribute 'billing', got %v", v)
	}
	if v, ok := spanAttr(stub, AttrMethod); !ok || v.AsString() != http.MethodGet {
		t.Errorf("expected method attribute GET, got %v", v)
	}
	if v, ok := spanAttr(stub, AttrURL); !ok || v.AsString() != "/invoices" {
		t.Errorf("expected path attribute /invoices, got %v", v)
	}
	if v, ok := spanAttr(stub, AttrAttempt); !ok || v.AsInt64() != 1 {
		t.Errorf("expected attempt attribute 1, got %v", v)
	}
	if v, ok := spanAttr(stub, AttrStatusCode); !ok || v.AsInt64() != 200 {
		t.Errorf("expected status attribute 200, got %v", v)
	}
	if stub.Status.Code == codes.Error {
		t.Error("successful attempt should not mark the span as failed")
	}
}

func TestTraceTransportMarksErrorStatus(t *testing.T) {
	exporter := installTestTracer(t)

	inner := httpkit.TransportFunc(func(ex *httpkit.Exchange) (*httpkit.Response, error) {
		return &httpkit.Response{
			StatusCode: http.StatusServiceUnavailable,
			Headers:    make(http.Header),
			Entity:     httpkit.NewBufferedEntity(nil),
		}, nil
	})

	tt := TraceTransport(inner, "billing")
	ex := httpkit.NewExchange(context.Background(), httpkit.NewRequest(http.MethodGet, "/invoices"))

	if _, err := tt.Execute(ex); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status for 503, got %v", spans[0].Status.Code)
	}
}

func TestTraceTransportRecordsTransportError(t *testing.T) {
	exporter := installTestTracer(t)

	inner := httpkit.TransportFunc(func(ex *httpkit.Exchange) (*httpkit.Response, error) {
		return nil, httpkit.NewConnectionError(errors.New("connection refused"))
	})

	tt := TraceTransport(inner, "billing")
	ex := httpkit.NewExchange(context.Background(), httpkit.NewRequest(http.MethodGet, "/invoices"))

	_, err := tt.Execute(ex)
	if !httpkit.IsConnection(err) {
		t.Fatalf("expected connection error passthrough, got %v", err)
	}

	spans := exporter.GetSpans()
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected the error recorded as a span event")
	}
}

func TestTraceTransportInjectsTraceContext(t *testing.T) {
	installTestTracer(t)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var traceparent string
	inner := httpkit.TransportFunc(func(ex *httpkit.Exchange) (*httpkit.Response, error) {
		traceparent = ex.Request.Headers.Get("traceparent")
		return &httpkit.Response{
			StatusCode: http.StatusOK,
			Headers:    make(http.Header),
			Entity:     httpkit.NewBufferedEntity(nil),
		}, nil
	})

	tt := TraceTransport(inner, "billing")
	ex := httpkit.NewExchange(context.Background(), httpkit.NewRequest(http.MethodGet, "/invoices"))

	if _, err := tt.Execute(ex); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if traceparent == "" {
		t.Fatal("expected traceparent header on the outgoing request")
	}
	if !strings.HasPrefix(traceparent, "00-") {
		t.Errorf("unexpected traceparent format: %s", traceparent)
	}
}

func TestTraceTransportSpanPerRetryAttempt(t *testing.T) {
	exporter := installTestTracer(t)

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	retry := filters.NewRetry(filters.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})

	nt, err := httpkit.NewNetTransport(&httpkit.Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("create transport: %v", err)
	}
	client, err := httpkit.New(httpkit.Config{BaseURL: srv.URL},
		httpkit.WithTransport(TraceTransport(nt, "flaky")),
		httpkit.WithFilters(retry),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	defer client.Close()

	resp, err := client.Do(context.Background(), httpkit.NewRequest(http.MethodGet, "/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected recovery, got %d", resp.StatusCode)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected one span per attempt, got %d", len(spans))
	}
	for i, want := range []int64{1, 2} {
		if v, ok := spanAttr(spans[i], AttrAttempt); !ok || v.AsInt64() != want {
			t.Errorf("span %d: expected attempt %d, got %v", i, want, v)
		}
	}
}

func TestNewMetrics(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	metrics.RecordRequestStart(ctx)
	metrics.RecordRequest(ctx, "billing", http.MethodGet, 200, 25*time.Millisecond)
	metrics.RecordRetry(ctx, "billing", http.MethodGet)
	metrics.RecordError(ctx, "billing", "timeout")
}

func TestMetricsTransportPassesThrough(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inner := httpkit.TransportFunc(func(ex *httpkit.Exchange) (*httpkit.Response, error) {
		return &httpkit.Response{
			StatusCode: http.StatusCreated,
			Headers:    make(http.Header),
			Entity:     httpkit.NewBufferedEntity(nil),
		}, nil
	})

	mt := MetricsTransport(inner, "billing", metrics)
	ex := httpkit.NewExchange(context.Background(), httpkit.NewRequest(http.MethodPost, "/invoices"))

	resp, err := mt.Execute(ex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
}

func TestMetricsTransportPropagatesError(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inner := httpkit.TransportFunc(func(ex *httpkit.Exchange) (*httpkit.Response, error) {
		return nil, httpkit.NewTimeoutError(errors.New("deadline exceeded"))
	})

	mt := MetricsTransport(inner, "billing", metrics)
	ex := httpkit.NewExchange(context.Background(), httpkit.NewRequest(http.MethodGet, "/invoices"))

	_, err = mt.Execute(ex)
	if !httpkit.IsTimeout(err) {
		t.Fatalf("expected timeout error passthrough, got %v", err)
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{httpkit.NewConnectionError(errors.New("refused")), "connection"},
		{httpkit.NewTimeoutError(errors.New("deadline")), "timeout"},
		{errors.New("plain"), "unknown"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestEndpointCheck(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := httpkit.New(httpkit.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	defer client.Close()

	up := (&EndpointCheck{Name: "billing", Client: client, Path: "/healthz"}).CheckHealth(context.Background())
	if up.Status != HealthStatusUp {
		t.Errorf("expected up, got %s (%s)", up.Status, up.Message)
	}
	if up.Details["status_code"] != "200" {
		t.Errorf("expected status_code detail 200, got %q", up.Details["status_code"])
	}
	if up.Details["latency"] == "" {
		t.Error("expected latency detail")
	}

	degraded := (&EndpointCheck{Name: "billing", Client: client, Path: "/broken"}).CheckHealth(context.Background())
	if degraded.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", degraded.Status)
	}
	if degraded.Message == "" {
		t.Error("expected a message explaining the degradation")
	}
}

func TestEndpointCheckDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	client, err := httpkit.New(httpkit.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	defer client.Close()

	srv.Close()

	h := (&EndpointCheck{Name: "billing", Client: client, Path: "/healthz"}).CheckHealth(context.Background())
	if h.Status != HealthStatusDown {
		t.Errorf("expected down, got %s", h.Status)
	}
	if h.Message == "" {
		t.Error("expected an error message")
	}
}

func TestServiceHealthAggregation(t *testing.T) {
	sh := NewServiceHealth("orders", "1.0.0")
	if sh.Status != HealthStatusUp {
		t.Fatalf("expected up, got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "billing", Status: HealthStatusUp})
	if sh.Status != HealthStatusUp {
		t.Errorf("healthy component should not degrade, got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "search", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "inventory", Status: HealthStatusDown})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected down, got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "late", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("degraded must not override down, got %s", sh.Status)
	}

	if len(sh.Components) != 4 {
		t.Errorf("expected 4 components, got %d", len(sh.Components))
	}
}
