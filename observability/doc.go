// Package observability provides OpenTelemetry tracing and metrics for the
// client, plus health reporting for upstream dependencies.
//
// Tracing:
//
//	shutdown, err := observability.InitTracer(ctx, "orders", version.Version, observability.DefaultTracerConfig())
//	defer shutdown(ctx)
//
//	nt, err := httpkit.NewNetTransport(&cfg)
//	client, err := httpkit.New(cfg,
//		httpkit.WithTransport(observability.TraceTransport(nt, "billing")))
//
// Metrics:
//
//	shutdown, err := observability.InitMeter(ctx, "orders", version.Version, observability.DefaultMeterConfig())
//	defer shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter(""))
//	transport := observability.MetricsTransport(nt, "billing", metrics)
//
// The decorators compose; wrap tracing around metrics to get both. Each
// transport attempt becomes one client span and one set of instrument
// samples, retried attempts included.
//
// Health checks:
//
//	health := observability.NewServiceHealth("orders", version.Version)
//	check := &observability.EndpointCheck{Name: "billing", Client: client, Path: "/healthz"}
//	health.AddComponent(check.CheckHealth(ctx))
package observability
