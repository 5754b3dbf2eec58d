// Package httpkit provides an HTTP client built around a filter pipeline,
// pluggable entity conversion and a replaceable transport.
//
// The Client executes each request as an exchange: the body serializes once
// through the converter registry, filters observe and steer every attempt,
// the transport puts bytes on the wire, and retry filters vote on whether
// the exchange runs again. Subpackages supply the surrounding machinery:
//
//   - filters: retry, circuit breaker, logging, header and digest filters
//   - config: file and environment configuration with upstream profiles
//   - observability: OpenTelemetry transport decorators and health checks
//   - logger: structured logging used across the module
//
// # Basic Usage
//
//	client, err := httpkit.New(httpkit.Config{
//	    BaseURL: "https://api.example.com",
//	    Timeout: 30 * time.Second,
//	    Auth:    httpkit.BearerAuth("my-token"),
//	})
//
//	resp, err := client.Do(ctx, httpkit.NewRequest(http.MethodGet, "/users/123"))
//
// # Typed Requests
//
//	user, err := httpkit.Get[User](client, ctx, "/users/123")
//
// # With Resilience
//
//	client, err := httpkit.New(cfg, httpkit.WithFilters(
//	    filters.NewBreaker(filters.DefaultBreakerConfig("my-api")),
//	    filters.NewRetry(filters.DefaultRetryConfig()),
//	))
package httpkit
