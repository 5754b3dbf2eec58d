// Package filters provides ready-made pipeline filters for httpkit clients.
//
// This package includes:
//   - Retry: votes to re-run exchanges with exponential backoff
//   - Breaker: circuit breaker that fails attempts fast when an upstream is unhealthy
//   - Logging: structured access logging per attempt and per exchange
//   - Headers / RequestID: header injection on every attempt
//   - Digest: Content-Digest header over the transmitted entity
//
// Filters are registered at client construction and can be combined:
//
//	c, err := httpkit.New(cfg,
//	    httpkit.WithFilters(
//	        filters.NewRequestID(""),
//	        filters.NewLogging(nil),
//	        filters.NewBreaker(filters.DefaultBreakerConfig("payments")),
//	        filters.NewRetry(filters.DefaultRetryConfig()),
//	    ),
//	)
//
// Registration order matters: request hooks run first-to-last, entity
// filters wrap the body writer in order, and retry votes are gathered from
// every filter on every attempt.
package filters
