package filters

import (
	"math"
	"math/rand"
	"time"

	"github.com/kbukum/httpkit"
)

// RetryConfig configures the retry filter.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// InitialBackoff is the initial delay between attempts.
	InitialBackoff time.Duration
	// MaxBackoff is the maximum delay between attempts.
	MaxBackoff time.Duration
	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64
	// Jitter adds randomness to backoff (0.0 to 1.0).
	Jitter float64
	// RetryIf decides whether the current response warrants another attempt.
	RetryIf func(ex *httpkit.Exchange) bool
	// OnRetry is called before each backoff wait.
	OnRetry func(ex *httpkit.Exchange, backoff time.Duration)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryIf:        DefaultRetryIf,
	}
}

// DefaultRetryIf retries responses whose status classifies as retryable:
// 429 and the 5xx range.
func DefaultRetryIf(ex *httpkit.Exchange) bool {
	if ex.Response == nil {
		return false
	}
	e := httpkit.ClassifyStatusCode(ex.Response.StatusCode, nil)
	return e != nil && e.Retryable
}

// Retry votes to re-run an exchange on retryable responses, waiting out an
// exponential backoff before each yes vote. The filter itself is stateless;
// the attempt count lives on the exchange, so one instance serves any number
// of concurrent exchanges.
type Retry struct {
	cfg RetryConfig
}

// NewRetry creates a retry filter, filling zero config fields with defaults.
func NewRetry(cfg RetryConfig) *Retry {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2.0
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}
	return &Retry{cfg: cfg}
}

// OnRetry implements the retry vote.
func (r *Retry) OnRetry(ex *httpkit.Exchange) bool {
	attempt := ex.Retries + 1
	if attempt >= r.cfg.MaxAttempts {
		return false
	}
	if !r.cfg.RetryIf(ex) {
		return false
	}

	backoff := calculateBackoff(attempt, r.cfg)
	if r.cfg.OnRetry != nil {
		r.cfg.OnRetry(ex, backoff)
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ex.Context().Done():
		// Vote yes anyway; the execution loop checks the context before the
		// next attempt and surfaces the cancellation to the caller.
		return true
	case <-timer.C:
		return true
	}
}

// calculateBackoff calculates the backoff duration for an attempt.
func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	// Exponential backoff: initial * factor^(attempt-1)
	backoffFloat := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt-1))

	if cfg.Jitter > 0 {
		jitterRange := backoffFloat * cfg.Jitter
		backoffFloat += (rand.Float64()*2 - 1) * jitterRange
	}

	if backoffFloat > float64(cfg.MaxBackoff) {
		backoffFloat = float64(cfg.MaxBackoff)
	}
	if backoffFloat < 0 {
		backoffFloat = float64(cfg.InitialBackoff)
	}

	return time.Duration(backoffFloat)
}
