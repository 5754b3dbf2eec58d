package httpkit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kbukum/httpkit/logger"
)

// Client executes requests through the filter pipeline with pluggable
// transport and entity conversion.
//
// Construction wiring (converters, filters, transport) must finish before
// the client serves concurrent traffic; the registries are not locked.
type Client struct {
	config     Config
	transport  Transport
	converters *ConverterRegistry
	filters    *FilterManager
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the default net/http transport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithConverters replaces the default converter registry.
func WithConverters(reg *ConverterRegistry) Option {
	return func(c *Client) { c.converters = reg }
}

// WithFilters registers filters in order.
func WithFilters(filters ...Filter) Option {
	return func(c *Client) {
		for _, f := range filters {
			c.filters.Add(f)
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client with the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     cfg,
		converters: DefaultRegistry(),
		filters:    NewFilterManager(),
		log:        logger.Get("httpclient"),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		t, err := NewNetTransport(&c.config)
		if err != nil {
			return nil, err
		}
		c.transport = t
	}

	return c, nil
}

// Converters returns the client's converter registry for registration during
// setup.
func (c *Client) Converters() *ConverterRegistry {
	return c.converters
}

// Filters returns the client's filter manager for registration during setup.
func (c *Client) Filters() *FilterManager {
	return c.filters
}

// Config returns the client's configuration.
func (c *Client) Config() Config {
	return c.config
}

// Close releases idle transport connections, unwrapping transport
// decorators to find the network transport underneath.
func (c *Client) Close() error {
	t := c.transport
	for {
		switch v := t.(type) {
		case *NetTransport:
			v.CloseIdleConnections()
			return nil
		case interface{ Unwrap() Transport }:
			t = v.Unwrap()
		default:
			return nil
		}
	}
}

// Do executes req and returns the final response.
//
// The request runs through the pipeline: the body is serialized once via the
// converter registry, request filters run per attempt on a fresh clone, the
// transport executes, response filters and listeners run, and the retry
// filters vote. One yes vote loops the pipeline; the loop itself never caps
// attempts, bounding is the retry filters' job. Completion listeners fire
// exactly once, on the attempt whose response is returned.
//
// Transport and filter errors abort the loop and surface to the caller.
// HTTP error statuses do not: a 500 comes back as a response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	base, err := c.prepare(req)
	if err != nil {
		return nil, err
	}

	var entity *Entity
	if base.Body != nil {
		entity, err = c.converters.Write(base.Body, base)
		if err != nil {
			return nil, err
		}
	}

	// A streaming entity cannot be replayed, so retryability requires
	// buffering before the first attempt.
	if entity != nil && c.filters.HasRetryFilters() {
		if err := entity.Buffer(); err != nil {
			return nil, err
		}
	}

	ex := NewExchange(ctx, base)
	ex.entity = entity
	ex.bufferResponse = c.config.bufferResponse()
	if base.BufferResponse != nil {
		ex.bufferResponse = *base.BufferResponse
	}
	ex.writeEntity = func(raw io.Writer) error {
		wrapped := c.filters.FilterEntity(ex, raw)
		if _, err := io.Copy(wrapped, ex.entity); err != nil {
			return err
		}
		c.filters.OnRequest(ex, wrapped)
		return nil
	}

	defer func() {
		if ex.entity != nil {
			_ = ex.entity.Close()
		}
	}()

	log := c.log.WithContext(ex.Context())
	started := time.Now()

	for {
		if err := ex.Context().Err(); err != nil {
			return nil, err
		}

		// Each attempt starts from the same logical baseline; only the
		// exchange carries state forward.
		if ex.entity != nil && ex.entity.Buffered() {
			if err := ex.entity.Reset(); err != nil {
				return nil, err
			}
		}
		ex.Request = base.Clone()
		if err := c.attemptAuth(ex.Request); err != nil {
			return nil, err
		}

		if err := c.filters.FilterRequest(ex); err != nil {
			return nil, err
		}

		// Lifecycle filters observe "request sent" even without a body; with
		// one, the transport fires the listeners at its write moment.
		if ex.entity == nil {
			c.filters.OnRequest(ex, nil)
		}

		log.Debug("executing request", logger.Fields(
			logger.FieldMethod, ex.Request.Method,
			logger.FieldURL, ex.Request.Path,
			logger.FieldAttempt, ex.Retries+1,
		))

		resp, err := c.transport.Execute(ex)
		if err != nil {
			log.WithError(err).Error("transport failed", logger.Fields(
				logger.FieldMethod, ex.Request.Method,
				logger.FieldURL, ex.Request.Path,
				logger.FieldAttempt, ex.Retries+1,
			))
			return nil, err
		}
		if resp == nil {
			return nil, NewConnectionError(fmt.Errorf("transport returned no response"))
		}
		resp.registry = c.converters
		ex.Response = resp

		if err := c.filters.FilterResponse(ex); err != nil {
			return nil, err
		}
		c.filters.OnResponse(ex)

		if c.filters.OnRetry(ex) {
			ex.Retries++
			// The abandoned response will not reach the caller; release its
			// stream before the next attempt.
			_ = resp.Close()
			log.Debug("retrying request", logger.Fields(
				logger.FieldMethod, ex.Request.Method,
				logger.FieldURL, ex.Request.Path,
				logger.FieldStatus, resp.StatusCode,
				logger.FieldAttempt, ex.Retries+1,
			))
			continue
		}

		c.filters.OnComplete(ex)
		log.Debug("exchange complete", logger.MergeWithDuration(logger.Fields(
			logger.FieldMethod, ex.Request.Method,
			logger.FieldURL, ex.Request.Path,
			logger.FieldStatus, resp.StatusCode,
			logger.FieldAttempt, ex.Retries+1,
		), time.Since(started)))
		return resp, nil
	}
}

// prepare builds the canonical base request for the exchange: resolved URL,
// default headers merged under request headers, User-Agent. Auth is applied
// per attempt, not here, so minted credentials stay fresh across retries.
func (c *Client) prepare(req *Request) (*Request, error) {
	if req == nil {
		return nil, NewValidationError("request is nil")
	}
	if req.Method == "" {
		return nil, NewValidationError("request method is empty")
	}

	base := req.Clone()
	if base.Headers == nil {
		base.Headers = make(http.Header)
	}
	if base.Query == nil {
		base.Query = make(url.Values)
	}
	base.Path = joinURL(c.config.BaseURL, base.Path)

	for k, v := range c.config.Headers {
		if base.Headers.Get(k) == "" {
			base.Headers.Set(k, v)
		}
	}
	if base.Headers.Get("User-Agent") == "" {
		base.Headers.Set("User-Agent", c.config.UserAgent)
	}

	return base, nil
}

// attemptAuth applies the effective auth config to an attempt's request.
func (c *Client) attemptAuth(req *Request) error {
	auth := c.config.Auth
	if req.Auth != nil {
		auth = req.Auth
	}
	return auth.apply(req)
}
