package httpkit

import (
	"net/http"
	"net/url"
	"time"
)

// Request describes an outbound HTTP request.
type Request struct {
	// Method is the HTTP method (GET, POST, PUT, PATCH, DELETE, etc).
	Method string
	// Path is appended to the client's BaseURL. Can be a full URL if BaseURL is empty.
	Path string
	// Headers are request-specific headers, merged over client defaults.
	// Multi-valued and case-insensitive per http.Header semantics.
	Headers http.Header
	// Query are URL query parameters, merged with any already on Path.
	Query url.Values
	// Body is the request body. It is serialized by the client's converter
	// registry: *Entity and io.Reader pass through, []byte and string become
	// buffered entities, and other values go to the first converter that
	// accepts them (structs and maps are JSON-encoded by default).
	Body any
	// Auth overrides the client-level auth for this request.
	Auth *AuthConfig
	// Timeout overrides the client timeout for this request when positive.
	Timeout time.Duration
	// VerifyTLS overrides certificate verification for this request.
	// nil means inherit the transport's TLS configuration.
	VerifyTLS *bool
	// FollowRedirects overrides the client's redirect policy for this
	// request. nil means inherit.
	FollowRedirects *bool
	// BufferResponse overrides the client's response buffering default.
	// nil means inherit.
	BufferResponse *bool
}

// NewRequest creates a request with initialized header and query maps.
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(http.Header),
		Query:   make(url.Values),
	}
}

// WithHeader adds a header value and returns the request for chaining.
func (r *Request) WithHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	r.Headers.Add(key, value)
	return r
}

// WithQuery adds a query parameter value and returns the request for chaining.
func (r *Request) WithQuery(key, value string) *Request {
	if r.Query == nil {
		r.Query = make(url.Values)
	}
	r.Query.Add(key, value)
	return r
}

// WithBody sets the body and returns the request for chaining.
func (r *Request) WithBody(body any) *Request {
	r.Body = body
	return r
}

// Clone returns a deep copy of the request metadata. The body value is
// shared, which is safe because the execution pipeline serializes it into
// an entity exactly once before any attempt runs.
func (r *Request) Clone() *Request {
	cp := *r
	if r.Headers != nil {
		cp.Headers = r.Headers.Clone()
	}
	if r.Query != nil {
		cp.Query = make(url.Values, len(r.Query))
		for k, vs := range r.Query {
			cp.Query[k] = append([]string(nil), vs...)
		}
	}
	if r.VerifyTLS != nil {
		v := *r.VerifyTLS
		cp.VerifyTLS = &v
	}
	if r.FollowRedirects != nil {
		v := *r.FollowRedirects
		cp.FollowRedirects = &v
	}
	if r.BufferResponse != nil {
		v := *r.BufferResponse
		cp.BufferResponse = &v
	}
	return &cp
}
