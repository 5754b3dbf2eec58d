package httpkit

import (
	"net/http"
)

// Response is the result of an HTTP request.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers.
	Headers http.Header
	// Entity is the response body. It is buffered unless response buffering
	// was disabled, in which case it streams from the connection and must be
	// closed by the caller.
	Entity *Entity

	// registry decodes the entity for Decode. Set by the client.
	registry *ConverterRegistry
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsError returns true if the status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// ContentType returns the Content-Type header value.
func (r *Response) ContentType() string {
	return r.Headers.Get("Content-Type")
}

// Bytes returns the full response body, buffering the entity if it was
// streaming.
func (r *Response) Bytes() ([]byte, error) {
	if r.Entity == nil {
		return nil, nil
	}
	return r.Entity.Bytes()
}

// Decode deserializes the response body into target using the client's
// converter registry and the response content type. target must be a
// non-nil pointer. Decoding a streaming entity buffers it first.
func (r *Response) Decode(target any) error {
	reg := r.registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	return reg.Read(target, r.Entity, r.ContentType())
}

// Close releases the response body. Required when response buffering is
// disabled; harmless otherwise.
func (r *Response) Close() error {
	if r.Entity == nil {
		return nil
	}
	return r.Entity.Close()
}
