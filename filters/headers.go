package filters

import (
	"github.com/kbukum/httpkit"
)

// Headers sets static headers on every attempt. Filter-set headers override
// client defaults and request headers of the same name.
type Headers struct {
	headers map[string]string
}

// NewHeaders creates a header-setting filter.
func NewHeaders(headers map[string]string) *Headers {
	return &Headers{headers: headers}
}

// FilterRequest applies the headers.
func (h *Headers) FilterRequest(ex *httpkit.Exchange) error {
	for k, v := range h.headers {
		ex.Request.Headers.Set(k, v)
	}
	return nil
}

// RequestID propagates the exchange ID as a request header, so server logs
// can be correlated with the client's. Retried attempts share one ID.
type RequestID struct {
	header string
}

// NewRequestID creates a request ID filter. An empty header name defaults to
// X-Request-ID.
func NewRequestID(header string) *RequestID {
	if header == "" {
		header = "X-Request-ID"
	}
	return &RequestID{header: header}
}

// FilterRequest stamps the exchange ID.
func (r *RequestID) FilterRequest(ex *httpkit.Exchange) error {
	ex.Request.Headers.Set(r.header, ex.ID)
	return nil
}
