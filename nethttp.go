package httpkit

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"
)

// NetTransport is the default Transport, backed by net/http. It maps a
// prepared attempt onto an *http.Request, stages the entity through the
// filter chain, and wraps the raw response per the buffering flag.
type NetTransport struct {
	client       *http.Client
	streamClient *http.Client

	// verifyRT and insecureRT are the two TLS pool variants backing the
	// per-request VerifyTLS override. One of them is the default pool;
	// under H2C both point at the same round tripper.
	verifyRT   http.RoundTripper
	insecureRT http.RoundTripper
}

// NewNetTransport builds a transport from the client configuration: TLS
// settings, optional cleartext HTTP/2, redirect policy, cookie jar and the
// default timeout.
func NewNetTransport(cfg *Config) (*NetTransport, error) {
	var rt, verifyRT, insecureRT http.RoundTripper
	if cfg.H2C {
		// Cleartext HTTP/2: dial plain TCP where the stack expects TLS.
		rt = &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, network, addr)
			},
		}
		verifyRT, insecureRT = rt, rt
	} else {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.TLS != nil {
			tlsCfg, err := cfg.TLS.Build()
			if err != nil {
				return nil, err
			}
			if tlsCfg != nil {
				transport.TLSClientConfig = tlsCfg
			}
		}
		rt = transport

		// The per-request VerifyTLS override swaps between two connection
		// pools so overridden requests never share connections with the
		// default pool.
		alt := transport.Clone()
		if alt.TLSClientConfig == nil {
			alt.TLSClientConfig = &tls.Config{}
		}
		alt.TLSClientConfig.InsecureSkipVerify = !alt.TLSClientConfig.InsecureSkipVerify
		if alt.TLSClientConfig.InsecureSkipVerify {
			verifyRT, insecureRT = transport, alt
		} else {
			verifyRT, insecureRT = alt, transport
		}
	}

	client := &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}

	if !cfg.followRedirects() {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.EnableCookies {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}

	// Streaming responses outlive any whole-request timeout; cancellation is
	// the context's job there.
	streamClient := &http.Client{
		Transport:     client.Transport,
		CheckRedirect: client.CheckRedirect,
		Jar:           client.Jar,
	}

	return &NetTransport{
		client:       client,
		streamClient: streamClient,
		verifyRT:     verifyRT,
		insecureRT:   insecureRT,
	}, nil
}

// Unwrap returns the underlying *http.Client for advanced use cases.
func (t *NetTransport) Unwrap() *http.Client {
	return t.client
}

// CloseIdleConnections drains the idle connections of every pool the
// transport owns, including the TLS override variant.
func (t *NetTransport) CloseIdleConnections() {
	type closer interface{ CloseIdleConnections() }
	if c, ok := t.verifyRT.(closer); ok {
		c.CloseIdleConnections()
	}
	if t.insecureRT == t.verifyRT {
		return
	}
	if c, ok := t.insecureRT.(closer); ok {
		c.CloseIdleConnections()
	}
}

// Execute implements Transport.
func (t *NetTransport) Execute(ex *Exchange) (*Response, error) {
	ctx := ex.Context()
	if ex.Request.Timeout > 0 && ex.BufferResponse() {
		// The body is fully read before Execute returns, so the deadline
		// can be released with the attempt. Streaming responses stay on the
		// caller's context.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ex.Request.Timeout)
		defer cancel()
	}

	httpReq, err := t.buildRequest(ctx, ex)
	if err != nil {
		return nil, err
	}

	client := t.client
	if !ex.BufferResponse() {
		client = t.streamClient
	}
	client = t.overrideClient(client, ex.Request)

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(err)
		}
		return nil, NewConnectionError(err)
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
	}

	if ex.BufferResponse() {
		body, err := io.ReadAll(resp.Body)
		closeErr := resp.Body.Close()
		if err != nil {
			return nil, NewConnectionError(fmt.Errorf("read response body: %w", err))
		}
		if closeErr != nil {
			return nil, NewConnectionError(closeErr)
		}
		result.Entity = NewBufferedEntity(body)
	} else {
		result.Entity = NewEntityWithLength(resp.Body, resp.ContentLength)
	}

	return result, nil
}

// overrideClient applies the request's per-request TLS and redirect
// overrides. The shallow copy shares the cookie jar and the connection
// pools with the originals.
func (t *NetTransport) overrideClient(client *http.Client, req *Request) *http.Client {
	if req.VerifyTLS == nil && req.FollowRedirects == nil {
		return client
	}
	c := *client
	if req.VerifyTLS != nil {
		if *req.VerifyTLS {
			c.Transport = t.verifyRT
		} else {
			c.Transport = t.insecureRT
		}
	}
	if req.FollowRedirects != nil {
		if *req.FollowRedirects {
			c.CheckRedirect = nil
		} else {
			c.CheckRedirect = func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			}
		}
	}
	return &c
}

// buildRequest maps the attempt's request onto an *http.Request. The entity,
// when present, is staged through the filter chain into memory here so the
// wrapped writers see the bytes exactly as transmitted.
func (t *NetTransport) buildRequest(ctx context.Context, ex *Exchange) (*http.Request, error) {
	req := ex.Request

	var body io.Reader
	var contentLength int64 = -1
	if ex.Entity() != nil {
		buf := &bytes.Buffer{}
		if err := ex.WriteEntity(buf); err != nil {
			return nil, err
		}
		contentLength = int64(buf.Len())
		body = buf
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.Path, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("create request: %v", err))
	}
	if contentLength >= 0 {
		httpReq.ContentLength = contentLength
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	// Copy headers verbatim to keep multi-value ordering intact.
	for k, vs := range req.Headers {
		httpReq.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	return httpReq, nil
}

// joinURL resolves path against base the way the client documents it: an
// absolute path is used as-is, anything else is appended to base.
func joinURL(base, path string) string {
	if base == "" || hasScheme(path) {
		return path
	}
	b := base
	for len(b) > 0 && b[len(b)-1] == '/' {
		b = b[:len(b)-1]
	}
	p := path
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	if p == "" {
		return b
	}
	return b + "/" + p
}

func hasScheme(path string) bool {
	u, err := url.Parse(path)
	return err == nil && u.Scheme != "" && u.Host != ""
}
