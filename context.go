package httpkit

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/kbukum/httpkit/logger"
)

// Exchange is the mutable per-call state threaded through the pipeline. It
// is created once per logical client call, mutated in place across attempts
// and discarded when the call returns. One exchange belongs to one goroutine;
// it is not safe for concurrent use.
type Exchange struct {
	// ID identifies the exchange across attempts and log lines.
	ID string
	// Method is the HTTP method of the logical call.
	Method string
	// Request is the current attempt's request clone. Filters may mutate it;
	// mutations do not carry into the next attempt.
	Request *Request
	// Response is the current response, nil until the transport has executed.
	Response *Response
	// Retries counts completed retry decisions, starting at 0 on the first
	// attempt.
	Retries int

	ctx            context.Context
	entity         *Entity
	writeEntity    func(io.Writer) error
	bufferResponse bool
	values         map[string]any
}

// NewExchange creates an exchange for req. The exchange ID is stamped onto
// the returned context for log correlation.
func NewExchange(ctx context.Context, req *Request) *Exchange {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	return &Exchange{
		ID:      id,
		Method:  req.Method,
		Request: req,
		ctx:     logger.ContextWithRequestID(ctx, id),
	}
}

// Context returns the call context. The transport enforces its deadline and
// the client checks cancellation between attempts.
func (ex *Exchange) Context() context.Context {
	return ex.ctx
}

// Entity returns the serialized request entity, or nil for bodiless
// requests. The same entity instance is replayed across attempts.
func (ex *Exchange) Entity() *Entity {
	return ex.entity
}

// BufferResponse reports whether the transport must buffer the response body
// before returning it.
func (ex *Exchange) BufferResponse() bool {
	return ex.bufferResponse
}

// WriteEntity writes the request entity through the entity filter chain into
// raw and fires the request listeners. The transport must call it exactly
// once per attempt, at the point it writes body bytes, whenever Entity is
// non-nil.
func (ex *Exchange) WriteEntity(raw io.Writer) error {
	if ex.writeEntity == nil {
		if ex.entity == nil {
			return nil
		}
		_, err := io.Copy(raw, ex.entity)
		return err
	}
	return ex.writeEntity(raw)
}

// Set stores a value on the exchange. Values survive across attempts, which
// is how filters carry accumulated state through retries.
func (ex *Exchange) Set(key string, value any) {
	if ex.values == nil {
		ex.values = make(map[string]any)
	}
	ex.values[key] = value
}

// Value returns a value stored with Set.
func (ex *Exchange) Value(key string) (any, bool) {
	v, ok := ex.values[key]
	return v, ok
}
