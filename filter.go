package httpkit

import (
	"fmt"
	"io"

	"github.com/kbukum/httpkit/logger"
)

// Filter is a pipeline hook. A filter implements any subset of the capability
// interfaces below; the manager dispatches only to the hooks it actually has.
type Filter any

// RequestFilter mutates the outgoing request before transport execution.
// Mutations apply to the current attempt's clone only. Returning an error
// aborts the whole exchange.
type RequestFilter interface {
	FilterRequest(ex *Exchange) error
}

// EntityFilter wraps the sink the request entity is written through, for
// transformation, hashing or observation of the outgoing bytes. Filters are
// composed in registration order: each wraps the writer produced so far, so
// the last registered filter sees the bytes first.
type EntityFilter interface {
	FilterEntity(ex *Exchange, next io.Writer) io.Writer
}

// RequestListener is notified exactly once per attempt, after the entity has
// been written through the filter chain, or immediately if the request has
// no entity (body is nil then).
type RequestListener interface {
	OnRequest(ex *Exchange, body io.Writer)
}

// ResponseFilter mutates the response after transport execution and before
// the retry decision. Returning an error aborts the whole exchange.
type ResponseFilter interface {
	FilterResponse(ex *Exchange) error
}

// ResponseListener is notified after every response, success or error status.
type ResponseListener interface {
	OnResponse(ex *Exchange)
}

// RetryFilter votes on retrying the exchange after a response. Every retry
// filter is asked on every attempt; one yes vote is enough.
type RetryFilter interface {
	OnRetry(ex *Exchange) bool
}

// CompleteListener is notified exactly once per exchange, on the attempt
// whose response is returned to the caller.
type CompleteListener interface {
	OnComplete(ex *Exchange)
}

// FilterManager classifies filters by capability and invokes them at the
// pipeline points. Like the converter registry it is configured at client
// construction time and must not be mutated concurrently with traffic.
type FilterManager struct {
	filters []Filter

	requestFilters    []RequestFilter
	entityFilters     []EntityFilter
	requestListeners  []RequestListener
	responseFilters   []ResponseFilter
	responseListeners []ResponseListener
	retryFilters      []RetryFilter
	completeListeners []CompleteListener

	log *logger.Logger
}

// NewFilterManager creates a manager with the given filters registered in
// order.
func NewFilterManager(filters ...Filter) *FilterManager {
	m := &FilterManager{log: logger.Get("filters")}
	for _, f := range filters {
		m.Add(f)
	}
	return m
}

// Add registers a filter. Registration order is invocation order for every
// capability the filter implements. A filter implementing no capability is
// ignored.
func (m *FilterManager) Add(f Filter) {
	if f == nil {
		return
	}
	known := false
	if rf, ok := f.(RequestFilter); ok {
		m.requestFilters = append(m.requestFilters, rf)
		known = true
	}
	if ef, ok := f.(EntityFilter); ok {
		m.entityFilters = append(m.entityFilters, ef)
		known = true
	}
	if rl, ok := f.(RequestListener); ok {
		m.requestListeners = append(m.requestListeners, rl)
		known = true
	}
	if rf, ok := f.(ResponseFilter); ok {
		m.responseFilters = append(m.responseFilters, rf)
		known = true
	}
	if rl, ok := f.(ResponseListener); ok {
		m.responseListeners = append(m.responseListeners, rl)
		known = true
	}
	if rf, ok := f.(RetryFilter); ok {
		m.retryFilters = append(m.retryFilters, rf)
		known = true
	}
	if cl, ok := f.(CompleteListener); ok {
		m.completeListeners = append(m.completeListeners, cl)
		known = true
	}
	if !known {
		m.log.Warn("filter implements no pipeline capability", logger.Fields(
			logger.FieldFilter, fmt.Sprintf("%T", f),
		))
		return
	}
	m.filters = append(m.filters, f)
}

// Len returns the number of registered filters.
func (m *FilterManager) Len() int {
	return len(m.filters)
}

// HasRetryFilters reports whether any registered filter can vote on retries.
// The client uses this to decide whether the request entity must be buffered
// up front.
func (m *FilterManager) HasRetryFilters() bool {
	return len(m.retryFilters) > 0
}

// FilterRequest runs all request-mutating filters in registration order.
func (m *FilterManager) FilterRequest(ex *Exchange) error {
	for _, f := range m.requestFilters {
		if err := f.FilterRequest(ex); err != nil {
			return err
		}
	}
	return nil
}

// FilterEntity wraps sink with every entity filter in registration order and
// returns the outermost writer. With no entity filters sink is returned
// unchanged.
func (m *FilterManager) FilterEntity(ex *Exchange, sink io.Writer) io.Writer {
	w := sink
	for _, f := range m.entityFilters {
		if wrapped := f.FilterEntity(ex, w); wrapped != nil {
			w = wrapped
		}
	}
	return w
}

// OnRequest notifies request listeners. body is the wrapped sink the entity
// was written through, or nil for bodiless requests.
func (m *FilterManager) OnRequest(ex *Exchange, body io.Writer) {
	for _, f := range m.requestListeners {
		f.OnRequest(ex, body)
	}
}

// FilterResponse runs all response-mutating filters in registration order.
func (m *FilterManager) FilterResponse(ex *Exchange) error {
	for _, f := range m.responseFilters {
		if err := f.FilterResponse(ex); err != nil {
			return err
		}
	}
	return nil
}

// OnResponse notifies response listeners.
func (m *FilterManager) OnResponse(ex *Exchange) {
	for _, f := range m.responseListeners {
		f.OnResponse(ex)
	}
}

// OnRetry asks every retry filter for a vote and returns the logical OR.
// All filters are asked even after a yes vote so each sees every attempt.
func (m *FilterManager) OnRetry(ex *Exchange) bool {
	retry := false
	for _, f := range m.retryFilters {
		if f.OnRetry(ex) {
			retry = true
		}
	}
	return retry
}

// OnComplete notifies completion listeners.
func (m *FilterManager) OnComplete(ex *Exchange) {
	for _, f := range m.completeListeners {
		f.OnComplete(ex)
	}
}
