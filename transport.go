package httpkit

// Transport executes one prepared attempt against the wire. Implementations
// adapt a concrete HTTP stack; the client owns everything above them (filter
// dispatch, retries, entity handling).
//
// Contract:
//   - When ex.Entity() is non-nil, the transport must call ex.WriteEntity
//     exactly once, at the point it writes body bytes, so the entity filter
//     chain and request listeners observe the transmission.
//   - The returned response carries the status, the headers and an entity
//     that is buffered when ex.BufferResponse() is true, streaming otherwise.
//   - Failures are I/O errors returned through err. The transport never
//     turns an HTTP error status into an error; a response with status 500
//     is still a response.
type Transport interface {
	Execute(ex *Exchange) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ex *Exchange) (*Response, error)

// Execute implements Transport.
func (f TransportFunc) Execute(ex *Exchange) (*Response, error) {
	return f(ex)
}
