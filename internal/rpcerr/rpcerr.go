// Package rpcerr defines the closed error taxonomy produced and consumed by
// the dispatch core: Transport produces the low-level members, Dispatcher
// wraps them into the aggregate members on exhaustion.
package rpcerr

import "fmt"

// Kind identifies one member of the closed taxonomy.
type Kind int

const (
	// InvalidConfig indicates a construction-time configuration problem:
	// zero rate, empty endpoint list, bad URL scheme, and similar.
	InvalidConfig Kind = iota
	// NoEnabledEndpoints indicates no endpoint was enabled at construction.
	NoEnabledEndpoints
	// InvalidEndpoint indicates an out-of-range endpoint index; an internal
	// bookkeeping bug, not an expected runtime condition.
	InvalidEndpoint
	// RateLimited indicates the upstream rejected with 429 and the retry
	// budget was exhausted.
	RateLimited
	// Timeout indicates a per-attempt or aggregate timeout was breached.
	Timeout
	// Connection indicates a transport-level failure (DNS, TCP, TLS).
	Connection
	// HTTPStatus indicates a non-2xx remote response.
	HTTPStatus
	// Decode indicates a malformed or unexpected JSON-RPC envelope.
	Decode
	// RemoteRPCError indicates a well-formed JSON-RPC error response.
	RemoteRPCError
	// AllEndpointsFailed indicates no endpoint remained eligible for a call.
	AllEndpointsFailed
	// RetryExhausted indicates the retry budget was consumed.
	RetryExhausted
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "InvalidConfig"
	case NoEnabledEndpoints:
		return "NoEnabledEndpoints"
	case InvalidEndpoint:
		return "InvalidEndpoint"
	case RateLimited:
		return "RateLimited"
	case Timeout:
		return "Timeout"
	case Connection:
		return "Connection"
	case HTTPStatus:
		return "HttpStatus"
	case Decode:
		return "Decode"
	case RemoteRPCError:
		return "RpcError"
	case AllEndpointsFailed:
		return "AllEndpointsFailed"
	case RetryExhausted:
		return "RetryExhausted"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type for every taxonomy member. Code and
// StatusCode are only meaningful for RemoteRPCError and HTTPStatus
// respectively. PerEndpoint is only populated on AllEndpointsFailed.
type Error struct {
	Kind        Kind
	Detail      string
	StatusCode  int
	Code        int
	Endpoint    int
	PerEndpoint map[int]error
	Wrapped     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case HTTPStatus:
		return fmt.Sprintf("%s: http status %d: %s", e.Kind, e.StatusCode, e.Detail)
	case RemoteRPCError:
		return fmt.Sprintf("%s: code %d: %s", e.Kind, e.Code, e.Detail)
	case InvalidEndpoint:
		return fmt.Sprintf("%s: index %d", e.Kind, e.Endpoint)
	case AllEndpointsFailed:
		return fmt.Sprintf("%s: %d endpoints tried", e.Kind, len(e.PerEndpoint))
	default:
		if e.Detail == "" {
			return e.Kind.String()
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is matches on Kind, letting callers write errors.Is(err, rpcerr.Timeout)-style
// checks via the Sentinel helper below rather than a bare Kind value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel builds a zero-value Error for a given Kind, suitable for
// errors.Is(err, rpcerr.Sentinel(rpcerr.Timeout)) comparisons.
func Sentinel(k Kind) *Error { return &Error{Kind: k} }

// IsRetryable reports whether a failed attempt at this Kind should trigger
// failover to another endpoint: Timeout, Connection, 5xx, and 429 are
// retryable; anything else is terminal.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case Timeout, Connection:
		return true
	case HTTPStatus:
		return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode <= 599)
	default:
		return false
	}
}

// IsRateLimit reports whether the error is an HTTP 429.
func (e *Error) IsRateLimit() bool {
	return e.Kind == HTTPStatus && e.StatusCode == 429
}

// WithContext returns a copy of e with Detail prefixed by ctx, letting
// callers add positional context as an error propagates up the call stack.
func (e *Error) WithContext(ctx string) *Error {
	cp := *e
	if cp.Detail == "" {
		cp.Detail = ctx
	} else {
		cp.Detail = ctx + ": " + cp.Detail
	}
	return &cp
}

// New constructs a simple detail-only error of the given kind.
func New(k Kind, detail string) *Error {
	return &Error{Kind: k, Detail: detail}
}

// Wrap constructs a detail-only error of the given kind, preserving cause
// for errors.Unwrap / errors.As chains.
func Wrap(k Kind, detail string, cause error) *Error {
	return &Error{Kind: k, Detail: detail, Wrapped: cause}
}

// NewHTTPStatus constructs an HttpStatus error.
func NewHTTPStatus(code int, bodySnippet string) *Error {
	return &Error{Kind: HTTPStatus, StatusCode: code, Detail: bodySnippet}
}

// NewRemoteRPCError constructs a well-formed remote JSON-RPC error.
func NewRemoteRPCError(code int, message string) *Error {
	return &Error{Kind: RemoteRPCError, Code: code, Detail: message}
}

// NewInvalidEndpoint constructs an InvalidEndpoint error for index i.
func NewInvalidEndpoint(i int) *Error {
	return &Error{Kind: InvalidEndpoint, Endpoint: i}
}

// NewAllEndpointsFailed aggregates the last error observed per endpoint.
func NewAllEndpointsFailed(perEndpoint map[int]error) *Error {
	return &Error{Kind: AllEndpointsFailed, PerEndpoint: perEndpoint}
}

// NewRetryExhausted wraps the last error observed before the budget ran out.
func NewRetryExhausted(last error) *Error {
	return &Error{Kind: RetryExhausted, Wrapped: last, Detail: errString(last)}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
