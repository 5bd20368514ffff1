package server

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrStartFailure is returned when the provider cannot be started.
	ErrStartFailure = errors.New("control server failed to start")

	// ErrNoHandlersRegistered is returned when neither route could be registered.
	ErrNoHandlersRegistered = errors.New("no handlers registered")

	// ErrRouteExists is returned by a Provider when a method and path are
	// already registered.
	ErrRouteExists = errors.New("route already registered")
)

// RequestErrorKind classifies a rejected configuration-write request.
type RequestErrorKind int

const (
	PayloadTooLarge RequestErrorKind = iota
	EmptyPayload
	TransportFault
	LengthRequired
)

// String returns a human-readable name for the kind
func (k RequestErrorKind) String() string {
	switch k {
	case PayloadTooLarge:
		return "PayloadTooLarge"
	case EmptyPayload:
		return "EmptyPayload"
	case TransportFault:
		return "TransportFault"
	case LengthRequired:
		return "LengthRequired"
	default:
		return fmt.Sprintf("RequestErrorKind(%d)", int(k))
	}
}

// RequestError is a request-level failure. It is answered with an HTTP error
// and never affects the server itself.
type RequestError struct {
	Kind   RequestErrorKind
	Length int64
	Err    error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s (content length %d)", e.Kind, e.Length)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code the request is answered with.
func (e *RequestError) Status() int {
	switch e.Kind {
	case PayloadTooLarge:
		return http.StatusInternalServerError
	case LengthRequired:
		return http.StatusLengthRequired
	default:
		return http.StatusBadRequest
	}
}

// Message returns the response body text.
func (e *RequestError) Message() string {
	switch e.Kind {
	case PayloadTooLarge:
		return "content too long"
	case EmptyPayload:
		return "Unknown request"
	case LengthRequired:
		return "Length Required"
	default:
		return "Bad Request"
	}
}

// IsRequestError reports whether err is a RequestError of the given kind.
func IsRequestError(err error, kind RequestErrorKind) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind == kind
	}
	return false
}
