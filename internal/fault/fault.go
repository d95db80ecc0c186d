package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure so every protocol surface can map it
// into its own error envelope without inspecting message text.
type Kind string

const (
	// KindValidation marks a malformed or incomplete client request.
	KindValidation Kind = "validation"
	// KindPolicy marks a request naming a command outside the allow-list.
	KindPolicy Kind = "policy"
	// KindUnauthorized marks a missing or invalid credential.
	KindUnauthorized Kind = "unauthorized"
	// KindTimeout marks an invocation that exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindBackend marks a remote non-success status or subprocess non-zero exit.
	KindBackend Kind = "backend"
	// KindProtocol marks a malformed streaming block sequence.
	KindProtocol Kind = "protocol"
	// KindCapacity marks slot-pool saturation beyond the queuing bound.
	KindCapacity Kind = "capacity"
	// KindNotFound marks an unknown session identifier.
	KindNotFound Kind = "not_found"
)

// Error carries a classification plus a client-safe message. Internal
// detail (stderr, stack text) stays in the wrapped cause and is never
// rendered to clients.
type Error struct {
	Kind    Kind
	Message string
	cause   error

	exitCode int
	hasExit  bool
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error with a client-visible message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification and safe message to an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithExit attaches a subprocess exit status to the error.
func (e *Error) WithExit(code int) *Error {
	e.exitCode = code
	e.hasExit = true
	return e
}

// ExitCodeOf recovers the exit status attached to err. Errors without one
// report -1.
func ExitCodeOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) && fe.hasExit {
		return fe.exitCode
	}
	return -1
}

// KindOf extracts the classification from err, defaulting to KindBackend
// for unclassified failures so nothing internal leaks as-is.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindBackend
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return "internal backend error"
}

// HTTPStatus maps a kind to the status code used by every endpoint.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindPolicy:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCapacity:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindBackend, KindProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
