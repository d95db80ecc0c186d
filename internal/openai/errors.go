package openai

import "github.com/promptgate/gateway/internal/fault"

// ErrorEnvelope is the OpenAI-style error body: {"error": {...}}.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the classified error type and a human message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewErrorEnvelope wraps a kind tag and message in the OpenAI error shape.
func NewErrorEnvelope(kind, message string) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorDetail{Type: kind, Message: message}}
}

// ErrorEnvelopeFor maps a gateway fault kind onto OpenAI's error type
// vocabulary.
func ErrorEnvelopeFor(kind fault.Kind, message string) ErrorEnvelope {
	return NewErrorEnvelope(errorType(kind), message)
}

func errorType(kind fault.Kind) string {
	switch kind {
	case fault.KindValidation:
		return "invalid_request_error"
	case fault.KindUnauthorized:
		return "authentication_error"
	case fault.KindPolicy:
		return "permission_error"
	case fault.KindNotFound:
		return "not_found_error"
	case fault.KindCapacity:
		return "rate_limit_error"
	case fault.KindTimeout:
		return "timeout_error"
	default:
		return "server_error"
	}
}
