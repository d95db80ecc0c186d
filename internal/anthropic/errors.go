package anthropic

import "github.com/promptgate/gateway/internal/fault"

// ErrorEnvelope is the Anthropic error body: {"type":"error","error":{...}}.
type ErrorEnvelope struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the tagged error type and a human message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorEnvelope maps a gateway fault kind onto the Messages API error
// vocabulary.
func NewErrorEnvelope(kind fault.Kind, message string) ErrorEnvelope {
	return ErrorEnvelope{Type: "error", Error: ErrorDetail{Type: errorType(kind), Message: message}}
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
		return "api_error"
	}
}
