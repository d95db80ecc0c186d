package httpserver

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/promptgate/gateway/internal/anthropic"
	"github.com/promptgate/gateway/internal/fault"
	"github.com/promptgate/gateway/internal/openai"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpserver.writeJSON: encode failed err=%v", err)
	}
}

// writeOpenAIError renders err in the OpenAI error envelope.
func writeOpenAIError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	writeJSON(w, fault.HTTPStatus(kind), openai.ErrorEnvelopeFor(kind, fault.MessageOf(err)))
}

// writeAnthropicError renders err in the Messages API error envelope.
func writeAnthropicError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	writeJSON(w, fault.HTTPStatus(kind), anthropic.NewErrorEnvelope(kind, fault.MessageOf(err)))
}
