package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/openai"
)

// OpenAI streams events as OpenAI chat-completion chunks. Each server
// event yields at most one frame, written and flushed before the next is
// consumed; [DONE] is emitted exactly once after the terminal event.
func OpenAI(w http.ResponseWriter, id, model string, events <-chan event.Event) error {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeFrame := func(v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}
	done := func() error {
		if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	for ev := range events {
		switch ev.Type {
		case event.TypeRole:
			chunk := openai.NewChunk(id, model)
			chunk.Choices[0].Delta.Role = ev.Role
			if err := writeFrame(chunk); err != nil {
				return err
			}
		case event.TypeDelta:
			chunk := openai.NewChunk(id, model)
			chunk.Choices[0].Delta.Content = ev.Text
			if err := writeFrame(chunk); err != nil {
				return err
			}
		case event.TypeBlockStart, event.TypeBlockStop:
			// No chunk counterpart in this protocol.
		case event.TypeCompletion:
			chunk := openai.NewChunk(id, model)
			reason := finishReason(ev.StopReason)
			chunk.Choices[0].FinishReason = &reason
			if err := writeFrame(chunk); err != nil {
				return err
			}
			return done()
		case event.TypeError:
			if err := writeFrame(openai.ErrorEnvelopeFor(ev.ErrKind, ev.ErrMessage)); err != nil {
				return err
			}
			return done()
		}
	}
	return done()
}

// finishReason maps internal stop reasons to OpenAI's vocabulary.
func finishReason(stop string) string {
	if stop == "length" {
		return "length"
	}
	return "stop"
}
