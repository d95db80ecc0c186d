package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/promptgate/gateway/internal/anthropic"
	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/fault"
)

// Anthropic streams events as Messages API SSE frames, closing the
// sequence with message_stop (or an error frame) exactly once.
func Anthropic(w http.ResponseWriter, id, model string, events <-chan event.Event) error {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeFrame := func(name string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	var usageIn int
	for ev := range events {
		switch ev.Type {
		case event.TypeRole:
			start := anthropic.StreamEvent{
				Type: anthropic.EventMessageStart,
				Message: &anthropic.NativeResponse{
					ID:    id,
					Type:  "message",
					Role:  ev.Role,
					Model: model,
					Usage: anthropic.Usage{InputTokens: usageIn},
				},
			}
			if err := writeFrame(anthropic.EventMessageStart, start); err != nil {
				return err
			}
		case event.TypeBlockStart:
			frame := anthropic.StreamEvent{
				Type:         anthropic.EventContentBlockStart,
				Index:        ev.Index,
				ContentBlock: &anthropic.ContentBlock{Type: "text"},
			}
			if err := writeFrame(anthropic.EventContentBlockStart, frame); err != nil {
				return err
			}
		case event.TypeDelta:
			frame := anthropic.StreamEvent{
				Type:  anthropic.EventContentBlockDelta,
				Index: ev.Index,
				Delta: &anthropic.StreamDelta{Type: "text_delta", Text: ev.Text},
			}
			if err := writeFrame(anthropic.EventContentBlockDelta, frame); err != nil {
				return err
			}
		case event.TypeBlockStop:
			frame := anthropic.StreamEvent{Type: anthropic.EventContentBlockStop, Index: ev.Index}
			if err := writeFrame(anthropic.EventContentBlockStop, frame); err != nil {
				return err
			}
		case event.TypeCompletion:
			deltaFrame := anthropic.StreamEvent{
				Type:  anthropic.EventMessageDelta,
				Delta: &anthropic.StreamDelta{StopReason: stopReason(ev.StopReason)},
				Usage: &anthropic.Usage{InputTokens: ev.Usage.InputTokens, OutputTokens: ev.Usage.OutputTokens},
			}
			if err := writeFrame(anthropic.EventMessageDelta, deltaFrame); err != nil {
				return err
			}
			return writeFrame(anthropic.EventMessageStop, anthropic.StreamEvent{Type: anthropic.EventMessageStop})
		case event.TypeError:
			envelope := anthropic.NewErrorEnvelope(ev.ErrKind, ev.ErrMessage)
			return writeFrame(anthropic.EventError, envelope)
		}
	}
	return writeFrame(anthropic.EventError, anthropic.NewErrorEnvelope(fault.KindBackend, "stream ended without a terminal event"))
}

// stopReason maps internal stop reasons to the Messages API vocabulary.
func stopReason(stop string) string {
	if stop == "length" {
		return "max_tokens"
	}
	return "end_turn"
}
