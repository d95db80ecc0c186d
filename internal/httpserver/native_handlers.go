package httpserver

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/promptgate/gateway/internal/anthropic"
	"github.com/promptgate/gateway/internal/fault"
	"github.com/promptgate/gateway/internal/orchestrator"
	"github.com/promptgate/gateway/internal/relay"
	"github.com/promptgate/gateway/internal/translate"
)

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req anthropic.NativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAnthropicError(w, fault.New(fault.KindValidation, "invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeAnthropicError(w, err)
		return
	}

	inv := orchestrator.Invocation{
		Model:  req.Model,
		Stream: req.Stream,
	}
	if s.useAPI {
		inv.Kind = orchestrator.KindRemote
		inv.Native = &req
	} else {
		inv.Kind = orchestrator.KindSubprocess
		inv.Command = "chat"
		inv.Prompt = translate.BuildNativePrompt(req.System.Flatten(), req.Messages)
	}

	h, err := s.orch.Submit(r.Context(), inv)
	if err != nil {
		writeAnthropicError(w, err)
		return
	}
	defer h.Cancel()

	id := "msg_" + uuid.NewString()
	if req.Stream {
		if err := relay.Anthropic(w, id, req.Model, h.Events()); err != nil {
			log.Printf("httpserver.handleMessages: stream write failed id=%s err=%v", id, err)
		}
		return
	}

	res, err := relay.Collect(h.Events(), s.cfg.MaxBufferBytes)
	if err != nil {
		writeAnthropicError(w, err)
		return
	}
	blocks := make([]anthropic.ContentBlock, 0, len(res.Blocks))
	for _, text := range res.Blocks {
		blocks = append(blocks, anthropic.ContentBlock{Type: "text", Text: text})
	}
	writeJSON(w, http.StatusOK, anthropic.NativeResponse{
		ID:         id,
		Type:       "message",
		Role:       res.Role,
		Content:    blocks,
		Model:      req.Model,
		StopReason: anthropicStopReason(res.StopReason),
		Usage:      anthropic.Usage{InputTokens: res.Usage.InputTokens, OutputTokens: res.Usage.OutputTokens},
	})
}

func anthropicStopReason(stop string) string {
	if stop == "length" {
		return "max_tokens"
	}
	return "end_turn"
}
