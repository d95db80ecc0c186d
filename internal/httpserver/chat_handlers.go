package httpserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/fault"
	"github.com/promptgate/gateway/internal/openai"
	"github.com/promptgate/gateway/internal/orchestrator"
	"github.com/promptgate/gateway/internal/relay"
	"github.com/promptgate/gateway/internal/session"
	"github.com/promptgate/gateway/internal/translate"
)

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOpenAIError(w, fault.New(fault.KindValidation, "invalid request body: %v", err))
		return
	}
	if len(req.Messages) == 0 {
		writeOpenAIError(w, fault.New(fault.KindValidation, "messages must not be empty"))
		return
	}

	// Session continuity: serialize by id, then splice stored turns in
	// front of the incoming messages.
	var sess *session.Session
	if req.SessionID != "" {
		release := s.sessions.Lock(req.SessionID)
		defer release()
		var err error
		sess, err = s.sessions.GetOrCreate(r.Context(), req.SessionID, req.Model, req.WorkingDir)
		if err != nil {
			writeOpenAIError(w, err)
			return
		}
	}
	messages := append(turnsToChat(sess), req.Messages...)

	inv := orchestrator.Invocation{
		Model:      req.Model,
		Stream:     req.Stream,
		Timeout:    time.Duration(req.TimeoutSec * float64(time.Second)),
		WorkingDir: req.WorkingDir,
	}
	if sess != nil {
		inv.SessionID = sess.ID
	}
	if s.useAPI {
		native, err := translate.ChatToNative(openai.ChatCompletionRequest{
			Model:       req.Model,
			Messages:    messages,
			Temperature: req.Temperature,
			TopP:        req.TopP,
			MaxTokens:   req.MaxTokens,
		}, s.defaultMaxTokens())
		if err != nil {
			writeOpenAIError(w, err)
			return
		}
		inv.Kind = orchestrator.KindRemote
		inv.Native = &native
	} else {
		inv.Kind = orchestrator.KindSubprocess
		inv.Command = "chat"
		inv.Prompt = translate.BuildPrompt(messages)
	}

	h, err := s.orch.Submit(r.Context(), inv)
	if err != nil {
		writeOpenAIError(w, err)
		return
	}
	defer h.Cancel()

	id := "chatcmpl-" + uuid.NewString()
	if req.Stream {
		events, captured := captureEvents(h.Events())
		if err := relay.OpenAI(w, id, req.Model, events); err != nil {
			log.Printf("httpserver.handleChatCompletions: stream write failed id=%s err=%v", id, err)
		}
		s.recordExchange(r, sess, req.Messages, captured)
		return
	}

	res, err := relay.Collect(h.Events(), s.cfg.MaxBufferBytes)
	if err != nil {
		writeOpenAIError(w, err)
		return
	}
	s.appendTurns(r, sess, req.Messages, res.Text(), false)

	resp := openai.NewCompletionResponse(id, req.Model,
		openai.ChatMessage{Role: res.Role, Content: openai.TextContent(res.Text())},
		openAIFinishReason(res.StopReason),
		openai.UsageBreakdown{
			PromptTokens:     res.Usage.InputTokens,
			CompletionTokens: res.Usage.OutputTokens,
			TotalTokens:      res.Usage.InputTokens + res.Usage.OutputTokens,
		})
	if sess != nil {
		resp.SessionID = sess.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) defaultMaxTokens() int {
	return 4096
}

func openAIFinishReason(stop string) string {
	if stop == "length" {
		return "length"
	}
	return "stop"
}

// turnsToChat renders stored session turns as chat messages.
func turnsToChat(sess *session.Session) []openai.ChatMessage {
	if sess == nil {
		return nil
	}
	out := make([]openai.ChatMessage, 0, len(sess.Turns))
	for _, turn := range sess.Turns {
		out = append(out, openai.ChatMessage{
			Role:    turn.Role,
			Content: openai.TextContent(turn.Content),
		})
	}
	return out
}

// capture accumulates the streamed text so the session record can be
// updated after the relay finishes.
type capture struct {
	text     strings.Builder
	complete bool
	failed   bool
}

// captureEvents tees the stream: events pass through unchanged while the
// capture accumulates text and the terminal outcome.
func captureEvents(in <-chan event.Event) (<-chan event.Event, *capture) {
	c := &capture{}
	out := make(chan event.Event, 16)
	go func() {
		defer close(out)
		for ev := range in {
			switch ev.Type {
			case event.TypeDelta:
				c.text.WriteString(ev.Text)
			case event.TypeCompletion:
				c.complete = true
			case event.TypeError:
				c.failed = true
			}
			out <- ev
		}
	}()
	return out, c
}

// recordExchange persists a streamed exchange. Failed invocations with
// partial output are kept but marked incomplete; failures with no output
// record nothing.
func (s *Server) recordExchange(r *http.Request, sess *session.Session, inbound []openai.ChatMessage, c *capture) {
	if sess == nil {
		return
	}
	text := c.text.String()
	if c.failed && text == "" {
		return
	}
	s.appendTurns(r, sess, inbound, text, c.failed)
}

func (s *Server) appendTurns(r *http.Request, sess *session.Session, inbound []openai.ChatMessage, reply string, incomplete bool) {
	if sess == nil {
		return
	}
	turns := make([]session.Turn, 0, len(inbound)+1)
	for _, msg := range inbound {
		role := strings.ToLower(msg.Role)
		if role == "system" {
			continue
		}
		turns = append(turns, session.Turn{Role: role, Content: msg.Content.Text()})
	}
	turns = append(turns, session.Turn{Role: "assistant", Content: reply, Incomplete: incomplete})
	if err := s.sessions.Append(r.Context(), sess.ID, turns...); err != nil {
		log.Printf("httpserver.appendTurns: session update failed id=%s err=%v", sess.ID, err)
	}
}
