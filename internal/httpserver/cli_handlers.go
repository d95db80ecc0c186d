package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/promptgate/gateway/internal/cliapi"
	"github.com/promptgate/gateway/internal/fault"
	"github.com/promptgate/gateway/internal/openai"
	"github.com/promptgate/gateway/internal/orchestrator"
	"github.com/promptgate/gateway/internal/relay"
)

// handleExecute runs one allow-listed CLI command. Admission failures map
// to HTTP error statuses; execution failures come back as a 200 with
// success=false and the subprocess exit code, so callers can distinguish
// "the gateway refused" from "the command ran and failed".
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req cliapi.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeExecuteError(w, fault.New(fault.KindValidation, "invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeExecuteError(w, err)
		return
	}

	inv := orchestrator.Invocation{
		Kind:       orchestrator.KindSubprocess,
		Command:    req.Command,
		Args:       req.Args,
		WorkingDir: req.WorkingDir,
		Timeout:    time.Duration(req.TimeoutSec * float64(time.Second)),
	}
	start := time.Now()
	h, err := s.orch.Submit(r.Context(), inv)
	if err != nil {
		writeExecuteError(w, err)
		return
	}
	defer h.Cancel()

	res, runErr := relay.Collect(h.Events(), s.cfg.MaxBufferBytes)
	duration := time.Since(start).Seconds()

	if runErr != nil {
		writeJSON(w, http.StatusOK, cliapi.ExecuteResponse{
			Success:     false,
			Error:       fault.MessageOf(runErr),
			ExitCode:    fault.ExitCodeOf(runErr),
			DurationSec: duration,
		})
		return
	}

	var output any = res.Text()
	if req.ResponseFormat == cliapi.FormatOpenAI {
		output = openai.NewCompletionResponse(
			"chatcmpl-"+uuid.NewString(), "cli/"+req.Command,
			openai.ChatMessage{Role: "assistant", Content: openai.TextContent(res.Text())},
			openAIFinishReason(res.StopReason),
			openai.UsageBreakdown{
				PromptTokens:     res.Usage.InputTokens,
				CompletionTokens: res.Usage.OutputTokens,
				TotalTokens:      res.Usage.InputTokens + res.Usage.OutputTokens,
			})
	}
	writeJSON(w, http.StatusOK, cliapi.ExecuteResponse{
		Success:     true,
		Output:      output,
		ExitCode:    0,
		DurationSec: duration,
	})
}

// writeExecuteError reports an admission or validation failure with the
// HTTP status for its kind.
func writeExecuteError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	writeJSON(w, fault.HTTPStatus(kind), cliapi.ExecuteResponse{
		Success:  false,
		Error:    fault.MessageOf(err),
		ExitCode: -1,
	})
}
