package cliapi

import (
	"strings"

	"github.com/promptgate/gateway/internal/fault"
)

// Response formats accepted by the execute endpoint.
const (
	FormatOpenAI = "openai"
	FormatNative = "native"
)

// ExecuteRequest invokes one allow-listed CLI subcommand.
type ExecuteRequest struct {
	Command        string   `json:"command"`
	Args           []string `json:"args,omitempty"`
	TimeoutSec     float64  `json:"timeout,omitempty"`
	ResponseFormat string   `json:"response_format,omitempty"`
	WorkingDir     string   `json:"working_dir,omitempty"`
}

// Validate checks shape only; the command allow-list is enforced by the
// orchestrator before any slot is consumed.
func (r ExecuteRequest) Validate() error {
	if strings.TrimSpace(r.Command) == "" {
		return fault.New(fault.KindValidation, "command is required")
	}
	switch r.ResponseFormat {
	case "", FormatOpenAI, FormatNative:
	default:
		return fault.New(fault.KindValidation, "response_format must be %q or %q", FormatOpenAI, FormatNative)
	}
	if r.TimeoutSec < 0 {
		return fault.New(fault.KindValidation, "timeout must not be negative")
	}
	return nil
}

// ExecuteResponse reports one CLI invocation outcome. Output is the raw
// stdout for native format, or an OpenAI completion object for openai
// format.
type ExecuteResponse struct {
	Success     bool        `json:"success"`
	Output      interface{} `json:"output"`
	Error       string      `json:"error,omitempty"`
	ExitCode    int         `json:"exit_code"`
	DurationSec float64     `json:"duration"`
}
