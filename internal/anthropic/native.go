package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/promptgate/gateway/internal/fault"
)

// NativeRequest represents an Anthropic /v1/messages payload.
type NativeRequest struct {
	Model         string          `json:"model"`
	Messages      []NativeMessage `json:"messages"`
	MaxTokens     int             `json:"max_tokens"`
	Stream        bool            `json:"stream,omitempty"`
	System        SystemField     `json:"system,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
}

// Validate enforces the upstream protocol's own mandatory-field contract.
// A missing max_tokens is a client-visible validation error, never a
// default substitution.
func (r NativeRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fault.New(fault.KindValidation, "model is required")
	}
	if len(r.Messages) == 0 {
		return fault.New(fault.KindValidation, "messages must not be empty")
	}
	if r.MaxTokens <= 0 {
		return fault.New(fault.KindValidation, "max_tokens is required and must be positive")
	}
	for _, m := range r.Messages {
		switch m.Role {
		case "user", "assistant":
		default:
			return fault.New(fault.KindValidation, "invalid message role %q", m.Role)
		}
	}
	return nil
}

// NativeMessage represents one Anthropic conversation turn.
type NativeMessage struct {
	Role    string        `json:"role"`
	Content NativeContent `json:"content"`
}

// NativeContent supports a bare string or an array of content blocks.
type NativeContent struct {
	Blocks []ContentBlock
}

// ContentBlock captures text and image blocks.
type ContentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is the base64 image carrier of the Messages API.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// SystemField supports a string or an array of content blocks.
type SystemField struct {
	Text   string
	Blocks []ContentBlock
}

// Text flattens the system field into plain text.
func (s SystemField) Flatten() string {
	if strings.TrimSpace(s.Text) != "" {
		return s.Text
	}
	var b strings.Builder
	for _, block := range s.Blocks {
		if strings.EqualFold(block.Type, "text") {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// NativeResponse models the Anthropic aggregate message object.
type NativeResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// Usage mirrors the Messages API token accounting.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MarshalJSON ensures Anthropic messages receive an array of content blocks.
func (c NativeContent) MarshalJSON() ([]byte, error) {
	if len(c.Blocks) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Blocks)
}

// UnmarshalJSON for NativeContent accepts a string or block array.
func (c *NativeContent) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" || trimmed == "null" {
		c.Blocks = nil
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		c.Blocks = []ContentBlock{{Type: "text", Text: s}}
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(b, &blocks); err != nil {
		return err
	}
	c.Blocks = blocks
	return nil
}

// MarshalJSON encodes the system field in Anthropic-compatible form.
func (s SystemField) MarshalJSON() ([]byte, error) {
	text := strings.TrimSpace(s.Text)
	switch {
	case len(s.Blocks) > 0:
		return json.Marshal(s.Blocks)
	case text != "":
		return json.Marshal(s.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON for SystemField allows a string or an array of blocks.
func (s *SystemField) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(b, &s.Text)
	}
	return json.Unmarshal(b, &s.Blocks)
}
