package openai

import (
	"encoding/json"
	"strings"
	"time"
)

// ChatCompletionRequest captures the subset of OpenAI's request the gateway
// accepts, plus the session extensions carried by coding-agent clients.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	// Session extensions: continuity across stateless backend invocations.
	SessionID  string `json:"session_id,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`
	// TimeoutSec overrides the configured default invocation deadline.
	TimeoutSec float64 `json:"timeout,omitempty"`
}

// ChatMessage follows OpenAI's role/content schema. Content is either a
// plain string or an ordered list of typed parts.
type ChatMessage struct {
	Role    string      `json:"role"`
	Content ChatContent `json:"content"`
}

// ContentPart is one element of a multi-part message: a text run or an
// image reference carried as a data URL.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps the data-URL carrier OpenAI uses for inline images.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatContent holds message content as an ordered part list. A bare JSON
// string decodes to a single text part; part order is never changed.
type ChatContent struct {
	Parts []ContentPart
}

// Text flattens the content to plain text, joining text parts in order.
func (c ChatContent) Text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// MarshalJSON re-encodes single-text content as a bare string so the wire
// shape round-trips exactly.
func (c ChatContent) MarshalJSON() ([]byte, error) {
	if len(c.Parts) == 1 && c.Parts[0].Type == "text" {
		return json.Marshal(c.Parts[0].Text)
	}
	if c.Parts == nil {
		return []byte(`""`), nil
	}
	return json.Marshal(c.Parts)
}

// UnmarshalJSON accepts a string or an array of typed parts.
func (c *ChatContent) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" || trimmed == "" {
		c.Parts = nil
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		c.Parts = []ContentPart{{Type: "text", Text: s}}
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	c.Parts = parts
	return nil
}

// TextContent builds single-text message content.
func TextContent(text string) ChatContent {
	return ChatContent{Parts: []ContentPart{{Type: "text", Text: text}}}
}

// ChatCompletionResponse mirrors the OpenAI aggregate completion object.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   UsageBreakdown         `json:"usage"`
	// SessionID echoes the gateway session used for this completion.
	SessionID string `json:"session_id,omitempty"`
}

// ChatCompletionChoice contains the generated message.
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      ChatMessage `json:"message"`
	Logprobs     interface{} `json:"logprobs"`
}

// UsageBreakdown provides token accounting.
type UsageBreakdown struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewCompletionResponse builds an aggregate response with a single choice.
func NewCompletionResponse(id, model string, message ChatMessage, finishReason string, usage UsageBreakdown) ChatCompletionResponse {
	if finishReason == "" {
		finishReason = "stop"
	}
	return ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatCompletionChoice{{
			Index:        0,
			FinishReason: finishReason,
			Message:      message,
		}},
		Usage: usage,
	}
}
