// Package translate holds the pure format adapters between the gateway's
// inbound protocols. Functions here perform no I/O and keep multi-part
// content in its original declared order.
package translate

import (
	"fmt"
	"strings"

	"github.com/promptgate/gateway/internal/anthropic"
	"github.com/promptgate/gateway/internal/fault"
	"github.com/promptgate/gateway/internal/openai"
)

// ChatToNative maps an OpenAI chat-completion request into the Anthropic
// messages payload. System messages collapse into the system field in
// declaration order; content parts are never reordered.
func ChatToNative(req openai.ChatCompletionRequest, defaultMaxTokens int) (anthropic.NativeRequest, error) {
	out := anthropic.NativeRequest{
		Model:       req.Model,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		out.MaxTokens = *req.MaxTokens
	} else {
		out.MaxTokens = defaultMaxTokens
	}

	var systemParts []string
	for _, msg := range req.Messages {
		role := strings.ToLower(msg.Role)
		switch role {
		case "system":
			if text := msg.Content.Text(); strings.TrimSpace(text) != "" {
				systemParts = append(systemParts, text)
			}
		case "user", "assistant":
			blocks, err := partsToBlocks(msg.Content.Parts)
			if err != nil {
				return anthropic.NativeRequest{}, err
			}
			if len(blocks) == 0 {
				continue
			}
			out.Messages = append(out.Messages, anthropic.NativeMessage{
				Role:    role,
				Content: anthropic.NativeContent{Blocks: blocks},
			})
		default:
			return anthropic.NativeRequest{}, fault.New(fault.KindValidation, "invalid message role %q", msg.Role)
		}
	}

	if len(systemParts) > 0 {
		out.System = anthropic.SystemField{Text: strings.Join(systemParts, "\n\n")}
	}
	if len(out.Messages) == 0 {
		return anthropic.NativeRequest{}, fault.New(fault.KindValidation, "no user or assistant messages after filtering system messages")
	}
	return out, nil
}

// NativeToChat maps an Anthropic messages request into the OpenAI chat
// shape. The system field becomes a leading system message; block order is
// preserved exactly.
func NativeToChat(req anthropic.NativeRequest) (openai.ChatCompletionRequest, error) {
	out := openai.ChatCompletionRequest{
		Model:       req.Model,
		Stream:      req.Stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		out.MaxTokens = &mt
	}
	if system := req.System.Flatten(); strings.TrimSpace(system) != "" {
		out.Messages = append(out.Messages, openai.ChatMessage{
			Role:    "system",
			Content: openai.TextContent(system),
		})
	}
	for _, msg := range req.Messages {
		parts, err := blocksToParts(msg.Content.Blocks)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		if len(parts) == 0 {
			continue
		}
		out.Messages = append(out.Messages, openai.ChatMessage{
			Role:    strings.ToLower(msg.Role),
			Content: openai.ChatContent{Parts: parts},
		})
	}
	if len(out.Messages) == 0 {
		return openai.ChatCompletionRequest{}, fault.New(fault.KindValidation, "messages must not be empty")
	}
	return out, nil
}

func partsToBlocks(parts []openai.ContentPart) ([]anthropic.ContentBlock, error) {
	var blocks []anthropic.ContentBlock
	for _, p := range parts {
		switch p.Type {
		case "text":
			if p.Text == "" {
				continue
			}
			blocks = append(blocks, anthropic.ContentBlock{Type: "text", Text: p.Text})
		case "image_url":
			if p.ImageURL == nil || p.ImageURL.URL == "" {
				continue
			}
			source, err := parseDataURL(p.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, anthropic.ContentBlock{Type: "image", Source: source})
		default:
			return nil, fault.New(fault.KindValidation, "unsupported content part type %q", p.Type)
		}
	}
	return blocks, nil
}

func blocksToParts(blocks []anthropic.ContentBlock) ([]openai.ContentPart, error) {
	var parts []openai.ContentPart
	for _, b := range blocks {
		switch strings.ToLower(b.Type) {
		case "text":
			if b.Text == "" {
				continue
			}
			parts = append(parts, openai.ContentPart{Type: "text", Text: b.Text})
		case "image":
			if b.Source == nil || b.Source.Data == "" {
				continue
			}
			parts = append(parts, openai.ContentPart{
				Type:     "image_url",
				ImageURL: &openai.ImageURL{URL: dataURL(b.Source)},
			})
		default:
			return nil, fault.New(fault.KindValidation, "unsupported content block type %q", b.Type)
		}
	}
	return parts, nil
}

// parseDataURL splits an OpenAI data URL into the Anthropic base64 source.
func parseDataURL(url string) (*anthropic.ImageSource, error) {
	if !strings.HasPrefix(url, "data:") {
		return nil, fault.New(fault.KindValidation, "image_url must be a data URL")
	}
	rest := strings.TrimPrefix(url, "data:")
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return nil, fault.New(fault.KindValidation, "image_url must carry base64 data")
	}
	mediaType := rest[:sep]
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return &anthropic.ImageSource{
		Type:      "base64",
		MediaType: mediaType,
		Data:      rest[sep+len(";base64,"):],
	}, nil
}

func dataURL(src *anthropic.ImageSource) string {
	mediaType := src.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, src.Data)
}
