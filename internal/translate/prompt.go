package translate

import (
	"strings"

	"github.com/promptgate/gateway/internal/anthropic"
	"github.com/promptgate/gateway/internal/openai"
)

// BuildPrompt flattens a chat request into the plain-text prompt handed to
// the CLI backend. Each message gets a bracketed role prefix; image parts
// are replaced by a placeholder since the subprocess transport is text-only.
func BuildPrompt(messages []openai.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(rolePrefix(msg.Role))
		b.WriteString(": ")
		b.WriteString(flattenParts(msg.Content.Parts))
	}
	return b.String()
}

// BuildNativePrompt is the messages-API counterpart of BuildPrompt. The
// system text, when present, leads the prompt under a [SYSTEM] prefix.
func BuildNativePrompt(system string, messages []anthropic.NativeMessage) string {
	var b strings.Builder
	if strings.TrimSpace(system) != "" {
		b.WriteString("[SYSTEM]: ")
		b.WriteString(system)
	}
	for _, msg := range messages {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(rolePrefix(msg.Role))
		b.WriteString(": ")
		b.WriteString(flattenBlocks(msg.Content.Blocks))
	}
	return b.String()
}

func rolePrefix(role string) string {
	switch strings.ToLower(role) {
	case "system":
		return "[SYSTEM]"
	case "assistant":
		return "[ASSISTANT]"
	default:
		return "[USER]"
	}
}

func flattenParts(parts []openai.ContentPart) string {
	var segs []string
	for _, p := range parts {
		switch p.Type {
		case "text":
			if p.Text != "" {
				segs = append(segs, p.Text)
			}
		case "image_url":
			segs = append(segs, "[IMAGE]")
		}
	}
	return strings.Join(segs, "\n")
}

func flattenBlocks(blocks []anthropic.ContentBlock) string {
	var segs []string
	for _, b := range blocks {
		switch strings.ToLower(b.Type) {
		case "text":
			if b.Text != "" {
				segs = append(segs, b.Text)
			}
		case "image":
			segs = append(segs, "[IMAGE]")
		}
	}
	return strings.Join(segs, "\n")
}
