package translate

import (
	"strings"
	"testing"

	"github.com/promptgate/gateway/internal/anthropic"
	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/fault"
	"github.com/promptgate/gateway/internal/openai"
)

func TestChatToNativeCollectsSystem(t *testing.T) {
	req := openai.ChatCompletionRequest{
		Model: "claude-sonnet-4",
		Messages: []openai.ChatMessage{
			{Role: "system", Content: openai.TextContent("be brief")},
			{Role: "user", Content: openai.TextContent("hello")},
			{Role: "system", Content: openai.TextContent("and polite")},
		},
	}
	native, err := ChatToNative(req, 1024)
	if err != nil {
		t.Fatalf("ChatToNative: %v", err)
	}
	if got := native.System.Flatten(); got != "be brief\n\nand polite" {
		t.Errorf("system = %q", got)
	}
	if len(native.Messages) != 1 || native.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", native.Messages)
	}
	if native.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d, want default 1024", native.MaxTokens)
	}
}

func TestChatToNativePreservesPartOrder(t *testing.T) {
	img := "data:image/png;base64,AAAA"
	req := openai.ChatCompletionRequest{
		Model: "claude-sonnet-4",
		Messages: []openai.ChatMessage{
			{Role: "user", Content: openai.ChatContent{Parts: []openai.ContentPart{
				{Type: "text", Text: "before"},
				{Type: "image_url", ImageURL: &openai.ImageURL{URL: img}},
				{Type: "text", Text: "after"},
			}}},
		},
	}
	native, err := ChatToNative(req, 512)
	if err != nil {
		t.Fatalf("ChatToNative: %v", err)
	}
	blocks := native.Messages[0].Content.Blocks
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	wantTypes := []string{"text", "image", "text"}
	for i, want := range wantTypes {
		if blocks[i].Type != want {
			t.Errorf("block %d type = %q, want %q", i, blocks[i].Type, want)
		}
	}
	if blocks[1].Source.MediaType != "image/png" || blocks[1].Source.Data != "AAAA" {
		t.Errorf("image source = %+v", blocks[1].Source)
	}
}

func TestRoundTripOrderPreserved(t *testing.T) {
	req := openai.ChatCompletionRequest{
		Model: "claude-sonnet-4",
		Messages: []openai.ChatMessage{
			{Role: "user", Content: openai.ChatContent{Parts: []openai.ContentPart{
				{Type: "text", Text: "one"},
				{Type: "image_url", ImageURL: &openai.ImageURL{URL: "data:image/jpeg;base64,QkJC"}},
				{Type: "text", Text: "three"},
			}}},
			{Role: "assistant", Content: openai.TextContent("reply")},
		},
	}
	native, err := ChatToNative(req, 256)
	if err != nil {
		t.Fatalf("ChatToNative: %v", err)
	}
	back, err := NativeToChat(native)
	if err != nil {
		t.Fatalf("NativeToChat: %v", err)
	}
	if len(back.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(back.Messages))
	}
	parts := back.Messages[0].Content.Parts
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	if parts[0].Text != "one" || parts[2].Text != "three" {
		t.Errorf("text parts out of order: %+v", parts)
	}
	if parts[1].Type != "image_url" || parts[1].ImageURL.URL != "data:image/jpeg;base64,QkJC" {
		t.Errorf("image part = %+v", parts[1])
	}
}

func TestChatToNativeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		req  openai.ChatCompletionRequest
	}{
		{"bad role", openai.ChatCompletionRequest{Messages: []openai.ChatMessage{
			{Role: "tool", Content: openai.TextContent("x")},
		}}},
		{"only system", openai.ChatCompletionRequest{Messages: []openai.ChatMessage{
			{Role: "system", Content: openai.TextContent("x")},
		}}},
		{"non data url image", openai.ChatCompletionRequest{Messages: []openai.ChatMessage{
			{Role: "user", Content: openai.ChatContent{Parts: []openai.ContentPart{
				{Type: "image_url", ImageURL: &openai.ImageURL{URL: "https://example.com/a.png"}},
			}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ChatToNative(tt.req, 128)
			if err == nil {
				t.Fatal("expected error")
			}
			if fault.KindOf(err) != fault.KindValidation {
				t.Errorf("kind = %v, want validation", fault.KindOf(err))
			}
		})
	}
}

func TestNativeToChatSystemLeads(t *testing.T) {
	native := anthropic.NativeRequest{
		Model:  "claude-sonnet-4",
		System: anthropic.SystemField{Text: "rules"},
		Messages: []anthropic.NativeMessage{
			{Role: "user", Content: anthropic.NativeContent{Blocks: []anthropic.ContentBlock{{Type: "text", Text: "hi"}}}},
		},
		MaxTokens: 64,
	}
	chat, err := NativeToChat(native)
	if err != nil {
		t.Fatalf("NativeToChat: %v", err)
	}
	if chat.Messages[0].Role != "system" || chat.Messages[0].Content.Text() != "rules" {
		t.Errorf("leading message = %+v", chat.Messages[0])
	}
	if chat.MaxTokens == nil || *chat.MaxTokens != 64 {
		t.Errorf("max_tokens = %v", chat.MaxTokens)
	}
}

func TestBuildPrompt(t *testing.T) {
	messages := []openai.ChatMessage{
		{Role: "system", Content: openai.TextContent("be brief")},
		{Role: "user", Content: openai.ChatContent{Parts: []openai.ContentPart{
			{Type: "text", Text: "what is this"},
			{Type: "image_url", ImageURL: &openai.ImageURL{URL: "data:image/png;base64,AA"}},
		}}},
		{Role: "assistant", Content: openai.TextContent("a cat")},
	}
	got := BuildPrompt(messages)
	want := "[SYSTEM]: be brief\n\n[USER]: what is this\n[IMAGE]\n\n[ASSISTANT]: a cat"
	if got != want {
		t.Errorf("BuildPrompt = %q, want %q", got, want)
	}
}

func TestBuildNativePrompt(t *testing.T) {
	got := BuildNativePrompt("rules", []anthropic.NativeMessage{
		{Role: "user", Content: anthropic.NativeContent{Blocks: []anthropic.ContentBlock{{Type: "text", Text: "hi"}}}},
	})
	if !strings.HasPrefix(got, "[SYSTEM]: rules") || !strings.Contains(got, "[USER]: hi") {
		t.Errorf("BuildNativePrompt = %q", got)
	}
}

func TestBlockTracker(t *testing.T) {
	tests := []struct {
		name   string
		events []event.Event
		wantOK bool
	}{
		{"well nested", []event.Event{
			event.BlockStart(0),
			event.Delta(0, "a"),
			event.BlockStop(0),
			event.Completion("stop", event.Usage{}),
		}, true},
		{"double open", []event.Event{
			event.BlockStart(0),
			event.BlockStart(0),
		}, false},
		{"delta outside block", []event.Event{
			event.Delta(0, "a"),
		}, false},
		{"close unopened", []event.Event{
			event.BlockStop(1),
		}, false},
		{"completion with open block", []event.Event{
			event.BlockStart(0),
			event.Completion("stop", event.Usage{}),
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewBlockTracker()
			var err error
			for _, ev := range tt.events {
				if err = tr.Observe(ev); err != nil {
					break
				}
			}
			if tt.wantOK && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("expected protocol error")
				}
				if fault.KindOf(err) != fault.KindProtocol {
					t.Errorf("kind = %v, want protocol", fault.KindOf(err))
				}
			}
		})
	}
}
