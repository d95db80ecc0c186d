package anthropic

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/promptgate/gateway/internal/fault"
)

func TestValidate(t *testing.T) {
	ok := NativeRequest{
		Model:     "claude-sonnet-4",
		MaxTokens: 64,
		Messages:  []NativeMessage{{Role: "user", Content: NativeContent{Blocks: []ContentBlock{{Type: "text", Text: "hi"}}}}},
	}

	tests := []struct {
		name   string
		mutate func(*NativeRequest)
	}{
		{"missing model", func(r *NativeRequest) { r.Model = " " }},
		{"no messages", func(r *NativeRequest) { r.Messages = nil }},
		{"missing max_tokens", func(r *NativeRequest) { r.MaxTokens = 0 }},
		{"negative max_tokens", func(r *NativeRequest) { r.MaxTokens = -5 }},
		{"system role in messages", func(r *NativeRequest) { r.Messages[0].Role = "system" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := ok
			req.Messages = append([]NativeMessage(nil), ok.Messages...)
			tc.mutate(&req)
			err := req.Validate()
			var f *fault.Error
			if !errors.As(err, &f) || f.Kind != fault.KindValidation {
				t.Errorf("Validate() = %v, want validation fault", err)
			}
		})
	}

	if err := ok.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestNativeContentAcceptsStringOrBlocks(t *testing.T) {
	var fromString NativeContent
	if err := json.Unmarshal([]byte(`"plain text"`), &fromString); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if len(fromString.Blocks) != 1 || fromString.Blocks[0].Text != "plain text" {
		t.Errorf("string content = %+v", fromString.Blocks)
	}

	var fromBlocks NativeContent
	if err := json.Unmarshal([]byte(`[{"type":"text","text":"a"},{"type":"image","source":{"type":"base64","media_type":"image/png","data":"QUJD"}}]`), &fromBlocks); err != nil {
		t.Fatalf("unmarshal blocks: %v", err)
	}
	if len(fromBlocks.Blocks) != 2 || fromBlocks.Blocks[1].Source.MediaType != "image/png" {
		t.Errorf("block content = %+v", fromBlocks.Blocks)
	}
}

func TestSystemFieldFlatten(t *testing.T) {
	var fromArray SystemField
	if err := json.Unmarshal([]byte(`[{"type":"text","text":"be terse"},{"type":"text","text":" and kind"}]`), &fromArray); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := fromArray.Flatten(); got != "be terse and kind" {
		t.Errorf("Flatten() = %q", got)
	}

	if got := (SystemField{Text: "just a string"}).Flatten(); got != "just a string" {
		t.Errorf("Flatten() = %q", got)
	}
}
