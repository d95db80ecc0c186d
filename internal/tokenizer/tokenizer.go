// Package tokenizer estimates token usage for prompts and completions.
// Counts are estimates for accounting, not provider-exact billing figures.
package tokenizer

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/promptgate/gateway/internal/event"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// encoding lazily initializes the shared cl100k_base encoder. Loading can
// fail when the vocabulary is unavailable offline, in which case callers
// fall back to a bytes/4 heuristic.
func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	})
	return enc
}

// Count estimates the token count of s.
func Count(s string) int {
	if s == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return len(e.Encode(s, nil, nil))
	}
	// Rough heuristic used when no encoder is available.
	n := len(s) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// Estimate fills in a usage struct for a prompt and its completion text.
func Estimate(prompt, completion string) event.Usage {
	return event.Usage{
		InputTokens:  Count(prompt),
		OutputTokens: Count(completion),
	}
}
