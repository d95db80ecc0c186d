package event

import (
	"fmt"

	"github.com/promptgate/gateway/internal/fault"
)

// Type tags one variant of the internal response event stream.
type Type string

const (
	// TypeRole announces the responder role, at most once per invocation.
	TypeRole Type = "role"
	// TypeBlockStart opens an indexed content block.
	TypeBlockStart Type = "block_start"
	// TypeDelta carries a text fragment for an open block.
	TypeDelta Type = "delta"
	// TypeBlockStop closes an indexed content block.
	TypeBlockStop Type = "block_stop"
	// TypeCompletion terminates a successful invocation.
	TypeCompletion Type = "completion"
	// TypeError terminates a failed invocation.
	TypeError Type = "error"
)

// Usage counts tokens consumed by one invocation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Event is the normalized unit every backend produces and every relay
// consumes. Per invocation the sequence is strictly ordered: at most one
// Role, zero or more Deltas optionally bracketed by BlockStart/BlockStop
// pairs, then exactly one Completion or Error.
type Event struct {
	Type       Type
	Role       string
	Index      int
	Text       string
	StopReason string
	Usage      Usage
	ErrKind    fault.Kind
	ErrMessage string
	// ExitCode carries the subprocess exit status on error events from
	// the CLI backend; zero means no exit status applies.
	ExitCode int
}

// Role announces the responder role.
func Role(role string) Event { return Event{Type: TypeRole, Role: role} }

// BlockStart opens block i.
func BlockStart(i int) Event { return Event{Type: TypeBlockStart, Index: i} }

// Delta emits a text fragment for block i.
func Delta(i int, text string) Event { return Event{Type: TypeDelta, Index: i, Text: text} }

// BlockStop closes block i.
func BlockStop(i int) Event { return Event{Type: TypeBlockStop, Index: i} }

// Completion terminates the stream successfully.
func Completion(reason string, usage Usage) Event {
	return Event{Type: TypeCompletion, StopReason: reason, Usage: usage}
}

// Errorf terminates the stream with a classified failure.
func Errorf(kind fault.Kind, format string, args ...any) Event {
	return Event{Type: TypeError, ErrKind: kind, ErrMessage: fmt.Sprintf(format, args...)}
}

// FromError terminates the stream from an error value.
func FromError(err error) Event {
	return Event{Type: TypeError, ErrKind: fault.KindOf(err), ErrMessage: fault.MessageOf(err)}
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeCompletion || e.Type == TypeError
}
