// Package relay re-emits the orchestrator's event stream in each client
// protocol's wire framing, or buffers it into one aggregate response.
package relay

import (
	"strings"

	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/fault"
)

// DefaultMaxBufferBytes caps aggregate buffering. A backend producing more
// output than this for one non-streaming request aborts the request rather
// than growing without bound.
const DefaultMaxBufferBytes = 8 << 20

// Result is the aggregate of one completed invocation.
type Result struct {
	Role       string
	Blocks     []string
	StopReason string
	Usage      event.Usage
}

// Text joins the block texts in order.
func (r *Result) Text() string {
	return strings.Join(r.Blocks, "")
}

// Collect drains the stream into an aggregate Result. An error event
// terminates collection with the corresponding fault; exceeding maxBytes
// aborts while still draining the channel so the producer can finish.
func Collect(events <-chan event.Event, maxBytes int) (*Result, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBufferBytes
	}
	res := &Result{Role: "assistant"}
	var (
		current  strings.Builder
		buffered int
		overflow bool
	)
	flushBlock := func() {
		if current.Len() > 0 {
			res.Blocks = append(res.Blocks, current.String())
			current.Reset()
		}
	}
	for ev := range events {
		if overflow {
			continue
		}
		switch ev.Type {
		case event.TypeRole:
			res.Role = ev.Role
		case event.TypeBlockStart:
			flushBlock()
		case event.TypeDelta:
			buffered += len(ev.Text)
			if buffered > maxBytes {
				overflow = true
				continue
			}
			current.WriteString(ev.Text)
		case event.TypeBlockStop:
			flushBlock()
		case event.TypeCompletion:
			flushBlock()
			res.StopReason = ev.StopReason
			res.Usage = ev.Usage
		case event.TypeError:
			ferr := fault.New(ev.ErrKind, "%s", ev.ErrMessage)
			if ev.ExitCode != 0 {
				ferr = ferr.WithExit(ev.ExitCode)
			}
			return nil, ferr
		}
	}
	if overflow {
		return nil, fault.New(fault.KindBackend, "response exceeded the %d byte buffer cap", maxBytes)
	}
	if res.StopReason == "" {
		return nil, fault.New(fault.KindProtocol, "backend stream ended without a terminal event")
	}
	return res, nil
}
