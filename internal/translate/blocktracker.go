package translate

import (
	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/fault"
)

// BlockTracker enforces well-nested content block framing on a response
// event sequence: every delta must land inside an open block, a block
// cannot be opened twice, and completion may only arrive with all blocks
// closed. Violations surface as protocol faults.
type BlockTracker struct {
	open map[int]bool
	done bool
}

func NewBlockTracker() *BlockTracker {
	return &BlockTracker{open: make(map[int]bool)}
}

// Observe validates one event against the framing rules. It returns a
// protocol fault on the first violation; the tracker is then poisoned and
// rejects everything after.
func (t *BlockTracker) Observe(ev event.Event) error {
	if t.done {
		return fault.New(fault.KindProtocol, "event after stream completion")
	}
	switch ev.Type {
	case event.TypeBlockStart:
		if t.open[ev.Index] {
			return fault.New(fault.KindProtocol, "content block %d opened twice", ev.Index)
		}
		t.open[ev.Index] = true
	case event.TypeDelta:
		if !t.open[ev.Index] {
			return fault.New(fault.KindProtocol, "delta for closed content block %d", ev.Index)
		}
	case event.TypeBlockStop:
		if !t.open[ev.Index] {
			return fault.New(fault.KindProtocol, "content block %d closed but never opened", ev.Index)
		}
		delete(t.open, ev.Index)
	case event.TypeCompletion:
		if len(t.open) > 0 {
			return fault.New(fault.KindProtocol, "stream completed with %d content blocks still open", len(t.open))
		}
		t.done = true
	case event.TypeError:
		t.done = true
	}
	return nil
}
