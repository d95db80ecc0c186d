package testutil

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

// SSEFrame is one server-sent event as read off the wire. Event is empty
// for frames that carry only a data line.
type SSEFrame struct {
	Event string
	Data  string
}

// ReadSSE consumes the stream and returns every frame in order. Blank
// lines separate frames; ping-style comment lines are dropped.
func ReadSSE(t *testing.T, r io.Reader) []SSEFrame {
	t.Helper()
	var frames []SSEFrame
	var cur SSEFrame
	var open bool
	flush := func() {
		if open {
			frames = append(frames, cur)
			cur = SSEFrame{}
			open = false
		}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			cur.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			open = true
		case strings.HasPrefix(line, "data:"):
			if cur.Data != "" {
				cur.Data += "\n"
			}
			cur.Data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			open = true
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("read SSE stream: %v", err)
	}
	flush()
	return frames
}

// Events lists the event names in stream order, skipping unnamed frames.
func Events(frames []SSEFrame) []string {
	var names []string
	for _, f := range frames {
		if f.Event != "" {
			names = append(names, f.Event)
		}
	}
	return names
}
