package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/fault"
)

type stubRunner struct {
	events []event.Event
	delay  time.Duration
	gotCtx context.Context
}

func (r *stubRunner) Run(ctx context.Context, _ Invocation, emit func(event.Event)) {
	r.gotCtx = ctx
	for _, ev := range r.events {
		if r.delay > 0 {
			select {
			case <-time.After(r.delay):
			case <-ctx.Done():
				emit(event.Errorf(fault.KindTimeout, "deadline exceeded"))
				return
			}
		}
		emit(ev)
	}
}

func okEvents(text string) []event.Event {
	return []event.Event{
		event.Role("assistant"),
		event.BlockStart(0),
		event.Delta(0, text),
		event.BlockStop(0),
		event.Completion("stop", event.Usage{InputTokens: 1, OutputTokens: 1}),
	}
}

func newTestOrchestrator(remote, sub Runner) *Orchestrator {
	return New(Options{
		Pool:           NewPool(2, time.Second),
		Allow:          NewAllowList([]string{"chat", "ask", "code", "explain", "fix", "test", "review"}),
		Remote:         remote,
		Subprocess:     sub,
		DefaultTimeout: time.Second,
		MaxTimeout:     5 * time.Second,
	})
}

func collect(t *testing.T, h *Handle) []event.Event {
	t.Helper()
	var out []event.Event
	for ev := range h.Events() {
		out = append(out, ev)
	}
	return out
}

func TestSubmitRemote(t *testing.T) {
	o := newTestOrchestrator(&stubRunner{events: okEvents("hi")}, nil)
	h, err := o.Submit(context.Background(), Invocation{Kind: KindRemote, Prompt: "p"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	events := collect(t, h)
	if len(events) != 5 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	last := events[len(events)-1]
	if last.Type != event.TypeCompletion || last.StopReason != "stop" {
		t.Errorf("terminal = %+v", last)
	}
}

func TestSubmitDisallowedCommand(t *testing.T) {
	o := newTestOrchestrator(nil, &stubRunner{events: okEvents("x")})
	_, err := o.Submit(context.Background(), Invocation{Kind: KindSubprocess, Command: "rm"})
	if err == nil {
		t.Fatal("expected policy rejection")
	}
	if fault.KindOf(err) != fault.KindPolicy {
		t.Errorf("kind = %v, want policy", fault.KindOf(err))
	}
	if got := o.Stats().Total; got != 0 {
		t.Errorf("rejected command consumed a slot: total=%d", got)
	}
}

func TestSubmitAllowedCommandCaseInsensitive(t *testing.T) {
	o := newTestOrchestrator(nil, &stubRunner{events: okEvents("x")})
	h, err := o.Submit(context.Background(), Invocation{Kind: KindSubprocess, Command: "  Chat "})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	collect(t, h)
}

func TestSubmitUnconfiguredBackend(t *testing.T) {
	o := newTestOrchestrator(&stubRunner{events: okEvents("x")}, nil)
	_, err := o.Submit(context.Background(), Invocation{Kind: KindSubprocess, Command: "chat"})
	if fault.KindOf(err) != fault.KindBackend {
		t.Errorf("kind = %v, want backend", fault.KindOf(err))
	}
}

func TestTimeoutProducesErrorEvent(t *testing.T) {
	slow := &stubRunner{events: okEvents("x"), delay: 200 * time.Millisecond}
	o := New(Options{
		Pool:           NewPool(1, time.Second),
		Allow:          NewAllowList([]string{"chat"}),
		Remote:         slow,
		DefaultTimeout: 30 * time.Millisecond,
		MaxTimeout:     30 * time.Millisecond,
	})
	h, err := o.Submit(context.Background(), Invocation{Kind: KindRemote})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	events := collect(t, h)
	last := events[len(events)-1]
	if last.Type != event.TypeError || last.ErrKind != fault.KindTimeout {
		t.Errorf("terminal = %+v, want timeout error", last)
	}

	// The slot must be free again once the stream has closed.
	if got := o.Stats().Active; got != 0 {
		t.Errorf("active after timeout = %d, want 0", got)
	}
	h2, err := o.Submit(context.Background(), Invocation{Kind: KindRemote})
	if err != nil {
		t.Fatalf("Submit after timeout could not acquire the slot: %v", err)
	}
	collect(t, h2)
}

func TestCancelAbortsInvocation(t *testing.T) {
	slow := &stubRunner{events: okEvents("x"), delay: time.Second}
	o := newTestOrchestrator(slow, nil)
	h, err := o.Submit(context.Background(), Invocation{Kind: KindRemote})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.Cancel()
	events := collect(t, h)
	if len(events) == 0 {
		t.Fatal("expected at least a terminal event")
	}
	if last := events[len(events)-1]; last.Type != event.TypeError {
		t.Errorf("terminal = %+v, want error", last)
	}
}

func TestEffectiveTimeoutClamping(t *testing.T) {
	o := New(Options{Pool: NewPool(1, 0), DefaultTimeout: 10 * time.Second, MaxTimeout: time.Minute})
	tests := []struct {
		requested, want time.Duration
	}{
		{0, 10 * time.Second},
		{30 * time.Second, 30 * time.Second},
		{10 * time.Minute, time.Minute},
	}
	for _, tt := range tests {
		if got := o.EffectiveTimeout(tt.requested); got != tt.want {
			t.Errorf("EffectiveTimeout(%v) = %v, want %v", tt.requested, got, tt.want)
		}
	}
}

// blockingRunner hands its context to the test and emits nothing until
// that context is cancelled.
type blockingRunner struct {
	ctxCh chan context.Context
}

func (r *blockingRunner) Run(ctx context.Context, _ Invocation, emit func(event.Event)) {
	r.ctxCh <- ctx
	<-ctx.Done()
	emit(event.Errorf(fault.KindTimeout, "cancelled"))
}

func TestClientDisconnectCancelsBackend(t *testing.T) {
	r := &blockingRunner{ctxCh: make(chan context.Context, 1)}
	o := newTestOrchestrator(r, nil)
	reqCtx, disconnect := context.WithCancel(context.Background())
	h, err := o.Submit(reqCtx, Invocation{Kind: KindRemote})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	runCtx := <-r.ctxCh

	disconnect()
	select {
	case <-runCtx.Done():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("backend did not observe the client disconnect")
	}
	events := collect(t, h)
	if last := events[len(events)-1]; last.Type != event.TypeError {
		t.Errorf("terminal = %+v, want error", last)
	}
	if got := o.Stats().Active; got != 0 {
		t.Errorf("active after disconnect = %d, want 0", got)
	}
}

func TestMalformedBlockFramingAborts(t *testing.T) {
	bad := &stubRunner{events: []event.Event{
		event.Role("assistant"),
		event.BlockStart(0),
		event.BlockStart(0),
		event.BlockStop(5),
		event.Completion("stop", event.Usage{}),
	}}
	o := newTestOrchestrator(bad, nil)
	h, err := o.Submit(context.Background(), Invocation{Kind: KindRemote})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	events := collect(t, h)
	if len(events) != 3 {
		t.Fatalf("got %d events, want role+block_start+error: %+v", len(events), events)
	}
	last := events[len(events)-1]
	if last.Type != event.TypeError || last.ErrKind != fault.KindProtocol {
		t.Errorf("terminal = %+v, want protocol error", last)
	}
	if bad.gotCtx.Err() == nil {
		t.Error("malformed stream did not cancel the invocation")
	}
}

func TestStalledConsumerAbortsInvocation(t *testing.T) {
	events := []event.Event{event.Role("assistant"), event.BlockStart(0)}
	for i := 0; i < 100; i++ {
		events = append(events, event.Delta(0, "x"))
	}
	events = append(events, event.BlockStop(0), event.Completion("stop", event.Usage{}))
	r := &stubRunner{events: events}
	o := New(Options{
		Pool:           NewPool(1, time.Second),
		Remote:         r,
		DefaultTimeout: time.Second,
		SendGrace:      20 * time.Millisecond,
	})
	h, err := o.Submit(context.Background(), Invocation{Kind: KindRemote})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// Do not read anything until the producer has overrun the channel
	// buffer and the send grace has lapsed.
	time.Sleep(300 * time.Millisecond)
	got := collect(t, h)
	for _, ev := range got {
		if ev.Type == event.TypeCompletion {
			t.Fatal("completion delivered after events were dropped mid-stream")
		}
	}
	if r.gotCtx.Err() == nil {
		t.Error("stalled consumer did not cancel the invocation")
	}
}
