// Package orchestrator admits invocations through a bounded slot pool and
// runs them on the configured backend, normalizing output into the shared
// event stream.
package orchestrator

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptgate/gateway/internal/anthropic"
	"github.com/promptgate/gateway/internal/event"
	"github.com/promptgate/gateway/internal/fault"
	"github.com/promptgate/gateway/internal/translate"
)

// Kind selects the transport an invocation runs on.
type Kind string

const (
	// KindRemote sends the invocation to the hosted API.
	KindRemote Kind = "remote"
	// KindSubprocess runs the invocation through the local CLI binary.
	KindSubprocess Kind = "subprocess"
)

// Invocation is one unit of admitted work. Subprocess invocations carry a
// flattened Prompt; remote ones carry the structured Native payload.
type Invocation struct {
	ID         string
	Kind       Kind
	Command    string
	Args       []string
	Prompt     string
	Native     *anthropic.NativeRequest
	Model      string
	SessionID  string
	WorkingDir string
	Stream     bool
	Timeout    time.Duration
}

// Runner executes one invocation, emitting normalized events. Run returns
// only after the terminal event has been emitted.
type Runner interface {
	Run(ctx context.Context, inv Invocation, emit func(event.Event))
}

// AllowList is the normalized set of CLI commands the gateway will run.
type AllowList map[string]struct{}

// NewAllowList builds an allow-list from command names, trimming and
// lowercasing each entry.
func NewAllowList(commands []string) AllowList {
	al := make(AllowList, len(commands))
	for _, c := range commands {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			al[c] = struct{}{}
		}
	}
	return al
}

// Check rejects commands outside the list with a policy fault.
func (al AllowList) Check(command string) error {
	if _, ok := al[strings.ToLower(strings.TrimSpace(command))]; !ok {
		return fault.New(fault.KindPolicy, "command %q is not allowed (allowed: %s)", command, al.String())
	}
	return nil
}

func (al AllowList) String() string {
	names := make([]string, 0, len(al))
	for c := range al {
		names = append(names, c)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Orchestrator glues admission control to the backend runners.
type Orchestrator struct {
	pool           *Pool
	allow          AllowList
	remote         Runner
	subprocess     Runner
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	sendGrace      time.Duration
}

// Options configures a new Orchestrator.
type Options struct {
	Pool           *Pool
	Allow          AllowList
	Remote         Runner
	Subprocess     Runner
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	// SendGrace bounds how long one event delivery may block on a
	// stalled consumer before the invocation is aborted.
	SendGrace time.Duration
}

func New(opts Options) *Orchestrator {
	grace := opts.SendGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Orchestrator{
		pool:           opts.Pool,
		allow:          opts.Allow,
		remote:         opts.Remote,
		subprocess:     opts.Subprocess,
		defaultTimeout: opts.DefaultTimeout,
		maxTimeout:     opts.MaxTimeout,
		sendGrace:      grace,
	}
}

// Handle tracks one running invocation.
type Handle struct {
	ID     string
	events chan event.Event
	cancel context.CancelFunc
}

// Events yields the invocation's stream. The channel closes after the
// terminal event.
func (h *Handle) Events() <-chan event.Event { return h.events }

// Cancel aborts the invocation; the stream still terminates with an error
// event before closing.
func (h *Handle) Cancel() { h.cancel() }

// Stats exposes pool occupancy for health reporting.
func (o *Orchestrator) Stats() Stats { return o.pool.Stats() }

// EffectiveTimeout clamps a client-requested timeout against the
// configured default and ceiling.
func (o *Orchestrator) EffectiveTimeout(requested time.Duration) time.Duration {
	t := requested
	if t <= 0 {
		t = o.defaultTimeout
	}
	if o.maxTimeout > 0 && t > o.maxTimeout {
		t = o.maxTimeout
	}
	return t
}

// Submit validates the invocation, waits for a slot, and starts the
// backend. Policy checks run before any slot is consumed, so disallowed
// commands never occupy capacity.
func (o *Orchestrator) Submit(ctx context.Context, inv Invocation) (*Handle, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	runner, err := o.runnerFor(inv)
	if err != nil {
		return nil, err
	}
	if inv.Kind == KindSubprocess {
		if err := o.allow.Check(inv.Command); err != nil {
			return nil, err
		}
	}
	inv.Timeout = o.EffectiveTimeout(inv.Timeout)

	if err := o.pool.Acquire(ctx); err != nil {
		log.Printf("orchestrator.Submit: admission failed id=%s kind=%s err=%v", inv.ID, inv.Kind, err)
		return nil, err
	}

	// Derived from the request context so a client disconnect cancels
	// the backend immediately, not just at the deadline.
	runCtx, cancel := context.WithTimeout(ctx, inv.Timeout)
	h := &Handle{
		ID:     inv.ID,
		events: make(chan event.Event, 64),
		cancel: cancel,
	}
	go func() {
		defer close(h.events)
		defer cancel()
		defer o.pool.Release()
		start := time.Now()
		runner.Run(runCtx, inv, o.emitter(h, cancel))
		log.Printf("orchestrator.Submit: invocation done id=%s kind=%s elapsed=%s", inv.ID, inv.Kind, time.Since(start).Round(time.Millisecond))
	}()
	return h, nil
}

// emitter wraps delivery to the handle channel with the block-framing
// check and back-pressure handling. A framing violation or a consumer
// stalled past the send grace aborts the invocation; events are never
// silently dropped mid-stream.
func (o *Orchestrator) emitter(h *Handle, cancel context.CancelFunc) func(event.Event) {
	tracker := translate.NewBlockTracker()
	var stopped, terminalSent bool
	send := func(ev event.Event) bool {
		select {
		case h.events <- ev:
			return true
		default:
		}
		select {
		case h.events <- ev:
			return true
		case <-time.After(o.sendGrace):
			return false
		}
	}
	return func(ev event.Event) {
		if stopped {
			return
		}
		if err := tracker.Observe(ev); err != nil {
			stopped = true
			cancel()
			log.Printf("orchestrator.emitter: malformed stream aborted id=%s err=%v", h.ID, err)
			if !terminalSent {
				send(event.FromError(err))
			}
			return
		}
		if !send(ev) {
			stopped = true
			cancel()
			log.Printf("orchestrator.emitter: consumer stalled id=%s", h.ID)
			if !terminalSent && !ev.Terminal() {
				send(event.Errorf(fault.KindBackend, "client stopped consuming the response stream"))
			}
			return
		}
		if ev.Terminal() {
			terminalSent = true
		}
	}
}

func (o *Orchestrator) runnerFor(inv Invocation) (Runner, error) {
	switch inv.Kind {
	case KindRemote:
		if o.remote == nil {
			return nil, fault.New(fault.KindBackend, "no hosted API backend configured")
		}
		return o.remote, nil
	case KindSubprocess:
		if o.subprocess == nil {
			return nil, fault.New(fault.KindBackend, "no CLI backend configured")
		}
		return o.subprocess, nil
	default:
		return nil, fault.New(fault.KindValidation, "unknown invocation kind %q", inv.Kind)
	}
}
