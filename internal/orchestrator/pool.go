package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/promptgate/gateway/internal/fault"
)

// Pool bounds concurrent invocations with a buffered-channel semaphore.
// Blocked acquirers wait in the runtime's send queue, so slots hand off in
// arrival order. A non-positive size means unbounded.
type Pool struct {
	slots    chan struct{}
	maxWait  time.Duration
	active   atomic.Int64
	queued   atomic.Int64
	total    atomic.Uint64
	timedOut atomic.Uint64
}

// NewPool creates a pool of size slots. maxWait caps how long Acquire may
// queue before giving up with a capacity fault; zero waits as long as the
// caller's context allows.
func NewPool(size int, maxWait time.Duration) *Pool {
	p := &Pool{maxWait: maxWait}
	if size > 0 {
		p.slots = make(chan struct{}, size)
	}
	return p
}

// Acquire claims a slot, queuing until one frees. It fails with a capacity
// fault when the queue wait exceeds the pool bound, and with the context's
// classification when the caller gives up first.
func (p *Pool) Acquire(ctx context.Context) error {
	if p.slots == nil {
		p.active.Add(1)
		p.total.Add(1)
		return nil
	}
	select {
	case p.slots <- struct{}{}:
		p.active.Add(1)
		p.total.Add(1)
		return nil
	default:
	}

	p.queued.Add(1)
	defer p.queued.Add(-1)

	var timeout <-chan time.Time
	if p.maxWait > 0 {
		timer := time.NewTimer(p.maxWait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case p.slots <- struct{}{}:
		p.active.Add(1)
		p.total.Add(1)
		return nil
	case <-timeout:
		p.timedOut.Add(1)
		return fault.New(fault.KindCapacity, "all execution slots busy, queue wait exceeded %s", p.maxWait)
	case <-ctx.Done():
		return fault.Wrap(fault.KindTimeout, ctx.Err(), "request cancelled while queued for a slot")
	}
}

// Release returns a slot to the pool.
func (p *Pool) Release() {
	p.active.Add(-1)
	if p.slots != nil {
		<-p.slots
	}
}

// Stats is a point-in-time view of pool occupancy.
type Stats struct {
	Active   int64  `json:"active"`
	Queued   int64  `json:"queued"`
	Capacity int    `json:"capacity"`
	Total    uint64 `json:"total"`
	TimedOut uint64 `json:"timed_out"`
}

// Stats reads the counters without locking.
func (p *Pool) Stats() Stats {
	return Stats{
		Active:   p.active.Load(),
		Queued:   p.queued.Load(),
		Capacity: cap(p.slots),
		Total:    p.total.Load(),
		TimedOut: p.timedOut.Load(),
	}
}
