package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/promptgate/gateway/internal/fault"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2, time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Acquire(ctx); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			p.Release()
		}()
	}
	wg.Wait()
	if maxActive > 2 {
		t.Errorf("max concurrent = %d, want <= 2", maxActive)
	}
	s := p.Stats()
	if s.Active != 0 || s.Total != 10 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPoolQueueWaitExceeded(t *testing.T) {
	p := NewPool(1, 20*time.Millisecond)
	ctx := context.Background()
	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	err := p.Acquire(ctx)
	if err == nil {
		p.Release()
		t.Fatal("second Acquire should fail while slot is held")
	}
	if fault.KindOf(err) != fault.KindCapacity {
		t.Errorf("kind = %v, want capacity", fault.KindOf(err))
	}
	p.Release()
}

func TestPoolCallerCancellation(t *testing.T) {
	p := NewPool(1, time.Minute)
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Acquire(ctx)
	if fault.KindOf(err) != fault.KindTimeout {
		t.Errorf("kind = %v, want timeout", fault.KindOf(err))
	}
	p.Release()
}

func TestPoolUnbounded(t *testing.T) {
	p := NewPool(0, 0)
	for i := 0; i < 100; i++ {
		if err := p.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if got := p.Stats().Active; got != 100 {
		t.Errorf("active = %d, want 100", got)
	}
}
