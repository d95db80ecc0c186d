package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/promptgate/gateway/internal/fault"
)

// Manager wraps a Store with per-session serialization, the turn-history
// cap, and the idle sweep. Concurrent invocations naming the same session
// queue behind each other rather than interleaving their history writes.
type Manager struct {
	store    Store
	maxTurns int
	idleTTL  time.Duration

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager builds a manager over store. maxTurns bounds per-session
// history (oldest turns are evicted first); idleTTL governs the sweep.
func NewManager(store Store, maxTurns int, idleTTL time.Duration) *Manager {
	return &Manager{
		store:    store,
		maxTurns: maxTurns,
		idleTTL:  idleTTL,
		locks:    make(map[string]*sessionLock),
	}
}

// Lock serializes access to one session id. The returned function releases
// the hold; waiters proceed in acquisition order.
func (m *Manager) Lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Get returns the session or a not-found fault.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "load session")
	}
	if sess == nil {
		return nil, fault.New(fault.KindNotFound, "session %s not found", id)
	}
	return sess, nil
}

// GetOrCreate loads the session, creating it when absent. An empty id asks
// for a brand-new session.
func (m *Manager) GetOrCreate(ctx context.Context, id, model, workingDir string) (*Session, error) {
	if id != "" {
		sess, err := m.store.Get(ctx, id)
		if err != nil {
			return nil, fault.Wrap(fault.KindBackend, err, "load session")
		}
		if sess != nil {
			return sess, nil
		}
	} else {
		id = NewID()
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:         id,
		Model:      model,
		WorkingDir: workingDir,
		CreatedAt:  now,
		LastActive: now,
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "create session")
	}
	return sess, nil
}

// Create makes a fresh session with a generated id.
func (m *Manager) Create(ctx context.Context, model, workingDir string) (*Session, error) {
	return m.GetOrCreate(ctx, "", model, workingDir)
}

// Append records turns against the session and enforces the history cap.
func (m *Manager) Append(ctx context.Context, id string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range turns {
		if turns[i].CreatedAt.IsZero() {
			turns[i].CreatedAt = now
		}
	}
	if err := m.store.AppendTurns(ctx, id, turns, m.maxTurns); err != nil {
		return fault.Wrap(fault.KindBackend, err, "append session turns")
	}
	return nil
}

// Delete removes the session; unknown ids yield a not-found fault.
func (m *Manager) Delete(ctx context.Context, id string) error {
	ok, err := m.store.Delete(ctx, id)
	if err != nil {
		return fault.Wrap(fault.KindBackend, err, "delete session")
	}
	if !ok {
		return fault.New(fault.KindNotFound, "session %s not found", id)
	}
	return nil
}

// List returns summaries for every live session.
func (m *Manager) List(ctx context.Context) ([]Summary, error) {
	out, err := m.store.List(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "list sessions")
	}
	return out, nil
}

// Sweep deletes sessions idle past the TTL and returns the count removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	if m.idleTTL <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-m.idleTTL)
	n, err := m.store.DeleteIdle(ctx, cutoff)
	if err != nil {
		return 0, fault.Wrap(fault.KindBackend, err, "sweep idle sessions")
	}
	return n, nil
}

// RunSweeper sweeps on the interval until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				log.Printf("session.RunSweeper: sweep failed err=%v", err)
				continue
			}
			if n > 0 {
				log.Printf("session.RunSweeper: removed idle sessions count=%d", n)
			}
		}
	}
}
