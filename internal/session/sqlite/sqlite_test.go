package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/promptgate/gateway/internal/session"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sess := &session.Session{ID: "s1", Model: "claude-sonnet-4", WorkingDir: "/w", CreatedAt: now, LastActive: now}
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ID != "s1" || got.Model != "claude-sonnet-4" || got.WorkingDir != "/w" {
		t.Errorf("got %+v", got)
	}

	missing, err := s.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("unknown id: got %+v, %v; want nil, nil", missing, err)
	}
}

func TestAppendTurnsOrderAndCap(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := s.Put(ctx, &session.Session{ID: "s1", CreatedAt: now, LastActive: now}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	for _, content := range []string{"a", "b", "c", "d", "e"} {
		err := s.AppendTurns(ctx, "s1", []session.Turn{{Role: "user", Content: content, CreatedAt: now}}, 3)
		if err != nil {
			t.Fatalf("AppendTurns(%q): %v", content, err)
		}
	}
	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(got.Turns))
	}
	for i, want := range []string{"c", "d", "e"} {
		if got.Turns[i].Content != want {
			t.Errorf("turn %d = %q, want %q", i, got.Turns[i].Content, want)
		}
	}

	if err := s.AppendTurns(ctx, "ghost", []session.Turn{{Role: "user", Content: "x", CreatedAt: now}}, 0); err == nil {
		t.Error("appending to unknown session should fail")
	}
}

func TestDeleteAndList(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for _, id := range []string{"s1", "s2"} {
		if err := s.Put(ctx, &session.Session{ID: id, CreatedAt: now, LastActive: now}); err != nil {
			t.Fatalf("Put(%s): %v", id, err)
		}
	}
	if err := s.AppendTurns(ctx, "s1", []session.Turn{{Role: "user", Content: "hi", CreatedAt: now}}, 0); err != nil {
		t.Fatalf("AppendTurns: %v", err)
	}

	sums, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d summaries, want 2", len(sums))
	}
	counts := map[string]int{}
	for _, sum := range sums {
		counts[sum.ID] = sum.TurnCount
	}
	if counts["s1"] != 1 || counts["s2"] != 0 {
		t.Errorf("turn counts = %v", counts)
	}

	ok, err := s.Delete(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	ok, err = s.Delete(ctx, "s1")
	if err != nil || ok {
		t.Errorf("second delete: ok=%v err=%v, want false nil", ok, err)
	}
}

func TestDeleteIdle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	stale := now.Add(-2 * time.Hour)

	if err := s.Put(ctx, &session.Session{ID: "old", CreatedAt: stale, LastActive: stale}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, &session.Session{ID: "new", CreatedAt: now, LastActive: now}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	n, err := s.DeleteIdle(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteIdle: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	got, err := s.Get(ctx, "new")
	if err != nil || got == nil {
		t.Errorf("recent session missing after sweep: %+v, %v", got, err)
	}
}
