// Package session tracks multi-turn conversations across invocations.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Turn is one recorded exchange entry inside a session.
type Turn struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Incomplete bool      `json:"incomplete,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is a persisted conversation. Turns are ordered oldest first.
type Session struct {
	ID         string    `json:"id"`
	Model      string    `json:"model,omitempty"`
	WorkingDir string    `json:"working_dir,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Turns      []Turn    `json:"turns"`
}

// Summary is the listing view of a session, without turn bodies.
type Summary struct {
	ID         string    `json:"id"`
	Model      string    `json:"model,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	TurnCount  int       `json:"turn_count"`
}

// NewID returns a fresh session identifier.
func NewID() string { return uuid.NewString() }

// Store is the persistence contract shared by the SQLite and Postgres
// backends. Get returns (nil, nil) when the id is unknown; Delete of an
// unknown id is not an error and reports false.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	AppendTurns(ctx context.Context, id string, turns []Turn, maxTurns int) error
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]Summary, error)
	DeleteIdle(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}
