// Package sqlite persists sessions in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/promptgate/gateway/internal/session"
)

// Store implements session.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the session database at the supplied path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	model TEXT NOT NULL DEFAULT '',
	working_dir TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	last_active TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	incomplete INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get loads one session with its turns, oldest first. Unknown ids return
// (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, model, working_dir, created_at, last_active FROM sessions WHERE id = ?`, id)
	var sess session.Session
	if err := row.Scan(&sess.ID, &sess.Model, &sess.WorkingDir, &sess.CreatedAt, &sess.LastActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT role, content, incomplete, created_at FROM turns WHERE session_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t session.Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.Incomplete, &t.CreatedAt); err != nil {
			return nil, err
		}
		sess.Turns = append(sess.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Put inserts or refreshes the session header row.
func (s *Store) Put(ctx context.Context, sess *session.Session) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(id, model, working_dir, created_at, last_active)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET model = excluded.model, working_dir = excluded.working_dir, last_active = excluded.last_active`,
		sess.ID, sess.Model, sess.WorkingDir, sess.CreatedAt.UTC(), sess.LastActive.UTC())
	return err
}

// AppendTurns records turns, refreshes last_active, and evicts the oldest
// rows beyond maxTurns.
func (s *Store) AppendTurns(ctx context.Context, id string, turns []session.Turn, maxTurns int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		err = fmt.Errorf("session %s not found", id)
		return err
	}

	for _, t := range turns {
		if _, err = tx.ExecContext(ctx, `INSERT INTO turns(session_id, role, content, incomplete, created_at) VALUES(?, ?, ?, ?, ?)`,
			id, t.Role, t.Content, t.Incomplete, t.CreatedAt.UTC()); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE sessions SET last_active = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return err
	}
	if maxTurns > 0 {
		if _, err = tx.ExecContext(ctx, `
DELETE FROM turns WHERE session_id = ? AND id NOT IN (
	SELECT id FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT ?
)`, id, id, maxTurns); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the session and its turns.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns summaries ordered by recency.
func (s *Store) List(ctx context.Context) ([]session.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.model, s.created_at, s.last_active, COUNT(t.id)
FROM sessions s LEFT JOIN turns t ON t.session_id = s.id
GROUP BY s.id ORDER BY s.last_active DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []session.Summary
	for rows.Next() {
		var sum session.Summary
		if err := rows.Scan(&sum.ID, &sum.Model, &sum.CreatedAt, &sum.LastActive, &sum.TurnCount); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteIdle removes sessions whose last activity predates cutoff.
func (s *Store) DeleteIdle(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_active < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
