package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Checkpointer, grounded on graph/store's
// SQLiteStore: a single-file database with WAL mode, suitable for local
// runs and single-process deployments that want durability across
// restarts without standing up a server.
type SQLiteStore[S any] struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLiteStore opens (and migrates, if needed) a SQLite checkpoint store.
// path may be a file path or ":memory:".
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			session_id TEXT NOT NULL,
			checkpoint_id INTEGER NOT NULL,
			parent_id INTEGER NOT NULL,
			node_name TEXT NOT NULL,
			progress REAL NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, checkpoint_id)
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON session_checkpoints(session_id, checkpoint_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create session_checkpoints: %w", err)
	}
	return nil
}

// Put implements Checkpointer.
func (s *SQLiteStore[S]) Put(ctx context.Context, sessionID, nodeName string, progress float64, state S) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxID, parentID sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT MAX(checkpoint_id) FROM session_checkpoints WHERE session_id = ?`, sessionID)
	if err := row.Scan(&maxID); err != nil {
		return 0, fmt.Errorf("query max checkpoint: %w", err)
	}
	parentID = maxID
	nextID := 1
	if maxID.Valid {
		nextID = int(maxID.Int64) + 1
	}
	var parent int64
	if parentID.Valid {
		parent = parentID.Int64
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_checkpoints (session_id, checkpoint_id, parent_id, node_name, progress, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, nextID, parent, nodeName, progress, string(payload), time.Now())
	if err != nil {
		return 0, fmt.Errorf("insert checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return nextID, nil
}

// Latest implements Checkpointer.
func (s *SQLiteStore[S]) Latest(ctx context.Context, sessionID string) (Checkpoint[S], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT checkpoint_id, parent_id, node_name, progress, state, created_at
		 FROM session_checkpoints WHERE session_id = ? ORDER BY checkpoint_id DESC LIMIT 1`,
		sessionID)
	return scanCheckpoint[S](row, sessionID)
}

// Chain implements Checkpointer.
func (s *SQLiteStore[S]) Chain(ctx context.Context, sessionID string) ([]Checkpoint[S], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT checkpoint_id, parent_id, node_name, progress, state, created_at
		 FROM session_checkpoints WHERE session_id = ? ORDER BY checkpoint_id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query chain: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint[S]
	for rows.Next() {
		cp, err := scanCheckpointRow[S](rows, sessionID)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Compact implements Checkpointer: deletes all but the first checkpoint and
// the most recent keep checkpoints.
func (s *SQLiteStore[S]) Compact(ctx context.Context, sessionID string, keep int) error {
	if keep <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM session_checkpoints
		WHERE session_id = ? AND checkpoint_id != (
			SELECT MIN(checkpoint_id) FROM session_checkpoints WHERE session_id = ?
		) AND checkpoint_id NOT IN (
			SELECT checkpoint_id FROM session_checkpoints WHERE session_id = ?
			ORDER BY checkpoint_id DESC LIMIT ?
		)`, sessionID, sessionID, sessionID, keep)
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}

// Close implements Checkpointer.
func (s *SQLiteStore[S]) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckpoint[S any](row *sql.Row, sessionID string) (Checkpoint[S], error) {
	cp, err := scanInto[S](row, sessionID)
	if err == sql.ErrNoRows {
		return Checkpoint[S]{}, ErrNotFound
	}
	return cp, err
}

func scanCheckpointRow[S any](rows *sql.Rows, sessionID string) (Checkpoint[S], error) {
	return scanInto[S](rows, sessionID)
}

func scanInto[S any](s rowScanner, sessionID string) (Checkpoint[S], error) {
	var cp Checkpoint[S]
	var payload string
	if err := s.Scan(&cp.CheckpointID, &cp.ParentID, &cp.NodeName, &cp.Progress, &payload, &cp.CreatedAt); err != nil {
		return cp, err
	}
	cp.SessionID = sessionID
	if err := json.Unmarshal([]byte(payload), &cp.State); err != nil {
		return cp, fmt.Errorf("unmarshal state: %w", err)
	}
	return cp, nil
}
