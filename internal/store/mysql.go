package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Checkpointer, grounded on
// graph/store's MySQLStore: connection-pooled, transactional, intended for
// deployments that already run MySQL for everything else and would rather
// not add a second database engine.
type MySQLStore[S any] struct {
	db *sql.DB
	mu sync.Mutex
}

// NewMySQLStore opens a connection pool against dsn and ensures the
// checkpoint table exists. dsn follows go-sql-driver/mysql's DSN format,
// e.g. "user:pass@tcp(localhost:3306)/trdgraph?parseTime=true".
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore[S]{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore[S]) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			session_id VARCHAR(64) NOT NULL,
			checkpoint_id INT NOT NULL,
			parent_id INT NOT NULL,
			node_name VARCHAR(128) NOT NULL,
			progress DOUBLE NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, checkpoint_id)
		) ENGINE=InnoDB
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create session_checkpoints: %w", err)
	}
	return nil
}

// Put implements Checkpointer.
func (s *MySQLStore[S]) Put(ctx context.Context, sessionID, nodeName string, progress float64, state S) (int, error) {
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

	var maxID sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT MAX(checkpoint_id) FROM session_checkpoints WHERE session_id = ?`, sessionID)
	if err := row.Scan(&maxID); err != nil {
		return 0, fmt.Errorf("query max checkpoint: %w", err)
	}
	nextID := 1
	var parent int64
	if maxID.Valid {
		parent = maxID.Int64
		nextID = int(maxID.Int64) + 1
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_checkpoints (session_id, checkpoint_id, parent_id, node_name, progress, state)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, nextID, parent, nodeName, progress, string(payload))
	if err != nil {
		return 0, fmt.Errorf("insert checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return nextID, nil
}

// Latest implements Checkpointer.
func (s *MySQLStore[S]) Latest(ctx context.Context, sessionID string) (Checkpoint[S], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT checkpoint_id, parent_id, node_name, progress, state, created_at
		 FROM session_checkpoints WHERE session_id = ? ORDER BY checkpoint_id DESC LIMIT 1`,
		sessionID)
	return scanCheckpoint[S](row, sessionID)
}

// Chain implements Checkpointer.
func (s *MySQLStore[S]) Chain(ctx context.Context, sessionID string) ([]Checkpoint[S], error) {
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

// Compact implements Checkpointer.
func (s *MySQLStore[S]) Compact(ctx context.Context, sessionID string, keep int) error {
	if keep <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE sc FROM session_checkpoints sc
		JOIN (
			SELECT checkpoint_id FROM session_checkpoints
			WHERE session_id = ?
			ORDER BY checkpoint_id DESC LIMIT 18446744073709551615 OFFSET ?
		) keep_boundary ON sc.checkpoint_id <= keep_boundary.checkpoint_id
		WHERE sc.session_id = ? AND sc.checkpoint_id != (
			SELECT MIN(checkpoint_id) FROM session_checkpoints WHERE session_id = ?
		)`, sessionID, keep, sessionID, sessionID)
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}

// Close implements Checkpointer.
func (s *MySQLStore[S]) Close() error {
	return s.db.Close()
}
