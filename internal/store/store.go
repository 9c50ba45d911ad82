// Package store persists session state as an append-only checkpoint chain,
// one record per completed node, so a session can always be resumed from
// its most recent durable point. Adapted from graph/store's Store[S],
// trimmed of the frontier/RNG replay fields an only-sequential engine
// never needs, and extended with explicit parent pointers so the full
// history of a session is walkable.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested session or checkpoint does not exist.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is one durable record in a session's history.
type Checkpoint[S any] struct {
	SessionID    string
	CheckpointID int
	ParentID     int // 0 for the first checkpoint of a session
	NodeName     string
	Progress     float64
	State        S
	CreatedAt    time.Time
}

// Checkpointer persists and retrieves a session's checkpoint chain.
//
// Type parameter S is the session state type (must be JSON-serializable).
type Checkpointer[S any] interface {
	// Put appends a new checkpoint after nodeName completes, chained off
	// whatever the session's current latest checkpoint is (0 if none).
	// Returns the new checkpoint's ID.
	Put(ctx context.Context, sessionID, nodeName string, progress float64, state S) (checkpointID int, err error)

	// Latest returns the most recent checkpoint for a session.
	// Returns ErrNotFound if the session has no checkpoints.
	Latest(ctx context.Context, sessionID string) (Checkpoint[S], error)

	// Chain returns every checkpoint for a session, oldest first.
	Chain(ctx context.Context, sessionID string) ([]Checkpoint[S], error)

	// Compact drops all but the most recent keep checkpoints for a session,
	// preserving the first checkpoint (load_inputs) so provenance survives.
	Compact(ctx context.Context, sessionID string, keep int) error

	// Close releases underlying resources (connections, file handles).
	Close() error
}
