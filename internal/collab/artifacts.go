package collab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactStore persists a session's final generated documents (TRD,
// OpenAPI spec, DDL, ER diagram, architecture diagram, tech-stack doc)
// somewhere durable and addressable outside the checkpoint chain, so a
// downstream system can fetch just the finished document instead of
// replaying the whole session.
type ArtifactStore interface {
	Put(ctx context.Context, sessionID, name, content string) (ref string, err error)
}

// LocalArtifactStore writes artifacts under a root directory, one
// subdirectory per session. Suitable for local runs and single-node
// deployments; production deployments should swap in an object-storage
// backed implementation behind the same interface.
type LocalArtifactStore struct {
	Root string
}

// NewLocalArtifactStore constructs a LocalArtifactStore rooted at root.
func NewLocalArtifactStore(root string) *LocalArtifactStore {
	return &LocalArtifactStore{Root: root}
}

// Put implements ArtifactStore.
func (s *LocalArtifactStore) Put(_ context.Context, sessionID, name, content string) (string, error) {
	dir := filepath.Join(s.Root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	return path, nil
}
