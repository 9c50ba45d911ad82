package store

import (
	"context"
	"errors"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore[testState] {
	t.Helper()
	s, err := NewSQLiteStore[testState](":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_PutAndLatest(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "sess-1", "load_inputs", 5, testState{Value: "a"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	id2, err := s.Put(ctx, "sess-1", "analyze_completeness", 15, testState{Value: "b"})
	if err != nil {
		t.Fatalf("put 2: %v", err)
	}

	latest, err := s.Latest(ctx, "sess-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.CheckpointID != id2 || latest.State.Value != "b" {
		t.Fatalf("unexpected latest: %+v", latest)
	}
}

func TestSQLiteStore_LatestNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.Latest(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_ChainPreservesOrder(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	nodes := []string{"load_inputs", "analyze_completeness", "identify_tech_gaps"}
	for i, node := range nodes {
		if _, err := s.Put(ctx, "sess-1", node, float64(i*10), testState{Value: node}); err != nil {
			t.Fatalf("put %s: %v", node, err)
		}
	}

	chain, err := s.Chain(ctx, "sess-1")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != len(nodes) {
		t.Fatalf("expected %d checkpoints, got %d", len(nodes), len(chain))
	}
	for i, node := range nodes {
		if chain[i].NodeName != node {
			t.Fatalf("chain[%d] = %q, want %q", i, chain[i].NodeName, node)
		}
	}
}

func TestSQLiteStore_CompactKeepsFirstCheckpoint(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Put(ctx, "sess-1", "node", float64(i), testState{}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if err := s.Compact(ctx, "sess-1", 2); err != nil {
		t.Fatalf("compact: %v", err)
	}
	chain, err := s.Chain(ctx, "sess-1")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 checkpoints after compact, got %d", len(chain))
	}
	if chain[0].CheckpointID != 1 {
		t.Fatalf("expected first checkpoint preserved, got %+v", chain[0])
	}
}
