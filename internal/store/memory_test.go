package store

import (
	"context"
	"errors"
	"testing"
)

type testState struct {
	Value string
}

func TestMemoryStore_EmptyLookup(t *testing.T) {
	s := NewMemoryStore[testState]()
	var _ Checkpointer[testState] = s

	ctx := context.Background()
	_, err := s.Latest(ctx, "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_PutChainsOffLatest(t *testing.T) {
	s := NewMemoryStore[testState]()
	ctx := context.Background()

	id1, err := s.Put(ctx, "sess-1", "load_inputs", 5, testState{Value: "a"})
	if err != nil {
		t.Fatalf("put 1: %v", err)
	}
	id2, err := s.Put(ctx, "sess-1", "analyze_completeness", 15, testState{Value: "b"})
	if err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if id2 != id1+1 {
		t.Fatalf("expected sequential IDs, got %d then %d", id1, id2)
	}

	latest, err := s.Latest(ctx, "sess-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.CheckpointID != id2 || latest.ParentID != id1 || latest.State.Value != "b" {
		t.Fatalf("unexpected latest checkpoint: %+v", latest)
	}
}

func TestMemoryStore_ChainReturnsFullHistory(t *testing.T) {
	s := NewMemoryStore[testState]()
	ctx := context.Background()

	for i, node := range []string{"load_inputs", "analyze_completeness", "identify_tech_gaps"} {
		if _, err := s.Put(ctx, "sess-1", node, float64(i*10), testState{Value: node}); err != nil {
			t.Fatalf("put %s: %v", node, err)
		}
	}

	chain, err := s.Chain(ctx, "sess-1")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(chain))
	}
	if chain[0].NodeName != "load_inputs" || chain[2].NodeName != "identify_tech_gaps" {
		t.Fatalf("chain out of order: %+v", chain)
	}
}

func TestMemoryStore_CompactKeepsFirstAndTail(t *testing.T) {
	s := NewMemoryStore[testState]()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := s.Put(ctx, "sess-1", "node", float64(i), testState{}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if err := s.Compact(ctx, "sess-1", 2); err != nil {
		t.Fatalf("compact: %v", err)
	}
	chain, err := s.Chain(ctx, "sess-1")
	if err != nil {
		t.Fatalf("chain after compact: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected first checkpoint + 2 kept, got %d: %+v", len(chain), chain)
	}
	if chain[0].CheckpointID != 1 {
		t.Fatalf("expected first checkpoint preserved, got %+v", chain[0])
	}
}

func TestMemoryStore_SessionsAreIndependent(t *testing.T) {
	s := NewMemoryStore[testState]()
	ctx := context.Background()

	if _, err := s.Put(ctx, "sess-1", "node", 0, testState{Value: "one"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err := s.Latest(ctx, "sess-2")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected sess-2 to be empty, got %v", err)
	}
}
