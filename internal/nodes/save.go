package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// Save persists the session's generated artifact record (progress target
// 98%). All seven documents are written through the same ArtifactStore
// before current_stage flips to completed, so a failure partway through
// leaves the session resumable rather than reporting a half-written
// artifact as done.
type Save struct {
	Store collab.ArtifactStore
}

// NewSave constructs a Save node.
func NewSave(store collab.ArtifactStore) *Save {
	return &Save{Store: store}
}

// Run implements sgraph.Node[state.Session].
func (n *Save) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	docs := map[string]string{
		"trd.md":                s.FinalTRD,
		"api_specification.json": marshalOrEmpty(s.APISpecification),
		"db_schema.sql":          s.DBSchema.DDL,
		"db_erd.mmd":             s.DBERD,
		"architecture.mmd":       s.ArchitectureDiagram,
		"tech_stack.json":        marshalOrEmpty(s.TechStackDocument),
		"validation_report.json": marshalOrEmpty(s.ValidationReport),
	}

	for name, content := range docs {
		if _, err := n.Store.Put(ctx, s.SessionID, name, content); err != nil {
			return sgraph.Failed[state.Session](fmt.Errorf("%s: save artifact %s: %w", ErrStorageUnavailable, name, err))
		}
	}

	version := s.ArtifactVersion + 1
	now := timeNow()
	return cont(state.Session{
		ArtifactID:         s.SessionID,
		ArtifactVersion:    version,
		CurrentStage:       state.StageSave,
		ProgressPercentage: 98,
		CompletedAt:        &now,
	})
}

func marshalOrEmpty(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
