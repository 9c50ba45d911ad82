package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const generateDBSchemaPrompt = `Design a relational database schema for this project from its TRD and
API surface. Respond with JSON only: {"ddl":"<CREATE TABLE statements as SQL text>","tables":
[{"name":"...","columns":[{"name":"...","type":"...","constraints":"..."}]}]}`

// GenerateDBSchema produces DDL and a structured table list from the final
// TRD and API surface (progress target 85%).
type GenerateDBSchema struct {
	Completer collab.Completer
}

// NewGenerateDBSchema constructs a GenerateDBSchema node.
func NewGenerateDBSchema(completer collab.Completer) *GenerateDBSchema {
	return &GenerateDBSchema{Completer: completer}
}

type dbSchemaResponse struct {
	DDL    string        `json:"ddl"`
	Tables []interface{} `json:"tables"`
}

// Run implements sgraph.Node[state.Session].
func (n *GenerateDBSchema) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	prompt := fmt.Sprintf("TRD:\n%s\n\nAPI endpoints: %+v", s.FinalTRD, s.InferredAPISpec)
	out, err := n.Completer.Complete(ctx, generateDBSchemaPrompt, prompt)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: generate_db_schema completion: %w", ErrExternalServiceError, err))
	}

	var resp dbSchemaResponse
	if err := decodeJSON(out, &resp); err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: generate_db_schema: %w", ErrExternalServiceError, err))
	}

	return cont(state.Session{
		DBSchema:           state.DBSchema{DDL: resp.DDL, Tables: resp.Tables},
		CurrentStage:       state.StageGenerateDBSchema,
		ProgressPercentage: 85,
	})
}
