package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// GenerateDBERD renders the generated schema's tables as a Mermaid
// erDiagram (progress target 87%). This is a mechanical transform of
// already-generated structured data, not an LLM call: the table shapes are
// already decided by generate_db_schema, so there is nothing left to infer.
type GenerateDBERD struct{}

// NewGenerateDBERD constructs a GenerateDBERD node.
func NewGenerateDBERD() *GenerateDBERD { return &GenerateDBERD{} }

// Run implements sgraph.Node[state.Session].
func (n *GenerateDBERD) Run(_ context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	var b strings.Builder
	b.WriteString("erDiagram\n")
	for _, raw := range s.DBSchema.Tables {
		table, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := table["name"].(string)
		if name == "" {
			continue
		}
		fmt.Fprintf(&b, "    %s {\n", sanitizeIdent(name))
		cols, _ := table["columns"].([]interface{})
		for _, rawCol := range cols {
			col, ok := rawCol.(map[string]interface{})
			if !ok {
				continue
			}
			colName, _ := col["name"].(string)
			colType, _ := col["type"].(string)
			if colName == "" {
				continue
			}
			fmt.Fprintf(&b, "        %s %s\n", firstNonEmpty(colType, "text"), sanitizeIdent(colName))
		}
		b.WriteString("    }\n")
	}

	return cont(state.Session{
		DBERD:              b.String(),
		CurrentStage:       state.StageGenerateDBERD,
		ProgressPercentage: 87,
	})
}

// sanitizeIdent strips whitespace so a table/column name is safe to use as
// a Mermaid identifier.
func sanitizeIdent(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}
