package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const generateArchitecturePrompt = `Design a system architecture for this project from its TRD, API
surface, and database schema. Respond with a node-link diagram in Mermaid flowchart syntax
(` + "`flowchart TD`" + `) describing services, data stores, and external integrations and how they
connect. Respond with the diagram text only, no surrounding prose.`

// GenerateArchitecture produces a node-link architecture diagram
// (progress target 90%).
type GenerateArchitecture struct {
	Completer collab.Completer
}

// NewGenerateArchitecture constructs a GenerateArchitecture node.
func NewGenerateArchitecture(completer collab.Completer) *GenerateArchitecture {
	return &GenerateArchitecture{Completer: completer}
}

// Run implements sgraph.Node[state.Session].
func (n *GenerateArchitecture) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	prompt := fmt.Sprintf("TRD:\n%s\n\nAPI endpoints: %+v\n\nDB DDL:\n%s", s.FinalTRD, s.InferredAPISpec, s.DBSchema.DDL)
	diagram, err := n.Completer.Complete(ctx, generateArchitecturePrompt, prompt)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: generate_architecture completion: %w", ErrExternalServiceError, err))
	}

	return cont(state.Session{
		ArchitectureDiagram: diagram,
		CurrentStage:        state.StageGenerateArchitecture,
		ProgressPercentage:  90,
	})
}
