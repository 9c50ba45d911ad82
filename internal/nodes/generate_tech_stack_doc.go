package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const generateTechStackDocPrompt = `Summarize the technology choices made for this project into a
tech stack document. Respond with JSON only: {"categories": [{"category":"...","choice":"...",
"reason":"..."}], "summary":"..."}`

// GenerateTechStackDoc produces the final structured tech-stack summary
// from the accumulated decisions (progress target 95%).
type GenerateTechStackDoc struct {
	Completer collab.Completer
}

// NewGenerateTechStackDoc constructs a GenerateTechStackDoc node.
func NewGenerateTechStackDoc(completer collab.Completer) *GenerateTechStackDoc {
	return &GenerateTechStackDoc{Completer: completer}
}

// Run implements sgraph.Node[state.Session].
func (n *GenerateTechStackDoc) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	prompt := fmt.Sprintf("Decisions: %+v", s.UserDecisions)
	out, err := n.Completer.Complete(ctx, generateTechStackDocPrompt, prompt)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: generate_tech_stack_doc completion: %w", ErrExternalServiceError, err))
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(extractJSON(out)), &parsed); err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: generate_tech_stack_doc: %w", ErrExternalServiceError, err))
	}

	return cont(state.Session{
		TechStackDocument:  parsed,
		CurrentStage:       state.StageGenerateTechStackDoc,
		ProgressPercentage: 95,
	})
}
