package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const generateTRDPrompt = `Write a technical requirements document in markdown from the project state
below: PRD, chosen technologies, API endpoints. Include sections for Overview, Requirements,
Chosen Technologies, API Surface, and Open Risks. If this is a regeneration, address the listed
inconsistencies and missing sections from the prior validation.`

// GenerateTRD drafts the technical requirements document from accumulated
// state (progress target 70%). Each call increments iteration_count, the
// counter the validate_trd retry loop is bounded by.
type GenerateTRD struct {
	Completer collab.Completer
}

// NewGenerateTRD constructs a GenerateTRD node.
func NewGenerateTRD(completer collab.Completer) *GenerateTRD {
	return &GenerateTRD{Completer: completer}
}

// Run implements sgraph.Node[state.Session].
func (n *GenerateTRD) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	prompt := fmt.Sprintf("PRD:\n%s\n\nChosen technologies: %v\n\nAPI endpoints: %+v\n\nPrior validation (if any): %+v",
		s.PRDContent, chosenSoFar(s), s.InferredAPISpec, s.TRDValidation)
	draft, err := n.Completer.Complete(ctx, generateTRDPrompt, prompt)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: generate_trd completion: %w", ErrExternalServiceError, err))
	}

	return cont(state.Session{
		TRDDraft:           draft,
		IterationCount:     s.IterationCount + 1,
		CurrentStage:       state.StageGenerateTRD,
		ProgressPercentage: 70,
	})
}
