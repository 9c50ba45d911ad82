package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const validateArchitecturePrompt = `Critique this system architecture diagram for single points of
failure, missing caching/queueing where the TRD implies load, and unclear service boundaries. Score
it 0-100. Respond with JSON only: {"score":0-100,"warnings":["..."]}`

// ValidateArchitecture scores the generated architecture diagram
// (progress target 92%). Unlike validate_trd, a low score here only
// records a warning; it never triggers a retry loop.
type ValidateArchitecture struct {
	Completer collab.Completer
}

// NewValidateArchitecture constructs a ValidateArchitecture node.
func NewValidateArchitecture(completer collab.Completer) *ValidateArchitecture {
	return &ValidateArchitecture{Completer: completer}
}

type architectureCritique struct {
	Score    int      `json:"score"`
	Warnings []string `json:"warnings"`
}

// Run implements sgraph.Node[state.Session].
func (n *ValidateArchitecture) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	out, err := n.Completer.Complete(ctx, validateArchitecturePrompt, s.ArchitectureDiagram)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: validate_architecture completion: %w", ErrExternalServiceError, err))
	}

	var critique architectureCritique
	if err := decodeJSON(out, &critique); err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: validate_architecture: %w", ErrExternalServiceError, err))
	}

	delta := state.Session{
		ArchitectureValidation: state.ArchitectureValidation{Score: critique.Score, Warnings: critique.Warnings},
		CurrentStage:           state.StageValidateArchitecture,
		ProgressPercentage:     92,
	}
	if critique.Score < qualityThreshold {
		delta.Errors = []state.ErrorRecord{recordError("validate_architecture", ErrValidationBelowThresh,
			fmt.Sprintf("architecture score %d below threshold %d, proceeding with warning", critique.Score, qualityThreshold), true)}
	}
	return cont(delta)
}
