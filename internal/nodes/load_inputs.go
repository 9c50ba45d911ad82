package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// requiredDesignDocs are the design-doc keys load_inputs requires in
// addition to the PRD; a session whose upstream job is missing any of
// these cannot proceed (UpstreamIncomplete).
var requiredDesignDocs = []string{"design_system", "ux_flow", "screen_specs"}

// LoadInputs fetches the PRD, design docs, and optional code-bundle
// reference from the upstream collaborator. It is the session's entry
// node (progress target 5%).
type LoadInputs struct {
	Loader collab.UpstreamLoader
}

// NewLoadInputs constructs a LoadInputs node against loader.
func NewLoadInputs(loader collab.UpstreamLoader) *LoadInputs {
	return &LoadInputs{Loader: loader}
}

// Run implements sgraph.Node[state.Session].
func (n *LoadInputs) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	inputs, err := n.Loader.Load(ctx, s.UpstreamJobID)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: load upstream inputs: %w", ErrExternalServiceError, err))
	}

	var missing []string
	if inputs.PRDContent == "" {
		missing = append(missing, "prd")
	}
	for _, key := range requiredDesignDocs {
		if _, ok := inputs.DesignDocs[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: upstream job %s missing required documents %v", ErrUpstreamIncomplete, s.UpstreamJobID, missing))
	}

	delta := state.Session{
		PRDContent:         inputs.PRDContent,
		DesignDocs:         inputs.DesignDocs,
		CurrentStage:       state.StageLoadInputs,
		ProgressPercentage: 5,
	}
	if inputs.CodeBundleRef != "" {
		ref := inputs.CodeBundleRef
		delta.CodeBundleRef = &ref
	}
	return cont(delta)
}
