package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// GenerateAPISpec renders the inferred endpoints as an OpenAPI 3.x document
// (progress target 80%).
type GenerateAPISpec struct {
	ProjectName string
}

// NewGenerateAPISpec constructs a GenerateAPISpec node for projectName.
func NewGenerateAPISpec(projectName string) *GenerateAPISpec {
	return &GenerateAPISpec{ProjectName: projectName}
}

// Run implements sgraph.Node[state.Session].
func (n *GenerateAPISpec) Run(_ context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	doc, err := collab.BuildOpenAPISpec(n.ProjectName, s.InferredAPISpec)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: generate_api_spec: %w", ErrExternalServiceError, err))
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: generate_api_spec: decode built spec: %w", ErrExternalServiceError, err))
	}

	return cont(state.Session{
		APISpecification:   parsed,
		CurrentStage:       state.StageGenerateAPISpec,
		ProgressPercentage: 80,
	})
}
